package codec

import (
	"bytes"
	"io"
	"testing"

	"WCKV/internal/domain"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytesList_WithLength(t *testing.T) {
	list := NewBytesList().
		AppendRawInt(7).
		AppendRawLong(9).
		AppendRawByte(0x05).
		AppendVarStr("abc")

	data, err := list.ToBytes()
	require.NoError(t, err)

	// 4 length + 4 int + 8 long + 1 byte + 4 var length + 3 bytes
	assert.Len(t, data, 24)
	assert.Equal(t, list.Len(), len(data))
	assert.Equal(t, []byte{0, 0, 0, 20}, data[:4])

	r := NewReader(data[4:])
	i, err := r.Int()
	require.NoError(t, err)
	assert.Equal(t, int32(7), i)
	l, err := r.Long()
	require.NoError(t, err)
	assert.Equal(t, int64(9), l)
	b, err := r.Byte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x05), b)
	s, err := r.VarStr()
	require.NoError(t, err)
	assert.Equal(t, "abc", s)
	assert.True(t, r.IsOver())
}

func TestBytesList_Raw(t *testing.T) {
	data, err := NewRawBytesList().AppendRawStr("hi").AppendVarBytes(nil).ToBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{'h', 'i', 0, 0, 0, 0}, data)
}

func TestBytesList_UnsupportedType(t *testing.T) {
	_, err := NewBytesList().Append(RAW, 1.5).ToBytes()
	assert.True(t, errors.Is(err, domain.ErrProgramming))

	_, err = NewBytesList().Append(VAR, int32(1)).ToBytes()
	assert.True(t, errors.Is(err, domain.ErrProgramming))

	_, err = NewBytesList().Append(0x7f, []byte("x")).ToBytes()
	assert.True(t, errors.Is(err, domain.ErrProgramming))
}

func TestBytesList_AppendList(t *testing.T) {
	inner := NewRawBytesList().AppendVarStr("col")
	outer := NewBytesList().AppendRawByte(1).AppendList(inner)

	data, err := outer.ToBytes()
	require.NoError(t, err)
	assert.Equal(t, 4+1+4+3, len(data))
}

func TestReader_ShortBuffer(t *testing.T) {
	r := NewReader([]byte{0, 0, 0, 9, 'a'})
	_, err := r.VarBytes()
	assert.True(t, domain.IsCorruptStorage(err))
}

func TestReadFrame(t *testing.T) {
	var buf bytes.Buffer
	_, err := NewBytesList().AppendVarStr("one").WriteTo(&buf)
	require.NoError(t, err)
	_, err = NewBytesList().AppendVarStr("two").WriteTo(&buf)
	require.NoError(t, err)

	for _, want := range []string{"one", "two"} {
		frame, err := ReadFrame(&buf)
		require.NoError(t, err)
		got, err := NewReader(frame).VarStr()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err = ReadFrame(&buf)
	assert.Equal(t, io.EOF, err)
}

func TestReadFrame_Truncated(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{0, 0, 0, 8, 1, 2}))
	assert.Equal(t, io.ErrUnexpectedEOF, err)

	_, err = ReadFrame(bytes.NewReader([]byte{0, 0}))
	assert.Equal(t, io.ErrUnexpectedEOF, err)
}

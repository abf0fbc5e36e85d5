package codec

import (
	"encoding/binary"
	"io"

	"WCKV/internal/domain"
	"github.com/cockroachdb/errors"
)

// Reader decodes fields written by BytesList. Running past the end of the
// buffer is reported as corrupt storage since the bytes came from disk or the wire.
type Reader struct {
	buf []byte
	off int
}

func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || r.off+n > len(r.buf) {
		return nil, domain.CorruptStorage("short buffer: need %d bytes at offset %d, have %d", n, r.off, len(r.buf)-r.off)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *Reader) Byte() (byte, error) {
	b, err := r.take(ByteLength)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) Int() (int32, error) {
	b, err := r.take(IntLength)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

func (r *Reader) Long() (int64, error) {
	b, err := r.take(LongLength)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

// Bytes returns a copy of the next n raw bytes.
func (r *Reader) Bytes(n int) ([]byte, error) {
	b, err := r.take(n)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

func (r *Reader) VarBytes() ([]byte, error) {
	n, err := r.Int()
	if err != nil {
		return nil, err
	}
	return r.Bytes(int(n))
}

func (r *Reader) VarStr() (string, error) {
	b, err := r.VarBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *Reader) Remaining() int {
	return len(r.buf) - r.off
}

func (r *Reader) IsOver() bool {
	return r.Remaining() == 0
}

// ReadFrame reads one length-prefixed frame from r. A clean EOF before the length is
// returned as io.EOF; a frame cut short is io.ErrUnexpectedEOF.
func ReadFrame(r io.Reader) ([]byte, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, io.ErrUnexpectedEOF
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, io.ErrUnexpectedEOF
	}
	return body, nil
}

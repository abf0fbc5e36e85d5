package codec

import (
	"encoding/binary"
	"io"

	"WCKV/internal/domain"
)

const (
	RAW byte = 0x01
	VAR byte = 0x02

	ByteLength = 1
	IntLength  = 4
	LongLength = 8
)

type bytesNode struct {
	kind  byte
	value interface{}
}

// BytesList accumulates fields and renders them as one buffer. Fixed-width fields are
// written raw, variable-width fields carry their own 4-byte length. When built with
// a length, the whole buffer is prefixed with the 4-byte length of what follows.
// All integers are big-endian.
type BytesList struct {
	nodes      []bytesNode
	withLength bool
	length     int
	err        error
}

func NewBytesList() *BytesList {
	return &BytesList{withLength: true, length: IntLength}
}

func NewRawBytesList() *BytesList {
	return &BytesList{}
}

func (l *BytesList) AppendRawByte(value byte) *BytesList {
	return l.Append(RAW, value)
}

func (l *BytesList) AppendRawBytes(value []byte) *BytesList {
	return l.Append(RAW, value)
}

func (l *BytesList) AppendRawStr(s string) *BytesList {
	return l.Append(RAW, []byte(s))
}

func (l *BytesList) AppendRawInt(value int32) *BytesList {
	return l.Append(RAW, value)
}

func (l *BytesList) AppendRawLong(value int64) *BytesList {
	return l.Append(RAW, value)
}

func (l *BytesList) AppendVarBytes(value []byte) *BytesList {
	return l.Append(VAR, value)
}

func (l *BytesList) AppendVarStr(s string) *BytesList {
	return l.Append(VAR, []byte(s))
}

// Append adds a field of the given kind. Only int32, int64, byte and []byte are
// encodable, and only []byte may be VAR; anything else poisons the list with a
// programming error reported by ToBytes.
func (l *BytesList) Append(kind byte, value interface{}) *BytesList {
	if l.err != nil {
		return l
	}
	size, err := fieldSize(kind, value)
	if err != nil {
		l.err = err
		return l
	}
	l.nodes = append(l.nodes, bytesNode{kind: kind, value: value})
	l.length += size
	return l
}

func (l *BytesList) AppendList(other *BytesList) *BytesList {
	if l.err != nil {
		return l
	}
	if other.err != nil {
		l.err = other.err
		return l
	}
	l.nodes = append(l.nodes, other.nodes...)
	l.length += other.bodyLength()
	return l
}

// Len is the encoded size including the length prefix, if any.
func (l *BytesList) Len() int {
	return l.length
}

func (l *BytesList) bodyLength() int {
	if l.withLength {
		return l.length - IntLength
	}
	return l.length
}

func (l *BytesList) ToBytes() ([]byte, error) {
	if l.err != nil {
		return nil, l.err
	}
	buf := make([]byte, 0, l.length)
	if l.withLength {
		buf = binary.BigEndian.AppendUint32(buf, uint32(l.bodyLength()))
	}
	for _, node := range l.nodes {
		if node.kind == VAR {
			buf = binary.BigEndian.AppendUint32(buf, uint32(len(node.value.([]byte))))
		}
		switch v := node.value.(type) {
		case int32:
			buf = binary.BigEndian.AppendUint32(buf, uint32(v))
		case int64:
			buf = binary.BigEndian.AppendUint64(buf, uint64(v))
		case byte:
			buf = append(buf, v)
		case []byte:
			buf = append(buf, v...)
		}
	}
	return buf, nil
}

func (l *BytesList) WriteTo(w io.Writer) (int64, error) {
	data, err := l.ToBytes()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

func fieldSize(kind byte, value interface{}) (int, error) {
	switch kind {
	case RAW:
		switch v := value.(type) {
		case int32:
			return IntLength, nil
		case int64:
			return LongLength, nil
		case byte:
			return ByteLength, nil
		case []byte:
			return len(v), nil
		}
	case VAR:
		if v, ok := value.([]byte); ok {
			return IntLength + len(v), nil
		}
	default:
		return 0, domain.Programming("undefined field kind %#x", kind)
	}
	return 0, domain.Programming("undefined value type %T for field kind %#x", value, kind)
}

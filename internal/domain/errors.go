package domain

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrCorruptStorage marks on-disk state that cannot be trusted: a storage path that is
	// not a directory, a gap in the region id sequence, a malformed record.
	ErrCorruptStorage = errors.New("corrupt storage")

	// ErrStorageIo marks a failed read or write against the file system.
	// The engine never retries these itself.
	ErrStorageIo = errors.New("storage i/o error")

	// ErrProgramming marks an attempt to encode or decode an unsupported shape.
	ErrProgramming = errors.New("programming error")
)

func CorruptStorage(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrCorruptStorage)
}

func StorageIo(err error, format string, args ...interface{}) error {
	return errors.Mark(errors.Wrapf(err, format, args...), ErrStorageIo)
}

func Programming(format string, args ...interface{}) error {
	return errors.Mark(errors.AssertionFailedf(format, args...), ErrProgramming)
}

func IsCorruptStorage(err error) bool {
	return errors.Is(err, ErrCorruptStorage)
}

func IsStorageIo(err error) bool {
	return errors.Is(err, ErrStorageIo)
}

package domain

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestDbKey_Compare(t *testing.T) {
	a := NewDbKey([]byte("a"), "cf", "x")
	b := NewDbKey([]byte("b"), "cf", "a")
	aOtherCf := NewDbKey([]byte("a"), "cg", "a")
	aOtherColumn := NewDbKey([]byte("a"), "cf", "y")

	assert.Negative(t, a.Compare(b))
	assert.Positive(t, b.Compare(a))
	assert.Negative(t, a.Compare(aOtherCf))
	assert.Negative(t, a.Compare(aOtherColumn))
	assert.Zero(t, a.Compare(NewDbKey([]byte("a"), "cf", "x")))
	assert.True(t, a.Equal(NewDbKey([]byte("a"), "cf", "x")))
}

func TestDbKey_SameRow(t *testing.T) {
	k := NewDbKey([]byte("row"), "cf", "col")

	assert.True(t, k.SameRow([]byte("row"), "cf"))
	assert.False(t, k.SameRow([]byte("row"), "other"))
	assert.False(t, k.SameRow([]byte("row2"), "cf"))
}

func TestDbValue_Tombstone(t *testing.T) {
	v := NewDbValue("c", []byte("v"))
	assert.False(t, v.Tombstone())
	assert.Equal(t, []byte("v"), v.Value())

	d := NewTombstone("c")
	assert.True(t, d.Tombstone())
	assert.Nil(t, d.Value())
	assert.Equal(t, "c", d.Column())
}

func TestErrorKinds(t *testing.T) {
	corrupt := CorruptStorage("region %d missing", 3)
	assert.True(t, IsCorruptStorage(corrupt))
	assert.False(t, IsStorageIo(corrupt))
	assert.Contains(t, corrupt.Error(), "region 3 missing")

	io := StorageIo(errors.New("disk full"), "append to %s", "1.log")
	assert.True(t, IsStorageIo(io))
	assert.True(t, errors.Is(io, ErrStorageIo))

	wrapped := errors.Wrap(corrupt, "open log group")
	assert.True(t, IsCorruptStorage(wrapped))

	assert.True(t, errors.Is(Programming("bad shape %T", 1.5), ErrProgramming))
}

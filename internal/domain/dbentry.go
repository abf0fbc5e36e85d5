package domain

import (
	"bytes"
	"fmt"
	"strings"
)

// DbKey identifies one column value.
type DbKey struct {
	Key          []byte
	ColumnFamily string
	Column       string
}

func NewDbKey(key []byte, columnFamily, column string) DbKey {
	return DbKey{
		Key:          key,
		ColumnFamily: columnFamily,
		Column:       column,
	}
}

// Compare orders keys by key bytes, then column family, then column.
func (k DbKey) Compare(other DbKey) int {
	if c := bytes.Compare(k.Key, other.Key); c != 0 {
		return c
	}
	if c := strings.Compare(k.ColumnFamily, other.ColumnFamily); c != 0 {
		return c
	}
	return strings.Compare(k.Column, other.Column)
}

func (k DbKey) Equal(other DbKey) bool {
	return k.Compare(other) == 0
}

// SameRow reports whether both keys address the same (key, columnFamily).
func (k DbKey) SameRow(key []byte, columnFamily string) bool {
	return bytes.Equal(k.Key, key) && k.ColumnFamily == columnFamily
}

func (k DbKey) MessageKey() MessageKey {
	return NewMessageKey(k.Key, k.ColumnFamily)
}

func (k DbKey) String() string {
	return fmt.Sprintf("%q/%s/%s", k.Key, k.ColumnFamily, k.Column)
}

// DbValue is a column value or a tombstone.
type DbValue struct {
	column    string
	value     []byte
	tombstone bool
}

func NewDbValue(column string, value []byte) DbValue {
	return DbValue{
		column: column,
		value:  value,
	}
}

func NewTombstone(column string) DbValue {
	return DbValue{
		column:    column,
		tombstone: true,
	}
}

func (v DbValue) Column() string {
	return v.column
}

func (v DbValue) Value() []byte {
	return v.value
}

func (v DbValue) Tombstone() bool {
	return v.tombstone
}

// DbIndex points at the value-log record that holds the bytes for Key.
// Tombstones carry no pointer.
type DbIndex struct {
	Key              DbKey
	ValueGlobalIndex int64
	Tombstone        bool
}

func NewDbIndex(key DbKey, valueGlobalIndex int64) DbIndex {
	return DbIndex{
		Key:              key,
		ValueGlobalIndex: valueGlobalIndex,
	}
}

func NewTombstoneIndex(key DbKey) DbIndex {
	return DbIndex{
		Key:       key,
		Tombstone: true,
	}
}

// MessageKey is the routing/invalidation key every mutation yields.
type MessageKey struct {
	Key          []byte `json:"key"`
	ColumnFamily string `json:"column_family"`
}

func NewMessageKey(key []byte, columnFamily string) MessageKey {
	return MessageKey{
		Key:          key,
		ColumnFamily: columnFamily,
	}
}

func (m MessageKey) String() string {
	return fmt.Sprintf("%s/%x", m.ColumnFamily, m.Key)
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

type MutationKind byte

const (
	MutationInsert MutationKind = 1
	MutationDelete MutationKind = 2
)

// Mutation is the unit the engine applies and logs: every column change
// under one (key, columnFamily) in a single write-ahead record.
type Mutation struct {
	Id           string
	Kind         MutationKind
	Key          []byte
	ColumnFamily string
	Values       []DbValue
	Timestamp    int64
}

func NewMutation(kind MutationKind, key []byte, columnFamily string) Mutation {
	return Mutation{
		Id:           uuid.NewString(),
		Kind:         kind,
		Key:          key,
		ColumnFamily: columnFamily,
		Timestamp:    time.Now().UnixNano(),
	}
}

func MutationFromInsert(key []byte, columnFamily string, columns map[string][]byte) Mutation {
	m := NewMutation(MutationInsert, key, columnFamily)
	for column, value := range columns {
		m.AddValue(NewDbValue(column, value))
	}
	return m
}

func MutationFromDelete(key []byte, columnFamily string, columns ...string) Mutation {
	m := NewMutation(MutationDelete, key, columnFamily)
	for _, column := range columns {
		m.AddValue(NewTombstone(column))
	}
	return m
}

func (m *Mutation) AddValue(value DbValue) {
	m.Values = append(m.Values, value)
}

func (m *Mutation) DbKey(column string) DbKey {
	return NewDbKey(m.Key, m.ColumnFamily, column)
}

func (m *Mutation) MessageKey() MessageKey {
	return NewMessageKey(m.Key, m.ColumnFamily)
}

func (m *Mutation) IsEmpty() bool {
	return len(m.Values) == 0
}

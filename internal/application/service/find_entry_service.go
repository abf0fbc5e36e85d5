package service

import (
	"WCKV/internal/domain"
)

type FindEntryService struct {
	engine domain.StorageEngine
}

func NewFindEntryService(engine domain.StorageEngine) *FindEntryService {
	return &FindEntryService{
		engine: engine,
	}
}

type FindEntryQuery struct {
	Key          []byte
	ColumnFamily string
	Column       string
}

type FindEntryResult struct {
	Value []byte
	Found bool
	Err   error
}

func (s *FindEntryService) Execute(query FindEntryQuery) FindEntryResult {
	value, found, err := s.engine.Find(query.Key, query.ColumnFamily, query.Column)
	if err != nil {
		return FindEntryResult{Err: err}
	}
	return FindEntryResult{
		Value: value,
		Found: found,
	}
}

package service

import (
	"WCKV/internal/domain"
)

type FindColumnsService struct {
	engine domain.StorageEngine
	cache  *FindCache
}

func NewFindColumnsService(engine domain.StorageEngine, cache *FindCache) *FindColumnsService {
	return &FindColumnsService{
		engine: engine,
		cache:  cache,
	}
}

type FindColumnsQuery struct {
	Key          []byte
	ColumnFamily string
}

type FindColumnsResult struct {
	Columns map[string][]byte
	Err     error
}

// Execute serves the row from the cache when possible. Cached rows are shared and
// must not be modified by callers.
func (s *FindColumnsService) Execute(query FindColumnsQuery) FindColumnsResult {
	messageKey := domain.NewMessageKey(query.Key, query.ColumnFamily)
	if columns, ok := s.cache.Get(messageKey); ok {
		return FindColumnsResult{Columns: columns}
	}

	generation := s.cache.Generation(messageKey)
	columns, err := s.engine.FindColumns(query.Key, query.ColumnFamily)
	if err != nil {
		return FindColumnsResult{Err: err}
	}
	s.cache.Add(messageKey, generation, columns)
	return FindColumnsResult{Columns: columns}
}

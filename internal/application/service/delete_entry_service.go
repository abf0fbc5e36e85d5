package service

import (
	"WCKV/internal/domain"
)

type DeleteEntryService struct {
	engine    domain.StorageEngine
	cache     *FindCache
	publisher domain.InvalidationPublisher
}

func NewDeleteEntryService(engine domain.StorageEngine, cache *FindCache,
	publisher domain.InvalidationPublisher) *DeleteEntryService {
	return &DeleteEntryService{
		engine:    engine,
		cache:     cache,
		publisher: publisher,
	}
}

// DeleteEntryCommand deletes one column, or the whole row when Column is empty.
type DeleteEntryCommand struct {
	Key          []byte
	ColumnFamily string
	Column       string
}

type DeleteEntryResult struct {
	MessageKey domain.MessageKey
	Err        error
}

func (s *DeleteEntryService) Execute(command DeleteEntryCommand) DeleteEntryResult {
	var messageKey domain.MessageKey
	var err error
	if command.Column == "" {
		messageKey, err = s.engine.DeleteColumns(command.Key, command.ColumnFamily)
	} else {
		messageKey, err = s.engine.Delete(command.Key, command.ColumnFamily, command.Column)
	}

	invalidate(s.cache, s.publisher, domain.NewMessageKey(command.Key, command.ColumnFamily))
	return DeleteEntryResult{
		MessageKey: messageKey,
		Err:        err,
	}
}

package service

import (
	"log"

	"WCKV/internal/domain"
	"github.com/cockroachdb/errors"
)

var ErrNoColumns = errors.New("no columns to insert")

type InsertEntryService struct {
	engine    domain.StorageEngine
	cache     *FindCache
	publisher domain.InvalidationPublisher
}

func NewInsertEntryService(engine domain.StorageEngine, cache *FindCache,
	publisher domain.InvalidationPublisher) *InsertEntryService {
	return &InsertEntryService{
		engine:    engine,
		cache:     cache,
		publisher: publisher,
	}
}

type InsertEntryCommand struct {
	Key          []byte
	ColumnFamily string
	Columns      map[string][]byte
}

type InsertEntryResult struct {
	MessageKey domain.MessageKey
	Err        error
}

func (s *InsertEntryService) Execute(command InsertEntryCommand) InsertEntryResult {
	if len(command.Columns) == 0 {
		return InsertEntryResult{
			MessageKey: domain.NewMessageKey(command.Key, command.ColumnFamily),
			Err:        ErrNoColumns,
		}
	}

	var messageKey domain.MessageKey
	var err error
	if len(command.Columns) == 1 {
		for column, value := range command.Columns {
			messageKey, err = s.engine.Insert(command.Key, command.ColumnFamily, column, value)
		}
	} else {
		messageKey, err = s.engine.InsertColumns(command.Key, command.ColumnFamily, command.Columns)
	}

	invalidate(s.cache, s.publisher, domain.NewMessageKey(command.Key, command.ColumnFamily))
	return InsertEntryResult{
		MessageKey: messageKey,
		Err:        err,
	}
}

// invalidate drops the cached row and forwards the key. A failed write may still
// have reached the wal, so this runs regardless of the write result.
func invalidate(cache *FindCache, publisher domain.InvalidationPublisher, messageKey domain.MessageKey) {
	cache.Invalidate(messageKey)
	if err := publisher.Publish(messageKey); err != nil {
		log.Printf("Failed to publish invalidation for %s: %v", messageKey, err)
	}
}

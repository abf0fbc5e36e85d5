package message

import (
	"time"

	"WCKV/internal/domain"
	"github.com/google/uuid"
)

// InvalidationTopic prefixes every invalidation the sequencer publishes.
const InvalidationTopic = "invalidation"

// InvalidationMessage announces that a row changed. The sequencer stamps Sequence
// before fanning it out, so publishers leave it zero.
type InvalidationMessage struct {
	Id           string `json:"id"`
	InstanceId   string `json:"instance_id,omitempty"`
	Key          []byte `json:"key"`
	ColumnFamily string `json:"column_family"`
	Sequence     uint64 `json:"sequence,omitempty"`
	Timestamp    int64  `json:"timestamp"`
}

func InvalidationMessageFrom(instanceId string, key domain.MessageKey) InvalidationMessage {
	return InvalidationMessage{
		Id:           uuid.NewString(),
		InstanceId:   instanceId,
		Key:          key.Key,
		ColumnFamily: key.ColumnFamily,
		Timestamp:    time.Now().UnixMilli(),
	}
}

func (m *InvalidationMessage) ToMessageKey() domain.MessageKey {
	return domain.NewMessageKey(m.Key, m.ColumnFamily)
}

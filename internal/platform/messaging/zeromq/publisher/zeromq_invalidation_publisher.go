package publisher

import (
	"context"
	"log"
	"sync"
	"time"

	"WCKV/internal/domain"
	"WCKV/internal/platform/config"
	"WCKV/internal/platform/messaging/zeromq/message"
	"github.com/cockroachdb/errors"
	"github.com/go-zeromq/zmq4"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ZeroMQInvalidationPublisher pushes one message per applied mutation to the
// sequencer, which orders and fans them out to every instance.
type ZeroMQInvalidationPublisher struct {
	push       zmq4.Socket
	instanceId string
	mu         sync.Mutex
}

// NoopInvalidationPublisher is used when no sequencer is configured.
type NoopInvalidationPublisher struct{}

func (NoopInvalidationPublisher) Publish(domain.MessageKey) error {
	return nil
}

// NewInvalidationPublisher dials conf.SequencerUrl, or returns a no-op publisher when
// it is empty.
func NewInvalidationPublisher(conf config.Config) (domain.InvalidationPublisher, error) {
	if conf.SequencerUrl == "" {
		log.Println("No sequencer configured, invalidations stay local")
		return NoopInvalidationPublisher{}, nil
	}
	return NewZeroMQInvalidationPublisher(conf.SequencerUrl, conf.InstanceId)
}

func NewZeroMQInvalidationPublisher(address, instanceId string) (*ZeroMQInvalidationPublisher, error) {
	push := zmq4.NewPush(context.Background(),
		zmq4.WithAutomaticReconnect(true),
		zmq4.WithDialerRetry(time.Second*5))
	if err := push.Dial(address); err != nil {
		push.Close()
		return nil, errors.Wrapf(err, "failed to dial sequencer %s", address)
	}
	log.Printf("ZeroMQInvalidationPublisher connected to %s", address)
	return &ZeroMQInvalidationPublisher{
		push:       push,
		instanceId: instanceId,
	}, nil
}

func (p *ZeroMQInvalidationPublisher) Publish(key domain.MessageKey) error {
	payload, err := MarshalInvalidationMessage(message.InvalidationMessageFrom(p.instanceId, key))
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.push.Send(zmq4.NewMsg(payload)); err != nil {
		return errors.Wrapf(err, "failed to push invalidation for %s", key)
	}
	return nil
}

func (p *ZeroMQInvalidationPublisher) Close() error {
	return p.push.Close()
}

func MarshalInvalidationMessage(m message.InvalidationMessage) ([]byte, error) {
	return json.Marshal(m)
}

func UnmarshalInvalidationMessage(data []byte) (message.InvalidationMessage, error) {
	var m message.InvalidationMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return message.InvalidationMessage{}, errors.Wrap(err, "error unmarshalling invalidation message")
	}
	return m, nil
}

package listener

import (
	"context"
	"fmt"
	"log"
	"time"

	"WCKV/internal/domain"
	"WCKV/internal/platform/messaging/zeromq/message"
	"WCKV/internal/platform/messaging/zeromq/publisher"
	"github.com/cockroachdb/errors"
	"github.com/go-zeromq/zmq4"
)

// RowInvalidator drops whatever is cached for a row.
type RowInvalidator interface {
	Invalidate(key domain.MessageKey)
}

// ZeromqInvalidationListener subscribes to the sequencer and invalidates rows
// changed by other instances. Messages from this instance are skipped, they were
// invalidated when the write was applied.
type ZeromqInvalidationListener struct {
	address      string
	instanceId   string
	invalidator  RowInvalidator
	lastSequence uint64
}

func NewZeromqInvalidationListener(address, instanceId string, invalidator RowInvalidator) *ZeromqInvalidationListener {
	return &ZeromqInvalidationListener{
		address:     address,
		instanceId:  instanceId,
		invalidator: invalidator,
	}
}

func (z *ZeromqInvalidationListener) String() string {
	return fmt.Sprintf("invalidation-listener(%s)", z.address)
}

// Serve receives until ctx is cancelled.
func (z *ZeromqInvalidationListener) Serve(ctx context.Context) error {
	sub := zmq4.NewSub(ctx,
		zmq4.WithAutomaticReconnect(true),
		zmq4.WithDialerRetry(time.Second*5))
	defer sub.Close()
	if err := sub.SetOption(zmq4.OptionSubscribe, message.InvalidationTopic); err != nil {
		return errors.Wrap(err, "subscribe to invalidations")
	}
	if err := sub.Dial(z.address); err != nil {
		return errors.Wrapf(err, "failed to dial sequencer %s", z.address)
	}
	log.Printf("ZeromqInvalidationListener - Started on %s.", z.address)

	for {
		msg, err := sub.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, zmq4.ErrClosedConn) {
				log.Println("Socket closed, exiting listener")
				return err
			}
			log.Println("Error receiving message:", err)
			continue
		}
		if len(msg.Frames) < 2 {
			continue
		}
		m, err := publisher.UnmarshalInvalidationMessage(msg.Frames[1])
		if err != nil {
			log.Println(err)
			continue
		}
		z.handle(m)
	}
}

func (z *ZeromqInvalidationListener) handle(m message.InvalidationMessage) {
	if z.lastSequence != 0 && m.Sequence > z.lastSequence+1 {
		log.Printf("ZeromqInvalidationListener: missed %d invalidations before sequence %d",
			m.Sequence-z.lastSequence-1, m.Sequence)
	}
	if m.Sequence > z.lastSequence {
		z.lastSequence = m.Sequence
	}
	if m.InstanceId == z.instanceId {
		return
	}
	z.invalidator.Invalidate(m.ToMessageKey())
}

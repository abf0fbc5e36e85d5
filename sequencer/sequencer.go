package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"WCKV/internal/platform/messaging/zeromq/message"
	"WCKV/internal/platform/messaging/zeromq/publisher"
	"github.com/cockroachdb/errors"
	"github.com/go-zeromq/zmq4"
)

// Sequencer pulls invalidations pushed by every instance, stamps each with the next
// sequence number and republishes it to all subscribers in that order.
type Sequencer struct {
	pub           zmq4.Socket
	pull          zmq4.Socket
	invalidations chan zmq4.Msg
	pubPort       int
	pullPort      int
	sequence      uint64
}

func NewSequencer(ctx context.Context, pubPort, pullPort int) *Sequencer {
	return &Sequencer{
		pub:           zmq4.NewPub(ctx),
		pull:          zmq4.NewPull(ctx),
		invalidations: make(chan zmq4.Msg, 30000),
		pubPort:       pubPort,
		pullPort:      pullPort,
	}
}

func (s *Sequencer) Listen() error {
	pubAddr := fmt.Sprintf("tcp://*:%d", s.pubPort)
	if err := s.pub.Listen(pubAddr); err != nil {
		return errors.Wrapf(err, "failed to start pub socket on %s", pubAddr)
	}
	log.Printf("Pub socket listening on %s\n", pubAddr)

	pullAddr := fmt.Sprintf("tcp://*:%d", s.pullPort)
	if err := s.pull.Listen(pullAddr); err != nil {
		return errors.Wrapf(err, "failed to start pull socket on %s", pullAddr)
	}
	log.Printf("Pull socket listening on %s\n", pullAddr)

	go func() {
		defer close(s.invalidations)
		for {
			msg, err := s.pull.Recv()
			if err != nil {
				if errors.Is(err, zmq4.ErrClosedConn) || errors.Is(err, context.Canceled) {
					log.Println("Socket closed, exiting listener")
					return
				}
				log.Println("Error receiving message:", err)
				continue
			}
			s.invalidations <- msg
		}
	}()

	for msg := range s.invalidations {
		payload, err := s.stamp(msg.Bytes())
		if err != nil {
			log.Println("Dropping invalidation:", err)
			continue
		}
		err = s.pub.Send(zmq4.NewMsgFrom([]byte(message.InvalidationTopic), payload))
		if err != nil {
			return errors.Wrap(err, "error sending message")
		}
	}
	return nil
}

// stamp assigns the next sequence number. Only the Listen goroutine calls it.
func (s *Sequencer) stamp(payload []byte) ([]byte, error) {
	m, err := publisher.UnmarshalInvalidationMessage(payload)
	if err != nil {
		return nil, err
	}
	s.sequence++
	m.Sequence = s.sequence
	return publisher.MarshalInvalidationMessage(m)
}

func (s *Sequencer) Close() {
	s.pull.Close()
	s.pub.Close()
}

func main() {
	pubPort := flag.Int("pub-port", 7000, "Port for PUB socket")
	pullPort := flag.Int("pull-port", 7001, "Port for PULL socket")
	flag.Parse()

	if *pubPort <= 0 || *pullPort <= 0 {
		log.Println("Ports must be positive integers")
		os.Exit(1)
	}

	seq := NewSequencer(context.Background(), *pubPort, *pullPort)
	defer seq.Close()
	if err := seq.Listen(); err != nil {
		log.Fatal(err)
	}
}

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
)

// clientName identifies this service's connections in NATS monitoring.
const clientName = "notifyd"

// DefaultSubscribeBuffer is the channel size used by Subscribe.
const DefaultSubscribeBuffer = 64

// NATSPublisher publishes lifecycle events as JSON messages. Events that
// concern one notification carry its id in HeaderNotificationID.
type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string, opts ...nats.Option) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, append([]nats.Option{nats.Name(clientName + "-publisher")}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSPublisher{conn: nc}, nil
}

// Publish encodes event and sends it on topic. Core NATS publish does not
// block, so ctx is only checked up front.
func (p *NATSPublisher) Publish(ctx context.Context, topic string, event any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling %s event: %w", topic, err)
	}

	msg := nats.NewMsg(topic)
	msg.Data = data
	msg.Header.Set("Content-Type", "application/json")
	if k, ok := event.(Keyed); ok && k.NotificationID() != "" {
		msg.Header.Set(HeaderNotificationID, k.NotificationID())
	}
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publishing %s: %w", topic, err)
	}
	return nil
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

// NATSSubscriber hands raw alert and event payloads to channel consumers.
type NATSSubscriber struct {
	conn    *nats.Conn
	dropped atomic.Uint64
}

// NewNATSSubscriber connects with unlimited reconnects. Extra options such
// as disconnect and reconnect handlers are applied after the defaults.
func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	defaults := []nats.Option{
		nats.Name(clientName + "-subscriber"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSSubscriber{conn: nc}, nil
}

// Subscribe is SubscribeBuffered with DefaultSubscribeBuffer.
func (s *NATSSubscriber) Subscribe(subject string) (<-chan []byte, func(), error) {
	return s.SubscribeBuffered(subject, DefaultSubscribeBuffer)
}

// SubscribeBuffered delivers payloads for subject (wildcards allowed) on a
// channel holding up to size messages. A message that arrives while the
// channel is full is dropped and counted in Dropped. The returned cancel
// unsubscribes and closes the channel.
func (s *NATSSubscriber) SubscribeBuffered(subject string, size int) (<-chan []byte, func(), error) {
	if size <= 0 {
		size = DefaultSubscribeBuffer
	}
	ch := make(chan []byte, size)

	var (
		mu     sync.Mutex
		closed bool
		once   sync.Once
	)
	sub, err := s.conn.Subscribe(subject, func(msg *nats.Msg) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- msg.Data:
		default:
			s.dropped.Add(1)
		}
	})
	if err != nil {
		close(ch)
		return nil, nil, fmt.Errorf("subscribing to %s: %w", subject, err)
	}
	if err := s.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		close(ch)
		return nil, nil, fmt.Errorf("registering interest in %s: %w", subject, err)
	}

	cancel := func() {
		once.Do(func() {
			_ = sub.Unsubscribe()
			mu.Lock()
			closed = true
			close(ch)
			mu.Unlock()
		})
	}
	return ch, cancel, nil
}

// Dropped returns how many messages were discarded on full channels.
func (s *NATSSubscriber) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}

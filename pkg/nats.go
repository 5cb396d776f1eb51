package pkg

import (
	"context"
	"fmt"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"
	"github.com/nats-io/nats.go"
)

// NATSSubscriber wraps a NATS connection that keeps its subscriptions
// across reconnects. Connection tuning is passed through as nats options.
type NATSSubscriber struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger aqm.Logger
}

func NewNATSSubscriber(url string, logger aqm.Logger, opts ...nats.Option) (*NATSSubscriber, error) {
	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &NATSSubscriber{conn: conn, logger: logger}, nil
}

func (s *NATSSubscriber) Subscribe(ctx context.Context, topic string, handler events.HandlerFunc) error {
	sub, err := s.conn.Subscribe(topic, func(msg *nats.Msg) {
		if err := handler(ctx, msg.Data); err != nil {
			s.logger.Error("nats handler failed", "topic", topic, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	s.subs = append(s.subs, sub)
	return nil
}

func (s *NATSSubscriber) IsConnected() bool {
	return s.conn != nil && s.conn.IsConnected()
}

func (s *NATSSubscriber) Close() error {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	s.subs = nil
	s.conn.Close()
	return nil
}

package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/appetiteclub/kitchenboard/pkg"
	"github.com/appetiteclub/kitchenboard/pkg/event"
	"github.com/aquamarinepk/aqm"
	"github.com/nats-io/nats.go"
)

type NATSConfig struct {
	// URL accepts nats:// as well as ws:// for NATS over websocket.
	URL     string
	Subject string
	Name    string
	Backoff BackoffConfig
}

// NATSSource subscribes to the board subject on a NATS server. Reconnects
// are left to the nats client, paced by the same backoff schedule as the
// other sources.
type NATSSource struct {
	connState

	cfg     NATSConfig
	handler Handler
	logger  aqm.Logger
	backoff *Backoff

	mu  sync.Mutex
	sub *pkg.NATSSubscriber
}

func NewNATSSource(cfg NATSConfig, handler Handler, logger aqm.Logger) *NATSSource {
	logger, _ = withDefaults(logger, nil)
	if cfg.Subject == "" {
		cfg.Subject = event.KitchenBoardTopic
	}
	if cfg.Name == "" {
		cfg.Name = "kitchen-board"
	}
	return &NATSSource{
		cfg:     cfg,
		handler: handler,
		logger:  logger.With("component", "nats-source"),
		backoff: NewBackoff(cfg.Backoff.Initial, cfg.Backoff.Max),
	}
}

func (s *NATSSource) Start(ctx context.Context) error {
	if s.cfg.URL == "" {
		return fmt.Errorf("nats source: %w", ErrNotConfigured)
	}
	if s.handler == nil {
		return errors.New("nats source: nil handler")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != nil {
		return nil
	}

	sub, err := pkg.NewNATSSubscriber(s.cfg.URL, s.logger, s.options()...)
	if err != nil {
		return fmt.Errorf("nats source: %w", err)
	}
	if err := sub.Subscribe(context.Background(), s.cfg.Subject, s.handle); err != nil {
		sub.Close()
		return fmt.Errorf("nats source: %w", err)
	}
	s.sub = sub
	if sub.IsConnected() {
		s.set(true)
	}
	return nil
}

func (s *NATSSource) Stop(ctx context.Context) error {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()
	if sub != nil {
		sub.Close()
	}
	s.set(false)
	return nil
}

func (s *NATSSource) options() []nats.Option {
	return []nats.Option{
		nats.Name(s.cfg.Name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.CustomReconnectDelay(s.reconnectDelay),
		nats.ConnectHandler(func(*nats.Conn) {
			s.logger.Info("nats connected", "subject", s.cfg.Subject)
			s.set(true)
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			s.logger.Info("nats disconnected", "error", err)
			s.set(false)
		}),
		nats.ReconnectHandler(func(*nats.Conn) {
			s.logger.Info("nats reconnected", "subject", s.cfg.Subject)
			s.set(true)
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			s.set(false)
		}),
	}
}

func (s *NATSSource) reconnectDelay(attempts int) time.Duration {
	return s.backoff.Delay(attempts)
}

func (s *NATSSource) handle(ctx context.Context, msg []byte) error {
	payload, err := decodeFrame(msg)
	if err != nil {
		s.logger.Error("discarding malformed board message", "error", err)
		return nil
	}
	s.handler(Event{Type: event.EventBoardSnapshot, Payload: payload})
	return nil
}

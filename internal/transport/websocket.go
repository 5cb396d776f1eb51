package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/appetiteclub/kitchenboard/internal/clock"
	"github.com/appetiteclub/kitchenboard/pkg/event"
	"github.com/aquamarinepk/aqm"
	"github.com/gorilla/websocket"
)

const (
	defaultPollTimeout = 35 * time.Second
	defaultPollIdle    = 500 * time.Millisecond
	maxPollBody        = 8 << 20
	pollCursorHeader   = "X-Board-Cursor"
)

type WebSocketConfig struct {
	// URL is the ws:// or wss:// socket endpoint.
	URL string
	// PollURL is the http(s) long-poll endpoint used when the socket
	// handshake is refused. Empty disables the fallback.
	PollURL     string
	Topic       string
	Backoff     BackoffConfig
	DialTimeout time.Duration
	PollTimeout time.Duration
	// PollIdle is the pause after an empty poll answer.
	PollIdle time.Duration
}

type BackoffConfig struct {
	Initial time.Duration
	Max     time.Duration
}

// WebSocketSource subscribes to the board topic over a websocket and falls
// back to HTTP long-polling for the rest of its life when the upgrade is
// refused.
type WebSocketSource struct {
	connState
	runner

	cfg     WebSocketConfig
	handler Handler
	logger  aqm.Logger
	clock   clock.Clock
	dialer  *websocket.Dialer
	client  *http.Client
	polling atomic.Bool
}

func NewWebSocketSource(cfg WebSocketConfig, handler Handler, logger aqm.Logger, clk clock.Clock) *WebSocketSource {
	logger, clk = withDefaults(logger, clk)
	if cfg.Topic == "" {
		cfg.Topic = event.KitchenBoardTopic
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = defaultPollTimeout
	}
	if cfg.PollIdle <= 0 {
		cfg.PollIdle = defaultPollIdle
	}
	return &WebSocketSource{
		cfg:     cfg,
		handler: handler,
		logger:  logger.With("component", "websocket-source"),
		clock:   clk,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.DialTimeout,
		},
		client: &http.Client{Timeout: cfg.PollTimeout},
	}
}

func (s *WebSocketSource) Start(ctx context.Context) error {
	if s.cfg.URL == "" {
		return fmt.Errorf("websocket source: %w", ErrNotConfigured)
	}
	if s.handler == nil {
		return errors.New("websocket source: nil handler")
	}
	s.start(s.loop)
	return nil
}

func (s *WebSocketSource) Stop(ctx context.Context) error {
	err := s.stop(ctx)
	s.set(false)
	return err
}

// Polling reports whether the source has fallen back to long-polling.
func (s *WebSocketSource) Polling() bool {
	return s.polling.Load()
}

func (s *WebSocketSource) loop(ctx context.Context) {
	backoff := NewBackoff(s.cfg.Backoff.Initial, s.cfg.Backoff.Max)
	reconnect(ctx, s.clock, backoff, &s.connState, s.logger, "websocket", func(ctx context.Context) error {
		if s.polling.Load() {
			return s.poll(ctx, backoff)
		}
		err := s.stream(ctx, backoff)
		if errors.Is(err, websocket.ErrBadHandshake) && s.cfg.PollURL != "" {
			s.logger.Info("websocket upgrade refused, switching to long-polling", "poll_url", s.cfg.PollURL)
			s.polling.Store(true)
			return s.poll(ctx, backoff)
		}
		return err
	})
}

func (s *WebSocketSource) stream(ctx context.Context, backoff *Backoff) error {
	conn, resp, err := s.dialer.DialContext(ctx, s.cfg.URL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.cfg.URL, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	if err := conn.WriteJSON(event.NewSubscribeFrame(s.cfg.Topic)); err != nil {
		return fmt.Errorf("subscribe %s: %w", s.cfg.Topic, err)
	}

	backoff.Reset()
	s.set(true)
	s.logger.Info("board socket connected", "url", s.cfg.URL, "topic", s.cfg.Topic)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		switch msgType {
		case websocket.TextMessage:
			s.dispatch(decodeJSON(data))
		case websocket.BinaryMessage:
			s.dispatch(decodeCBOR(data))
		}
	}
}

func (s *WebSocketSource) poll(ctx context.Context, backoff *Backoff) error {
	cursor := ""
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.pollURL(cursor), nil)
		if err != nil {
			return fmt.Errorf("build poll request: %w", err)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return fmt.Errorf("poll: %w", err)
		}

		switch resp.StatusCode {
		case http.StatusOK:
			body, err := io.ReadAll(io.LimitReader(resp.Body, maxPollBody))
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("read poll body: %w", err)
			}
			backoff.Reset()
			s.set(true)
			if next := resp.Header.Get(pollCursorHeader); next != "" {
				cursor = next
			}
			if strings.Contains(resp.Header.Get("Content-Type"), "cbor") {
				s.dispatch(decodeCBOR(body))
			} else {
				s.dispatch(decodeJSON(body))
			}

		case http.StatusNoContent:
			resp.Body.Close()
			backoff.Reset()
			s.set(true)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-s.clock.After(s.cfg.PollIdle):
			}

		default:
			resp.Body.Close()
			return fmt.Errorf("poll: unexpected status %d", resp.StatusCode)
		}
	}
}

func (s *WebSocketSource) pollURL(cursor string) string {
	q := url.Values{}
	q.Set("topic", s.cfg.Topic)
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	sep := "?"
	if strings.Contains(s.cfg.PollURL, "?") {
		sep = "&"
	}
	return s.cfg.PollURL + sep + q.Encode()
}

func (s *WebSocketSource) dispatch(payload any, err error) {
	if err != nil {
		s.logger.Error("discarding malformed board message", "error", err)
		return
	}
	s.handler(Event{Type: event.EventBoardSnapshot, Payload: payload})
}

package transport

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/appetiteclub/kitchenboard/internal/clock"
	"github.com/appetiteclub/kitchenboard/pkg/event"
	"github.com/aquamarinepk/aqm"
)

type Kind string

const (
	KindWebSocket Kind = "websocket"
	KindNATS      Kind = "nats"
	KindGRPC      Kind = "grpc"
)

const (
	DefaultSocketPath = "/ws"
	pollSuffix        = "/poll"
)

type FactoryConfig struct {
	Kind       Kind
	SocketPath string
	NATSURL    string
	GRPCAddr   string
	Backoff    BackoffConfig
}

// OriginProvider exposes the REST base URL the socket origin is derived from.
type OriginProvider interface {
	BaseURL() string
}

// Endpoint is the derived socket location plus its long-poll twin.
type Endpoint struct {
	Socket string
	Poll   string
}

// DeriveEndpoint turns a REST base URL such as http://host:8080/api/v1 into
// ws://host:8080/ws. Everything from the first "api" path segment on is
// dropped.
func DeriveEndpoint(base, socketPath string) (Endpoint, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return Endpoint{}, fmt.Errorf("parse base url: %w", err)
	}
	if u.Host == "" {
		return Endpoint{}, fmt.Errorf("base url %q has no host", base)
	}

	var wsScheme, httpScheme string
	switch strings.ToLower(u.Scheme) {
	case "http", "ws":
		wsScheme, httpScheme = "ws", "http"
	case "https", "wss":
		wsScheme, httpScheme = "wss", "https"
	default:
		return Endpoint{}, fmt.Errorf("unsupported base url scheme %q", u.Scheme)
	}

	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	if !strings.HasPrefix(socketPath, "/") {
		socketPath = "/" + socketPath
	}

	path := stripAPIPath(u.Path) + socketPath
	return Endpoint{
		Socket: (&url.URL{Scheme: wsScheme, Host: u.Host, Path: path}).String(),
		Poll:   (&url.URL{Scheme: httpScheme, Host: u.Host, Path: path + pollSuffix}).String(),
	}, nil
}

func stripAPIPath(p string) string {
	segments := strings.Split(strings.Trim(p, "/"), "/")
	kept := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		if strings.EqualFold(seg, "api") {
			break
		}
		kept = append(kept, seg)
	}
	if len(kept) == 0 {
		return ""
	}
	return "/" + strings.Join(kept, "/")
}

// NewSource builds the configured transport bound to the board topic.
func NewSource(cfg FactoryConfig, api OriginProvider, handler Handler, clk clock.Clock, logger aqm.Logger) (Source, error) {
	switch cfg.Kind {
	case "", KindWebSocket:
		if api == nil || api.BaseURL() == "" {
			return nil, fmt.Errorf("websocket source: %w", ErrNotConfigured)
		}
		ep, err := DeriveEndpoint(api.BaseURL(), cfg.SocketPath)
		if err != nil {
			return nil, fmt.Errorf("websocket source: %w", err)
		}
		return NewWebSocketSource(WebSocketConfig{
			URL:     ep.Socket,
			PollURL: ep.Poll,
			Topic:   event.KitchenBoardTopic,
			Backoff: cfg.Backoff,
		}, handler, logger, clk), nil

	case KindNATS:
		if cfg.NATSURL == "" {
			return nil, fmt.Errorf("nats source: %w", ErrNotConfigured)
		}
		return NewNATSSource(NATSConfig{
			URL:     cfg.NATSURL,
			Subject: event.KitchenBoardTopic,
			Backoff: cfg.Backoff,
		}, handler, logger), nil

	case KindGRPC:
		if cfg.GRPCAddr == "" {
			return nil, fmt.Errorf("grpc source: %w", ErrNotConfigured)
		}
		return NewGRPCSource(GRPCConfig{
			Addr:    cfg.GRPCAddr,
			Topic:   event.KitchenBoardTopic,
			Backoff: cfg.Backoff,
		}, handler, logger, clk), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
}

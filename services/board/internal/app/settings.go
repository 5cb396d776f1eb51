package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/appetiteclub/kitchenboard/internal/engine"
	"github.com/appetiteclub/kitchenboard/internal/transport"
	"golang.org/x/text/language"
)

// ConfigReader is the part of *aqm.Config settings are read from.
type ConfigReader interface {
	GetString(key string) (string, bool)
}

type Settings struct {
	LogLevel string
	Engine   engine.Settings
}

// LoadSettings reads the board keys, applying defaults for missing ones.
func LoadSettings(cfg ConfigReader) (Settings, error) {
	s := Settings{
		LogLevel: "info",
		Engine:   engine.DefaultSettings(),
	}
	e := &s.Engine

	if v, ok := lookup(cfg, "log.level"); ok {
		s.LogLevel = v
	}
	if v, ok := lookup(cfg, "services.kitchen.url"); ok {
		e.KitchenURL = v
	}
	if v, ok := lookup(cfg, "board.transport"); ok {
		e.Transport = transport.Kind(strings.ToLower(v))
	}
	if v, ok := lookup(cfg, "board.socket.path"); ok {
		e.SocketPath = v
	}
	if v, ok := lookup(cfg, "nats.url"); ok {
		e.NATSURL = v
	}
	if v, ok := lookup(cfg, "services.kitchen.grpc_addr"); ok {
		e.GRPCAddr = v
	}
	if v, ok := lookup(cfg, "board.store.id"); ok {
		e.StoreID = v
	}

	if v, ok := lookup(cfg, "board.fetch.limit"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return s, fmt.Errorf("invalid board.fetch.limit %q", v)
		}
		e.FetchLimit = n
	}

	durations := []struct {
		key  string
		dest *time.Duration
	}{
		{"board.backoff.initial", &e.BackoffInitial},
		{"board.backoff.max", &e.BackoffMax},
		{"board.highlight.window", &e.HighlightWindow},
		{"board.availability.interval", &e.AvailabilityInterval},
	}
	for _, d := range durations {
		v, ok := lookup(cfg, d.key)
		if !ok {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed <= 0 {
			return s, fmt.Errorf("invalid %s %q", d.key, v)
		}
		*d.dest = parsed
	}

	if v, ok := lookup(cfg, "board.locale"); ok {
		tag, err := language.Parse(v)
		if err != nil {
			return s, fmt.Errorf("invalid board.locale %q: %w", v, err)
		}
		e.Locale = tag
	}

	if err := e.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

func lookup(cfg ConfigReader, key string) (string, bool) {
	if cfg == nil {
		return "", false
	}
	v, ok := cfg.GetString(key)
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Package engine assembles the board coordinator, its transport, the REST
// collaborator and the availability poller from one set of settings.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/appetiteclub/kitchenboard/internal/availability"
	"github.com/appetiteclub/kitchenboard/internal/board"
	"github.com/appetiteclub/kitchenboard/internal/clock"
	"github.com/appetiteclub/kitchenboard/internal/kitchenapi"
	"github.com/appetiteclub/kitchenboard/internal/transport"
	"github.com/aquamarinepk/aqm"
	"golang.org/x/text/language"
)

var ErrMissingKitchenURL = errors.New("kitchen service url is required")

type Settings struct {
	KitchenURL           string
	Transport            transport.Kind
	SocketPath           string
	NATSURL              string
	GRPCAddr             string
	FetchLimit           int
	StoreID              string
	BackoffInitial       time.Duration
	BackoffMax           time.Duration
	HighlightWindow      time.Duration
	AvailabilityInterval time.Duration
	Locale               language.Tag
}

func DefaultSettings() Settings {
	return Settings{
		Transport:            transport.KindWebSocket,
		SocketPath:           transport.DefaultSocketPath,
		FetchLimit:           kitchenapi.DefaultFetchLimit,
		BackoffInitial:       transport.DefaultInitialBackoff,
		BackoffMax:           transport.DefaultMaxBackoff,
		HighlightWindow:      board.DefaultHighlightWindow,
		AvailabilityInterval: availability.DefaultInterval,
		Locale:               language.English,
	}
}

// Validate reports settings the engine cannot start with.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.KitchenURL) == "" {
		return ErrMissingKitchenURL
	}
	switch s.Transport {
	case "", transport.KindWebSocket, transport.KindNATS, transport.KindGRPC:
	default:
		return fmt.Errorf("%w: %q", transport.ErrUnknownKind, s.Transport)
	}
	if s.BackoffMax > 0 && s.BackoffInitial > s.BackoffMax {
		return fmt.Errorf("backoff initial %s exceeds max %s", s.BackoffInitial, s.BackoffMax)
	}
	return nil
}

type Engine struct {
	API          *kitchenapi.Client
	Board        *board.Coordinator
	Availability *availability.Poller
}

// New wires the engine. Nothing runs until Start.
func New(s Settings, clk clock.Clock, logger aqm.Logger) (*Engine, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}

	api := kitchenapi.NewClient(s.KitchenURL)

	factoryCfg := transport.FactoryConfig{
		Kind:       s.Transport,
		SocketPath: s.SocketPath,
		NATSURL:    s.NATSURL,
		GRPCAddr:   s.GRPCAddr,
		Backoff: transport.BackoffConfig{
			Initial: s.BackoffInitial,
			Max:     s.BackoffMax,
		},
	}

	coordinator := board.NewCoordinator(board.Deps{
		NewSource: func(handler transport.Handler) (transport.Source, error) {
			return transport.NewSource(factoryCfg, api, handler, clk, logger)
		},
		API:    api,
		Clock:  clk,
		Logger: logger,
	}, board.Options{
		FetchLimit:      s.FetchLimit,
		StoreID:         s.StoreID,
		HighlightWindow: s.HighlightWindow,
		Locale:          s.Locale,
	})

	poller := availability.NewPoller(api, coordinator.SetAvailability, s.AvailabilityInterval, logger)

	return &Engine{
		API:          api,
		Board:        coordinator,
		Availability: poller,
	}, nil
}

// Start runs the coordinator first so the poller's first result has a
// reducer to land in.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.Board.Start(ctx); err != nil {
		return fmt.Errorf("start board: %w", err)
	}
	if err := e.Availability.Start(ctx); err != nil {
		return fmt.Errorf("start availability: %w", err)
	}
	return nil
}

func (e *Engine) Stop(ctx context.Context) error {
	var errs []error
	if err := e.Availability.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop availability: %w", err))
	}
	if err := e.Board.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop board: %w", err))
	}
	return errors.Join(errs...)
}

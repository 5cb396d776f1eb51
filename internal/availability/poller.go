// Package availability keeps the menu availability map fresh for out of
// stock flags.
package availability

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/robfig/cron/v3"
)

const DefaultInterval = 30 * time.Second

type Source interface {
	MenuAvailability(ctx context.Context) (map[int64]bool, error)
}

// Sink receives every successfully fetched availability map.
type Sink func(available map[int64]bool)

// Poller fetches availability on a fixed schedule and on demand.
type Poller struct {
	source   Source
	sink     Sink
	interval time.Duration
	logger   aqm.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	refresh sync.Mutex
}

func NewPoller(source Source, sink Sink, interval time.Duration, logger aqm.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Poller{
		source:   source,
		sink:     sink,
		interval: interval,
		logger:   logger.With("component", "availability-poller"),
	}
}

func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cron != nil {
		return nil
	}

	p.ctx, p.cancel = context.WithCancel(context.Background())
	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", p.interval), p.tick); err != nil {
		p.cancel()
		return fmt.Errorf("schedule availability poll: %w", err)
	}
	c.Start()
	p.cron = c

	go p.tick()

	p.logger.Info("availability poller started", "interval", p.interval.String())
	return nil
}

func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	c, cancel := p.cron, p.cancel
	p.cron, p.cancel = nil, nil
	p.mu.Unlock()
	if c == nil {
		return nil
	}

	cancel()
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	p.logger.Info("availability poller stopped")
	return nil
}

// Refresh fetches availability now and hands it to the sink. Concurrent
// refreshes are serialized.
func (p *Poller) Refresh(ctx context.Context) error {
	if p.source == nil {
		return errors.New("availability source not configured")
	}

	p.refresh.Lock()
	defer p.refresh.Unlock()

	available, err := p.source.MenuAvailability(ctx)
	if err != nil {
		return fmt.Errorf("refresh availability: %w", err)
	}
	if p.sink != nil {
		p.sink(available)
	}
	return nil
}

func (p *Poller) tick() {
	p.mu.Lock()
	ctx := p.ctx
	p.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	if err := p.Refresh(ctx); err != nil {
		p.logger.Info("availability poll failed", "error", err)
	}
}

package transport

import (
	"context"
	"sync"
	"time"

	"github.com/appetiteclub/kitchenboard/internal/clock"
	"github.com/aquamarinepk/aqm"
)

// runner owns the lifetime of one background connection loop.
type runner struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// start launches fn unless a loop is already running. The loop context is
// detached from the caller so Start returns immediately.
func (r *runner) start(fn func(ctx context.Context)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		fn(ctx)
	}(r.done)
}

func (r *runner) stop(ctx context.Context) error {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// reconnect runs connect until ctx is cancelled, waiting out the backoff
// between attempts. connect is expected to block while the connection is
// healthy and to reset the backoff once it is established.
func reconnect(ctx context.Context, clk clock.Clock, backoff *Backoff, state *connState, logger aqm.Logger, name string, connect func(ctx context.Context) error) {
	for {
		err := connect(ctx)
		state.set(false)
		if ctx.Err() != nil {
			return
		}

		delay := backoff.Next()
		logger.Info("board transport disconnected", "transport", name, "error", err, "retry_in", delay.String())

		select {
		case <-ctx.Done():
			return
		case <-clk.After(delay):
		}
	}
}

func withDefaults(logger aqm.Logger, clk clock.Clock) (aqm.Logger, clock.Clock) {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	if clk == nil {
		clk = clock.Real()
	}
	return logger, clk
}

const defaultDialTimeout = 10 * time.Second

package board

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/appetiteclub/kitchenboard/internal/clock"
	"github.com/appetiteclub/kitchenboard/internal/kitchenapi"
	"github.com/appetiteclub/kitchenboard/internal/transport"
	"github.com/appetiteclub/kitchenboard/pkg/enums/ticketstatus"
	"github.com/appetiteclub/kitchenboard/pkg/event"
	"github.com/aquamarinepk/aqm"
	"github.com/oklog/ulid/v2"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

var (
	ErrStopped         = errors.New("board coordinator stopped")
	ErrInvalidTicketID = errors.New("invalid ticket id")
)

const (
	inboxSize            = 64
	defaultSweepInterval = 250 * time.Millisecond
	defaultReorderWindow = 2 * time.Second

	originPull = "pull"
	originPush = "push"
)

// API is the REST surface the coordinator pulls from and mutates through.
type API interface {
	FetchBoard(ctx context.Context, q kitchenapi.BoardQuery) (any, error)
	UpdateStatus(ctx context.Context, id int64, status ticketstatus.Status) error
	CompleteOneUnit(ctx context.Context, id int64) error
	CompleteAllUnits(ctx context.Context, id int64) error
	ServeOneUnit(ctx context.Context, id int64) error
}

// SourceFunc builds the push transport bound to the coordinator's handler.
type SourceFunc func(handler transport.Handler) (transport.Source, error)

type Deps struct {
	NewSource SourceFunc
	API       API
	Clock     clock.Clock
	Logger    aqm.Logger
}

type Options struct {
	FetchLimit      int
	StoreID         string
	HighlightWindow time.Duration
	SweepInterval   time.Duration
	TickInterval    time.Duration
	Locale          language.Tag
	// ReorderWindow bounds how far behind the applied server time a
	// snapshot may be and still be treated as a late delivery. Anything
	// further behind is a backend clock step and is applied. Negative
	// disables the window.
	ReorderWindow time.Duration
}

type snapshotMsg struct {
	raw    any
	origin string
	done   chan struct{}
}

type pullFailedMsg struct {
	err  error
	done chan struct{}
}

type connMsg struct {
	connected bool
}

type rollbackMsg struct {
	id    int64
	clear bool
}

type availabilityMsg struct {
	available map[int64]bool
}

type syncMsg struct {
	done chan struct{}
}

// Coordinator owns the canonical board. Every mutation of board state runs
// on one reducer goroutine fed through the inbox; consumers read immutable
// State values.
type Coordinator struct {
	api    API
	clock  clock.Clock
	logger aqm.Logger
	opts   Options

	newSource SourceFunc
	source    transport.Source
	unsubConn func()

	inbox   chan any
	done    chan struct{}
	running atomic.Bool
	stopped atomic.Bool
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	lifecycleMu sync.Mutex
	started     bool

	state atomic.Pointer[State]

	subsMu sync.RWMutex
	subs   map[string]chan State

	// Reducer owned.
	board       Board
	hasBoard    bool
	fingerprint [32]byte
	clockSync   *ClockSync
	highlights  *HighlightTracker
	available   map[int64]bool
	connected   bool
	lastErr     string
	revision    string
	collator    *collate.Collator
	entropy     *ulid.MonotonicEntropy
}

func NewCoordinator(deps Deps, opts Options) *Coordinator {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Logger == nil {
		deps.Logger = aqm.NewNoopLogger()
	}
	if opts.FetchLimit <= 0 {
		opts.FetchLimit = kitchenapi.DefaultFetchLimit
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = defaultSweepInterval
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaultTickInterval
	}
	if opts.ReorderWindow == 0 {
		opts.ReorderWindow = defaultReorderWindow
	}
	if opts.Locale == language.Und {
		opts.Locale = language.English
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		api:        deps.API,
		clock:      deps.Clock,
		logger:     deps.Logger.With("component", "board-coordinator"),
		opts:       opts,
		newSource:  deps.NewSource,
		inbox:      make(chan any, inboxSize),
		done:       make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
		subs:       make(map[string]chan State),
		clockSync:  NewClockSync(deps.Clock, opts.TickInterval),
		highlights: NewHighlightTracker(opts.HighlightWindow),
		collator:   NewTableCollator(opts.Locale),
		entropy:    ulid.Monotonic(rand.Reader, 0),
	}
	c.state.Store(&State{Phase: PhaseIdle, Loading: true})
	return c
}

// Start opens the push transport, starts the reducer and kicks off the
// first pull. Calling Start twice is a no-op.
func (c *Coordinator) Start(ctx context.Context) error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	if c.stopped.Load() {
		return ErrStopped
	}
	if c.started {
		return nil
	}

	if c.newSource != nil {
		src, err := c.newSource(c.onTransportEvent)
		if err != nil {
			return fmt.Errorf("create board transport: %w", err)
		}
		c.source = src
		c.unsubConn = src.OnConnectionChange(func(connected bool) {
			c.post(connMsg{connected: connected})
		})
	}

	c.setPhase(PhaseConnecting)
	c.wg.Add(1)
	go c.run()
	c.started = true
	c.running.Store(true)

	if c.source != nil {
		if err := c.source.Start(ctx); err != nil {
			c.logger.Error("board transport did not start", "error", err)
		}
	}

	go func() {
		if err := c.pull(c.ctx); err != nil {
			c.logger.Info("initial board pull failed", "error", err)
		}
	}()

	c.logger.Info("board coordinator started")
	return nil
}

// Stop tears down the transport and all timers. Late responses are
// dropped. Stop is safe to call more than once.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	if c.stopped.Swap(true) {
		return nil
	}
	c.cancel()
	close(c.done)
	c.wg.Wait()

	var err error
	if c.unsubConn != nil {
		c.unsubConn()
	}
	if c.source != nil {
		err = c.source.Stop(ctx)
	}

	final := *c.state.Load()
	final.Phase = PhaseStopped
	final.Connected = false
	c.state.Store(&final)

	c.subsMu.Lock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.subsMu.Unlock()

	c.logger.Info("board coordinator stopped")
	return err
}

// State returns the latest published state.
func (c *Coordinator) State() State {
	return *c.state.Load()
}

// Subscribe returns a channel that always holds the most recent state not
// yet received. It is closed on Stop.
func (c *Coordinator) Subscribe(id string) <-chan State {
	ch := make(chan State, 1)
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	if c.stopped.Load() {
		close(ch)
		return ch
	}
	if old, ok := c.subs[id]; ok {
		close(old)
	}
	c.subs[id] = ch
	ch <- *c.state.Load()
	return ch
}

func (c *Coordinator) Unsubscribe(id string) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	if ch, ok := c.subs[id]; ok {
		close(ch)
		delete(c.subs, id)
	}
}

// Refresh performs a one-shot pull and returns once the reducer has
// applied or discarded the result, so State reflects it.
func (c *Coordinator) Refresh(ctx context.Context) error {
	if c.stopped.Load() {
		return ErrStopped
	}
	return c.pull(ctx)
}

func (c *Coordinator) UpdateStatus(ctx context.Context, id int64, status ticketstatus.Status) error {
	if !status.Known() {
		return fmt.Errorf("update status: unknown status %q", status.Code())
	}
	return c.mutate(ctx, "update status", id, func(ctx context.Context) error {
		return c.api.UpdateStatus(ctx, id, status)
	})
}

func (c *Coordinator) CompleteOneUnit(ctx context.Context, id int64) error {
	return c.mutate(ctx, "complete one unit", id, func(ctx context.Context) error {
		return c.api.CompleteOneUnit(ctx, id)
	})
}

func (c *Coordinator) CompleteAllUnits(ctx context.Context, id int64) error {
	return c.mutate(ctx, "complete all units", id, func(ctx context.Context) error {
		return c.api.CompleteAllUnits(ctx, id)
	})
}

func (c *Coordinator) ServeOneUnit(ctx context.Context, id int64) error {
	return c.mutate(ctx, "serve one unit", id, func(ctx context.Context) error {
		return c.api.ServeOneUnit(ctx, id)
	})
}

// Rollback moves a ready ticket back to in progress and flags it. The flag
// is cleared right away if the call fails.
func (c *Coordinator) Rollback(ctx context.Context, id int64) error {
	if c.stopped.Load() {
		return ErrStopped
	}
	if id <= 0 {
		return ErrInvalidTicketID
	}
	c.post(rollbackMsg{id: id})
	err := c.mutate(ctx, "rollback", id, func(ctx context.Context) error {
		return c.api.UpdateStatus(ctx, id, ticketstatus.Statuses.InProgress)
	})
	if err != nil {
		c.post(rollbackMsg{id: id, clear: true})
	}
	return err
}

// SetAvailability replaces the menu availability used for out of stock flags.
func (c *Coordinator) SetAvailability(available map[int64]bool) {
	c.post(availabilityMsg{available: available})
}

func (c *Coordinator) mutate(ctx context.Context, action string, id int64, call func(ctx context.Context) error) error {
	if c.stopped.Load() {
		return ErrStopped
	}
	if id <= 0 {
		return ErrInvalidTicketID
	}
	if c.api == nil {
		return fmt.Errorf("%s: %w", action, kitchenapi.ErrNotConfigured)
	}

	if err := call(ctx); err != nil {
		c.logger.Info("board action failed", "action", action, "ticket_id", id, "error", err)
		return fmt.Errorf("%s ticket %d: %w", action, id, err)
	}

	if err := c.pull(ctx); err != nil {
		c.logger.Info("refresh after action failed", "action", action, "ticket_id", id, "error", err)
	}
	return nil
}

func (c *Coordinator) pull(ctx context.Context) error {
	if c.api == nil {
		return kitchenapi.ErrNotConfigured
	}
	raw, err := c.api.FetchBoard(ctx, kitchenapi.BoardQuery{Limit: c.opts.FetchLimit, StoreID: c.opts.StoreID})
	done := make(chan struct{})
	if err != nil {
		c.await(ctx, pullFailedMsg{err: err, done: done}, done)
		return fmt.Errorf("pull board: %w", err)
	}
	c.await(ctx, snapshotMsg{raw: raw, origin: originPull, done: done}, done)
	return nil
}

// await posts msg and blocks until the reducer closes done. It returns
// early on stop, on ctx cancellation, or when the reducer is not running.
func (c *Coordinator) await(ctx context.Context, msg any, done chan struct{}) {
	if !c.post(msg) || !c.running.Load() {
		return
	}
	select {
	case <-done:
	case <-c.done:
	case <-ctx.Done():
	}
}

func (c *Coordinator) onTransportEvent(evt transport.Event) {
	if evt.Type != event.EventBoardSnapshot {
		c.logger.Debug("ignoring board transport event", "type", evt.Type)
		return
	}
	c.post(snapshotMsg{raw: evt.Payload, origin: originPush})
}

// post hands msg to the reducer unless the coordinator has been stopped.
func (c *Coordinator) post(msg any) bool {
	if c.stopped.Load() {
		return false
	}
	select {
	case c.inbox <- msg:
		return true
	case <-c.done:
		return false
	}
}

// sync blocks until every message posted before it has been reduced.
func (c *Coordinator) sync() {
	done := make(chan struct{})
	if !c.post(syncMsg{done: done}) {
		return
	}
	select {
	case <-done:
	case <-c.done:
	}
}

func (c *Coordinator) run() {
	defer c.wg.Done()
	sweep := c.clock.NewTicker(c.opts.SweepInterval)
	defer sweep.Stop()
	defer c.clockSync.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.inbox:
			c.reduce(msg)
		case <-c.clockSync.C():
			c.publish()
		case <-sweep.C:
			if c.highlights.Sweep(c.clock.Now()) > 0 {
				c.publish()
			}
		}
	}
}

func (c *Coordinator) reduce(msg any) {
	switch m := msg.(type) {
	case snapshotMsg:
		c.applySnapshot(m)
		if m.done != nil {
			close(m.done)
		}
	case pullFailedMsg:
		c.lastErr = m.err.Error()
		c.publish()
		if m.done != nil {
			close(m.done)
		}
	case connMsg:
		if c.connected != m.connected {
			c.connected = m.connected
			c.logger.Info("board transport connection changed", "connected", m.connected)
			c.publish()
		}
	case rollbackMsg:
		if m.clear {
			c.highlights.ClearRollback(m.id)
		} else {
			c.highlights.MarkRollback(m.id, c.clock.Now())
		}
		c.publish()
	case availabilityMsg:
		c.available = m.available
		c.publish()
	case syncMsg:
		close(m.done)
	}
}

func (c *Coordinator) applySnapshot(m snapshotMsg) {
	now := c.clock.Now()
	b, shape := Normalize(m.raw, now)
	if shape == ShapeUnknown {
		c.logger.Info("discarding unrecognized board payload", "origin", m.origin)
		return
	}

	// A pull that answered is a recovery even when its board is not new.
	recovered := m.origin == originPull && c.lastErr != ""
	if recovered {
		c.lastErr = ""
	}

	fp := b.Fingerprint()
	if c.hasBoard {
		if stale, reason := c.isStale(b, fp); stale {
			if reason == reasonLate {
				c.logger.Info("discarding late board snapshot", "origin", m.origin,
					"server_time", b.ServerTime, "applied_server_time", c.board.ServerTime)
			} else {
				c.logger.Debug("discarding board snapshot", "origin", m.origin, "reason", reason)
			}
			if recovered {
				c.publish()
			}
			return
		}
		if b.HasServerTime && c.board.HasServerTime && b.ServerTime.Before(c.board.ServerTime) {
			c.logger.Info("board server time moved backwards, applying snapshot", "origin", m.origin,
				"server_time", b.ServerTime, "applied_server_time", c.board.ServerTime)
		}
	}

	c.board = b
	c.hasBoard = true
	c.fingerprint = fp
	if c.clockSync.Observe(b) {
		c.clockSync.Restart()
	} else {
		c.logger.Debug("board snapshot without server time, keeping clock offset", "origin", m.origin)
		c.clockSync.Start()
	}
	c.lastErr = ""
	c.highlights.Observe(b, now)
	c.revision = ulid.MustNew(ulid.Timestamp(now), c.entropy).String()
	c.publish()
}

const (
	reasonDuplicate = "duplicate"
	reasonLate      = "late delivery"
)

// isStale reports whether b must not replace the current board. Identical
// content at the same server time (or with no server time) is a duplicate.
// A snapshot at most ReorderWindow behind the applied one is a late
// delivery. Any other differing server time wins, older or not.
func (c *Coordinator) isStale(b Board, fp [32]byte) (bool, string) {
	if !b.HasServerTime || !c.board.HasServerTime || b.ServerTime.Equal(c.board.ServerTime) {
		if fp == c.fingerprint {
			return true, reasonDuplicate
		}
		return false, ""
	}
	behind := c.board.ServerTime.Sub(b.ServerTime)
	if behind > 0 && behind <= c.opts.ReorderWindow {
		return true, reasonLate
	}
	return false, ""
}

func (c *Coordinator) phase() Phase {
	switch {
	case c.stopped.Load():
		return PhaseStopped
	case c.hasBoard:
		return PhaseLive
	case c.connected:
		return PhaseLoading
	default:
		return PhaseConnecting
	}
}

func (c *Coordinator) setPhase(p Phase) {
	st := *c.state.Load()
	st.Phase = p
	c.state.Store(&st)
}

func (c *Coordinator) publish() {
	now := c.clock.Now()
	highlights := c.highlights.Snapshot(now)
	outOfStock := OutOfStock(c.board, c.available)
	display := c.clockSync.Now()
	var offsetAt *time.Time
	if c.clockSync.Synced() {
		at := c.clockSync.UpdatedAt()
		offsetAt = &at
	}

	st := &State{
		Phase:           c.phase(),
		Connected:       c.connected,
		Loading:         !c.hasBoard,
		Error:           c.lastErr,
		Revision:        c.revision,
		ServerTime:      c.board.ServerTime,
		Now:             display,
		ClockOffsetMs:   c.clockSync.Offset().Milliseconds(),
		OffsetUpdatedAt: offsetAt,
		OffsetAgeMs:     c.clockSync.OffsetAge().Milliseconds(),
		Board:           c.board,
		Views: Derive(c.board, Decorations{
			Now:        display,
			Highlights: highlights,
			OutOfStock: outOfStock,
		}, c.collator),
		Highlights: highlights,
		OutOfStock: outOfStock,
	}
	c.state.Store(st)

	c.subsMu.RLock()
	defer c.subsMu.RUnlock()
	for _, ch := range c.subs {
		select {
		case ch <- *st:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- *st:
			default:
			}
		}
	}
}

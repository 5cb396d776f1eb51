package board

import (
	"time"

	"github.com/appetiteclub/kitchenboard/internal/clock"
)

const defaultTickInterval = time.Second

// ClockSync tracks the offset between server and local time and drives a
// display tick. The displayed time is always computed on read, so missed
// ticks never accumulate drift. It is owned by a single goroutine.
type ClockSync struct {
	clock     clock.Clock
	interval  time.Duration
	offset    time.Duration
	updatedAt time.Time
	synced    bool
	ticker    *clock.Ticker
}

func NewClockSync(c clock.Clock, interval time.Duration) *ClockSync {
	if interval <= 0 {
		interval = defaultTickInterval
	}
	return &ClockSync{clock: c, interval: interval}
}

// Observe records the offset carried by b. Boards without a server time
// leave the previous offset untouched and report false.
func (s *ClockSync) Observe(b Board) bool {
	if !b.HasServerTime {
		return false
	}
	now := s.clock.Now()
	s.offset = b.ServerTime.Sub(now)
	s.updatedAt = now
	s.synced = true
	return true
}

func (s *ClockSync) Offset() time.Duration {
	return s.offset
}

func (s *ClockSync) Synced() bool {
	return s.synced
}

// Now returns the current time on the server's clock.
func (s *ClockSync) Now() time.Time {
	return s.clock.Now().Add(s.offset)
}

// OffsetAge reports how long ago the offset was last refreshed.
func (s *ClockSync) OffsetAge() time.Duration {
	if !s.synced {
		return 0
	}
	return s.clock.Now().Sub(s.updatedAt)
}

func (s *ClockSync) UpdatedAt() time.Time {
	return s.updatedAt
}

// Restart replaces any running ticker with a fresh one.
func (s *ClockSync) Restart() {
	s.Stop()
	s.ticker = s.clock.NewTicker(s.interval)
}

// Start is a no-op while a ticker is running.
func (s *ClockSync) Start() {
	if s.ticker == nil {
		s.ticker = s.clock.NewTicker(s.interval)
	}
}

func (s *ClockSync) Stop() {
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
}

// C returns the tick channel, or nil when stopped so a select on it blocks.
func (s *ClockSync) C() <-chan time.Time {
	if s.ticker == nil {
		return nil
	}
	return s.ticker.C
}

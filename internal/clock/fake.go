package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually advanced Clock. Timers and tickers fire only from
// Advance, in deadline order.
type Fake struct {
	mu      sync.Mutex
	cond    *sync.Cond
	now     time.Time
	waiters []*waiter
}

type waiter struct {
	deadline time.Time
	interval time.Duration
	ch       chan time.Time
	stopped  bool
}

func NewFake(start time.Time) *Fake {
	f := &Fake{now: start}
	f.cond = sync.NewCond(&f.mu)
	return f
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := &waiter{deadline: f.now.Add(d), ch: make(chan time.Time, 1)}
	if d <= 0 {
		w.ch <- f.now
		return w.ch
	}
	f.add(w)
	return w.ch
}

func (f *Fake) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive ticker interval")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	w := &waiter{deadline: f.now.Add(d), interval: d, ch: make(chan time.Time, 1)}
	f.add(w)
	return &Ticker{C: w.ch, stop: func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		w.stopped = true
		f.remove(w)
	}}
}

// Set moves the clock to t without firing timers.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

// Advance moves the clock forward by d, firing every timer whose deadline
// falls inside the window. A ticker that is not drained drops ticks.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	target := f.now.Add(d)
	for {
		w := f.next(target)
		if w == nil {
			break
		}
		f.now = w.deadline
		select {
		case w.ch <- w.deadline:
		default:
		}
		if w.interval > 0 {
			w.deadline = w.deadline.Add(w.interval)
		} else {
			f.remove(w)
		}
	}
	f.now = target
}

// Pending returns the number of armed timers and tickers.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.waiters)
}

// WaitForTimers blocks until at least n timers or tickers are armed.
func (f *Fake) WaitForTimers(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for len(f.waiters) < n {
		f.cond.Wait()
	}
}

func (f *Fake) add(w *waiter) {
	f.waiters = append(f.waiters, w)
	f.cond.Broadcast()
}

func (f *Fake) remove(w *waiter) {
	for i, candidate := range f.waiters {
		if candidate == w {
			f.waiters = append(f.waiters[:i], f.waiters[i+1:]...)
			return
		}
	}
}

func (f *Fake) next(target time.Time) *waiter {
	sort.SliceStable(f.waiters, func(i, j int) bool {
		return f.waiters[i].deadline.Before(f.waiters[j].deadline)
	})
	for _, w := range f.waiters {
		if w.stopped {
			continue
		}
		if w.deadline.After(target) {
			return nil
		}
		return w
	}
	return nil
}

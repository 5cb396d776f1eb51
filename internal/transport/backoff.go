package transport

import "time"

const (
	DefaultInitialBackoff = time.Second
	DefaultMaxBackoff     = 30 * time.Second
)

// Backoff doubles the reconnect delay on each failure up to Max.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	current time.Duration
}

func NewBackoff(initial, max time.Duration) *Backoff {
	if initial <= 0 {
		initial = DefaultInitialBackoff
	}
	if max < initial {
		max = initial
	}
	return &Backoff{Initial: initial, Max: max}
}

// Next returns the delay to wait now and advances the schedule.
func (b *Backoff) Next() time.Duration {
	if b.current == 0 {
		b.current = b.Initial
	}
	d := b.current
	b.current = min(b.current*2, b.Max)
	return d
}

// Reset starts the schedule over after a successful connect.
func (b *Backoff) Reset() {
	b.current = 0
}

// Delay returns the delay for the given 1-based attempt without touching
// the running schedule.
func (b *Backoff) Delay(attempt int) time.Duration {
	d := b.Initial
	for i := 1; i < attempt && d < b.Max; i++ {
		d *= 2
	}
	return min(d, b.Max)
}

package board

import (
	"container/heap"
	"time"
)

const DefaultHighlightWindow = 5 * time.Second

type HighlightKind string

const (
	HighlightNew      HighlightKind = "NEW"
	HighlightRollback HighlightKind = "ROLLBACK"
)

type highlightSet int

const (
	setNewInWork highlightSet = iota
	setNewReady
	setRollback
)

type HighlightEntry struct {
	Kind      HighlightKind `json:"kind"`
	ExpiresAt time.Time     `json:"expiresAt"`
}

// Highlights is a read-only view of the live highlight sets.
type Highlights struct {
	NewInWork map[int64]HighlightEntry `json:"newInWork"`
	NewReady  map[int64]HighlightEntry `json:"newReady"`
	Rollback  map[int64]HighlightEntry `json:"rollback"`
}

// For returns the kind shown for id, preferring rollback over new.
func (h Highlights) For(id int64) (HighlightKind, bool) {
	if _, ok := h.Rollback[id]; ok {
		return HighlightRollback, true
	}
	if _, ok := h.NewInWork[id]; ok {
		return HighlightNew, true
	}
	if _, ok := h.NewReady[id]; ok {
		return HighlightNew, true
	}
	return "", false
}

type expiryKey struct {
	set highlightSet
	id  int64
}

type expiry struct {
	key   expiryKey
	at    time.Time
	index int
}

type expiryHeap []*expiry

func (h expiryHeap) Len() int           { return len(h) }
func (h expiryHeap) Less(i, j int) bool { return h[i].at.Before(h[j].at) }
func (h expiryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *expiryHeap) Push(x any) {
	e := x.(*expiry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// HighlightTracker flags tickets that recently entered a column or were
// rolled back. Each entry owns exactly one scheduled expiry; re-marking
// re-arms it. Expiries are collected by Sweep.
type HighlightTracker struct {
	window   time.Duration
	entries  map[expiryKey]*expiry
	queue    expiryHeap
	prevWork map[int64]struct{}
	prevDone map[int64]struct{}
}

func NewHighlightTracker(window time.Duration) *HighlightTracker {
	if window <= 0 {
		window = DefaultHighlightWindow
	}
	return &HighlightTracker{
		window:  window,
		entries: make(map[expiryKey]*expiry),
	}
}

// Observe diffs b against the previous board and marks ids that newly
// appeared in the work columns or the ready column. It returns how many
// ids were marked.
func (t *HighlightTracker) Observe(b Board, now time.Time) int {
	work := make(map[int64]struct{}, len(b.Pending)+len(b.InProgress))
	for _, tk := range b.Pending {
		work[tk.OrderDetailID] = struct{}{}
	}
	for _, tk := range b.InProgress {
		work[tk.OrderDetailID] = struct{}{}
	}
	done := make(map[int64]struct{}, len(b.Ready))
	for _, tk := range b.Ready {
		done[tk.OrderDetailID] = struct{}{}
	}

	marked := 0
	for id := range work {
		if _, seen := t.prevWork[id]; !seen {
			t.mark(setNewInWork, id, now)
			marked++
		}
	}
	for id := range done {
		if _, seen := t.prevDone[id]; !seen {
			t.mark(setNewReady, id, now)
			marked++
		}
	}

	t.prevWork = work
	t.prevDone = done
	return marked
}

func (t *HighlightTracker) MarkRollback(id int64, now time.Time) {
	t.mark(setRollback, id, now)
}

func (t *HighlightTracker) ClearRollback(id int64) {
	t.clear(expiryKey{set: setRollback, id: id})
}

// Sweep drops every entry that expired at or before now and reports how
// many were removed.
func (t *HighlightTracker) Sweep(now time.Time) int {
	removed := 0
	for t.queue.Len() > 0 && !t.queue[0].at.After(now) {
		e := heap.Pop(&t.queue).(*expiry)
		delete(t.entries, e.key)
		removed++
	}
	return removed
}

// Snapshot copies the entries still live at now.
func (t *HighlightTracker) Snapshot(now time.Time) Highlights {
	h := Highlights{
		NewInWork: make(map[int64]HighlightEntry),
		NewReady:  make(map[int64]HighlightEntry),
		Rollback:  make(map[int64]HighlightEntry),
	}
	for key, e := range t.entries {
		if !e.at.After(now) {
			continue
		}
		switch key.set {
		case setNewInWork:
			h.NewInWork[key.id] = HighlightEntry{Kind: HighlightNew, ExpiresAt: e.at}
		case setNewReady:
			h.NewReady[key.id] = HighlightEntry{Kind: HighlightNew, ExpiresAt: e.at}
		case setRollback:
			h.Rollback[key.id] = HighlightEntry{Kind: HighlightRollback, ExpiresAt: e.at}
		}
	}
	return h
}

func (t *HighlightTracker) mark(set highlightSet, id int64, now time.Time) {
	key := expiryKey{set: set, id: id}
	at := now.Add(t.window)
	if e, ok := t.entries[key]; ok {
		e.at = at
		heap.Fix(&t.queue, e.index)
		return
	}
	e := &expiry{key: key, at: at}
	heap.Push(&t.queue, e)
	t.entries[key] = e
}

func (t *HighlightTracker) clear(key expiryKey) {
	e, ok := t.entries[key]
	if !ok {
		return
	}
	heap.Remove(&t.queue, e.index)
	delete(t.entries, key)
}

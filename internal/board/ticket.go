package board

import (
	"encoding/json"
	"time"

	"github.com/appetiteclub/kitchenboard/pkg/enums/ticketstatus"
	"github.com/zeebo/blake3"
)

// Ticket is one order line as the kitchen prepares it.
type Ticket struct {
	OrderDetailID  int64               `json:"orderDetailId"`
	OrderID        *int64              `json:"orderId,omitempty"`
	TableNumber    string              `json:"tableNumber,omitempty"`
	MenuItemID     int64               `json:"menuItemId,omitempty"`
	DishName       string              `json:"dishName"`
	Quantity       int                 `json:"quantity"`
	Notes          string              `json:"notes,omitempty"`
	OrderedAt      time.Time           `json:"orderedAt"`
	ElapsedSeconds *int64              `json:"elapsedSeconds,omitempty"`
	Overtime       *bool               `json:"overtime,omitempty"`
	Status         ticketstatus.Status `json:"status"`
}

// Age returns how long the ticket has been waiting at now. Tickets without
// an order time fall back to the server supplied elapsed hint.
func (t Ticket) Age(now time.Time) time.Duration {
	if t.OrderedAt.IsZero() {
		if t.ElapsedSeconds != nil {
			return time.Duration(*t.ElapsedSeconds) * time.Second
		}
		return 0
	}
	age := now.Sub(t.OrderedAt)
	if age < 0 {
		return 0
	}
	return age
}

// Board is the canonical kitchen board: three disjoint buckets plus the
// server instant the snapshot was taken at.
type Board struct {
	ServerTime    time.Time `json:"serverTime"`
	HasServerTime bool      `json:"-"`
	Pending       []Ticket  `json:"pending"`
	InProgress    []Ticket  `json:"inProgress"`
	Ready         []Ticket  `json:"ready"`
}

func (b Board) Len() int {
	return len(b.Pending) + len(b.InProgress) + len(b.Ready)
}

// Fingerprint hashes the bucket contents. Server time is not part of it.
func (b Board) Fingerprint() [32]byte {
	data, err := json.Marshal(struct {
		Pending    []Ticket `json:"p"`
		InProgress []Ticket `json:"i"`
		Ready      []Ticket `json:"r"`
	}{b.Pending, b.InProgress, b.Ready})
	if err != nil {
		return [32]byte{}
	}
	return blake3.Sum256(data)
}

// dedupe keeps each id once, in the most advanced bucket it appears in.
func (b *Board) dedupe() {
	buckets := []*[]Ticket{&b.Pending, &b.InProgress, &b.Ready}
	last := make(map[int64]int)
	for i, bucket := range buckets {
		for _, t := range *bucket {
			last[t.OrderDetailID] = i
		}
	}

	seen := make(map[int64]bool)
	for i, bucket := range buckets {
		kept := make([]Ticket, 0, len(*bucket))
		for _, t := range *bucket {
			if last[t.OrderDetailID] != i || seen[t.OrderDetailID] {
				continue
			}
			seen[t.OrderDetailID] = true
			kept = append(kept, t)
		}
		*bucket = kept
	}
}

package board

import "time"

// Phase describes how far the board has come since start.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseConnecting Phase = "connecting"
	PhaseLoading    Phase = "loading"
	PhaseLive       Phase = "live"
	PhaseStopped    Phase = "stopped"
)

// State is an immutable snapshot handed to consumers. Maps and slices
// must not be modified.
type State struct {
	Phase           Phase          `json:"phase"`
	Connected       bool           `json:"connected"`
	Loading         bool           `json:"loading"`
	Error           string         `json:"error,omitempty"`
	Revision        string         `json:"revision,omitempty"`
	ServerTime      time.Time      `json:"serverTime"`
	Now             time.Time      `json:"now"`
	ClockOffsetMs   int64          `json:"clockOffsetMs"`
	// OffsetUpdatedAt is nil until a snapshot carried a server time.
	OffsetUpdatedAt *time.Time     `json:"offsetUpdatedAt,omitempty"`
	OffsetAgeMs     int64          `json:"offsetAgeMs"`
	Board           Board          `json:"-"`
	Views           Views          `json:"views"`
	Highlights      Highlights     `json:"highlights"`
	OutOfStock      map[int64]bool `json:"outOfStock,omitempty"`
}

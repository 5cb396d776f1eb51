package ticketstatus

import (
	"regexp"
	"strings"
)

type Status struct {
	Name string
}

func (s Status) Code() string {
	return s.Name
}

func (s Status) Label() string {
	parts := strings.Split(strings.ToLower(s.Name), "_")
	for i := range parts {
		if len(parts[i]) > 0 {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, " ")
}

func (s Status) IsZero() bool {
	return s.Name == ""
}

// Known reports whether s is one of the canonical statuses.
func (s Status) Known() bool {
	return ByName(s.Name) != nil
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.Name), nil
}

// UnmarshalText normalizes the incoming value so decoded statuses are never raw.
func (s *Status) UnmarshalText(text []byte) error {
	s.Name = Normalize(string(text))
	return nil
}

type Enum struct {
	Pending    Status
	InProgress Status
	Done       Status
	Canceled   Status
	Served     Status
}

var Statuses = Enum{
	Pending:    Status{Name: "PENDING"},
	InProgress: Status{Name: "IN_PROGRESS"},
	Done:       Status{Name: "DONE"},
	Canceled:   Status{Name: "CANCELED"},
	Served:     Status{Name: "SERVED"},
}

var All = []Status{
	Statuses.Pending,
	Statuses.InProgress,
	Statuses.Done,
	Statuses.Canceled,
	Statuses.Served,
}

// ByName returns the status for a given canonical name, or nil if not found
func ByName(name string) *Status {
	for _, s := range All {
		if s.Name == name {
			return &s
		}
	}
	return nil
}

var synonyms = map[string]string{
	"READY":          "DONE",
	"READY_TO_SERVE": "DONE",
	"PREPARED":       "DONE",
	"WAITING_SUPPLY": "DONE",
	"COMPLETED":      "DONE",
	"PREPARING":      "IN_PROGRESS",
	"COOKING":        "IN_PROGRESS",
	"WORKING":        "IN_PROGRESS",
	"STARTED":        "IN_PROGRESS",
	"IN_PROGESS":     "IN_PROGRESS",
	"CANCELLED":      "CANCELED",
	"REJECT":         "CANCELED",
	"REJECTED":       "CANCELED",
	"DELIVERED":      "SERVED",
	"CREATED":        "PENDING",
	"NEW":            "PENDING",
	"ACCEPTED":       "PENDING",
	"ORDERED":        "PENDING",
}

var separators = regexp.MustCompile(`[\s_-]+`)

// Normalize upper-cases raw, collapses separators into underscores and
// folds known synonyms onto their canonical name. Unknown values are
// returned in normalized casing.
func Normalize(raw string) string {
	code := strings.ToUpper(strings.TrimSpace(raw))
	code = strings.Trim(separators.ReplaceAllString(code, "_"), "_")
	if canonical, ok := synonyms[code]; ok {
		return canonical
	}
	return code
}

// Parse normalizes raw and reports whether it maps to a canonical status.
func Parse(raw string) (Status, bool) {
	st := ByName(Normalize(raw))
	if st == nil {
		return Status{Name: Normalize(raw)}, false
	}
	return *st, true
}

package board

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// NoTable groups tickets that carry no table number.
const NoTable = "N/A"

// Decorations is the per-render context cards are annotated with.
type Decorations struct {
	Now        time.Time
	Highlights Highlights
	OutOfStock map[int64]bool
}

// Card is a ticket annotated for display.
type Card struct {
	Ticket
	Highlight  HighlightKind `json:"highlight,omitempty"`
	OutOfStock bool          `json:"outOfStock,omitempty"`
	Elapsed    int64         `json:"elapsed"`
}

type DishGroup struct {
	Key           string    `json:"key"`
	DishName      string    `json:"dishName"`
	Notes         string    `json:"notes,omitempty"`
	TotalQuantity int       `json:"totalQuantity"`
	EarliestAt    time.Time `json:"earliestAt"`
	Cards         []Card    `json:"cards"`
}

type TableGroup struct {
	Table string `json:"table"`
	Cards []Card `json:"cards"`
}

// Views are the orderings a kitchen display renders.
type Views struct {
	Priority []Card       `json:"priority"`
	ByDish   []DishGroup  `json:"byDish"`
	ByTable  []TableGroup `json:"byTable"`
	Ready    []Card       `json:"ready"`
}

// NewTableCollator returns a collator that orders table labels
// naturally ("2" before "10") and ignores case.
func NewTableCollator(tag language.Tag) *collate.Collator {
	return collate.New(tag, collate.Numeric, collate.IgnoreCase)
}

// Derive computes every view from b. The collator is not safe for
// concurrent use.
func Derive(b Board, d Decorations, col *collate.Collator) Views {
	work := Decorate(append(append([]Ticket(nil), b.Pending...), b.InProgress...), d)
	return Views{
		Priority: PriorityList(work),
		ByDish:   GroupByDish(work),
		ByTable:  GroupByTable(work, col),
		Ready:    ReadyList(Decorate(b.Ready, d)),
	}
}

func Decorate(tickets []Ticket, d Decorations) []Card {
	cards := make([]Card, 0, len(tickets))
	for _, t := range tickets {
		c := Card{Ticket: t, OutOfStock: d.OutOfStock[t.OrderDetailID]}
		if kind, ok := d.Highlights.For(t.OrderDetailID); ok {
			c.Highlight = kind
		}
		if !d.Now.IsZero() {
			c.Elapsed = int64(t.Age(d.Now) / time.Second)
		}
		cards = append(cards, c)
	}
	return cards
}

// PriorityList orders cards oldest first. Cards without an order time
// sort before all others; ties break on id.
func PriorityList(cards []Card) []Card {
	out := append([]Card(nil), cards...)
	sort.SliceStable(out, func(i, j int) bool {
		return olderFirst(out[i].Ticket, out[j].Ticket)
	})
	return out
}

// ReadyList orders ready cards newest first.
func ReadyList(cards []Card) []Card {
	out := append([]Card(nil), cards...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.OrderedAt.Equal(b.OrderedAt) {
			return a.OrderedAt.After(b.OrderedAt)
		}
		return a.OrderDetailID < b.OrderDetailID
	})
	return out
}

// GroupByDish merges cards for the same dish with equivalent notes.
// Groups are ordered by their oldest card.
func GroupByDish(cards []Card) []DishGroup {
	index := make(map[string]int)
	var groups []DishGroup
	for _, c := range PriorityList(cards) {
		key := c.DishName + "__" + NormalizeNotes(c.Notes)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, DishGroup{
				Key:        key,
				DishName:   c.DishName,
				Notes:      strings.TrimSpace(c.Notes),
				EarliestAt: c.OrderedAt,
			})
		}
		g := &groups[i]
		g.TotalQuantity += c.Quantity
		g.Cards = append(g.Cards, c)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if !a.EarliestAt.Equal(b.EarliestAt) {
			return a.EarliestAt.Before(b.EarliestAt)
		}
		return a.Key < b.Key
	})
	return groups
}

// GroupByTable buckets cards by table label in natural order. The NoTable
// group is collated like any other label.
func GroupByTable(cards []Card, col *collate.Collator) []TableGroup {
	if col == nil {
		col = NewTableCollator(language.English)
	}
	index := make(map[string]int)
	var groups []TableGroup
	for _, c := range PriorityList(cards) {
		table := strings.TrimSpace(c.TableNumber)
		if table == "" {
			table = NoTable
		}
		i, ok := index[table]
		if !ok {
			i = len(groups)
			index[table] = i
			groups = append(groups, TableGroup{Table: table})
		}
		groups[i].Cards = append(groups[i].Cards, c)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return col.CompareString(groups[i].Table, groups[j].Table) < 0
	})
	return groups
}

// NormalizeNotes lower-cases notes and collapses whitespace so trivially
// different notes group together.
func NormalizeNotes(notes string) string {
	return strings.Join(strings.Fields(strings.ToLower(notes)), " ")
}

// OutOfStock returns the ids of tickets whose menu item is reported
// unavailable.
func OutOfStock(b Board, available map[int64]bool) map[int64]bool {
	out := make(map[int64]bool)
	if len(available) == 0 {
		return out
	}
	for _, bucket := range [][]Ticket{b.Pending, b.InProgress, b.Ready} {
		for _, t := range bucket {
			if ok, known := available[t.MenuItemID]; known && !ok {
				out[t.OrderDetailID] = true
			}
		}
	}
	return out
}

func olderFirst(a, b Ticket) bool {
	az, bz := a.OrderedAt.IsZero(), b.OrderedAt.IsZero()
	switch {
	case az && !bz:
		return true
	case !az && bz:
		return false
	case !a.OrderedAt.Equal(b.OrderedAt):
		return a.OrderedAt.Before(b.OrderedAt)
	}
	return a.OrderDetailID < b.OrderDetailID
}

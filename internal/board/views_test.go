package board

import (
	"testing"
	"time"

	"golang.org/x/text/language"
)

func cardIDs(cards []Card) []int64 {
	out := make([]int64, len(cards))
	for i, c := range cards {
		out[i] = c.OrderDetailID
	}
	return out
}

func TestPriorityList(t *testing.T) {
	tickets := []Ticket{
		{OrderDetailID: 3, DishName: "Soup", TableNumber: "1", OrderedAt: epoch.Add(3 * time.Second)},
		{OrderDetailID: 1, DishName: "Soup", TableNumber: "1", OrderedAt: epoch.Add(1 * time.Second)},
		{OrderDetailID: 2, DishName: "Soup", TableNumber: "1", OrderedAt: epoch.Add(2 * time.Second)},
	}

	got := cardIDs(PriorityList(Decorate(tickets, Decorations{})))
	if !equalIDs(got, []int64{1, 2, 3}) {
		t.Errorf("expected [1 2 3], got %v", got)
	}
}

func TestPriorityListMissingTimeAndTies(t *testing.T) {
	tickets := []Ticket{
		{OrderDetailID: 9, OrderedAt: epoch},
		{OrderDetailID: 5, OrderedAt: epoch},
		{OrderDetailID: 7},
	}

	got := cardIDs(PriorityList(Decorate(tickets, Decorations{})))
	if !equalIDs(got, []int64{7, 5, 9}) {
		t.Errorf("expected [7 5 9], got %v", got)
	}
}

func TestGroupByDishFoldsCase(t *testing.T) {
	tickets := []Ticket{
		{OrderDetailID: 1, DishName: "Pho", Notes: "no onion", Quantity: 1, OrderedAt: epoch.Add(time.Second)},
		{OrderDetailID: 2, DishName: "Pho", Notes: "No  Onion ", Quantity: 2, OrderedAt: epoch},
		{OrderDetailID: 3, DishName: "Pho", Quantity: 1, OrderedAt: epoch.Add(-time.Second)},
	}

	groups := GroupByDish(Decorate(tickets, Decorations{}))
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}

	plain, noOnion := groups[0], groups[1]
	if plain.Key != "Pho__" || plain.TotalQuantity != 1 {
		t.Errorf("unexpected plain group %+v", plain)
	}
	if noOnion.Key != "Pho__no onion" {
		t.Errorf("unexpected key %q", noOnion.Key)
	}
	if noOnion.TotalQuantity != 3 {
		t.Errorf("expected summed quantity 3, got %d", noOnion.TotalQuantity)
	}
	if !noOnion.EarliestAt.Equal(epoch) {
		t.Errorf("expected earliest %v, got %v", epoch, noOnion.EarliestAt)
	}
}

func TestGroupByTable(t *testing.T) {
	tickets := []Ticket{
		{OrderDetailID: 1, TableNumber: "10", OrderedAt: epoch},
		{OrderDetailID: 2, TableNumber: "", OrderedAt: epoch},
		{OrderDetailID: 3, TableNumber: "2", OrderedAt: epoch.Add(time.Second)},
		{OrderDetailID: 4, TableNumber: "b", OrderedAt: epoch},
		{OrderDetailID: 5, TableNumber: "2", OrderedAt: epoch},
		{OrderDetailID: 6, TableNumber: "A", OrderedAt: epoch},
		{OrderDetailID: 7, TableNumber: "patio", OrderedAt: epoch},
	}

	groups := GroupByTable(Decorate(tickets, Decorations{}), NewTableCollator(language.English))

	var tables []string
	for _, g := range groups {
		tables = append(tables, g.Table)
	}
	want := []string{"2", "10", "A", "b", NoTable, "patio"}
	if len(tables) != len(want) {
		t.Fatalf("expected %v, got %v", want, tables)
	}
	for i := range want {
		if tables[i] != want[i] {
			t.Errorf("position %d: expected %q, got %q", i, want[i], tables[i])
		}
	}

	if got := cardIDs(groups[0].Cards); !equalIDs(got, []int64{5, 3}) {
		t.Errorf("expected table 2 items oldest first, got %v", got)
	}
}

func TestReadyListNewestFirst(t *testing.T) {
	tickets := []Ticket{
		{OrderDetailID: 1, OrderedAt: epoch},
		{OrderDetailID: 2, OrderedAt: epoch.Add(2 * time.Second)},
		{OrderDetailID: 3, OrderedAt: epoch.Add(time.Second)},
	}
	got := cardIDs(ReadyList(Decorate(tickets, Decorations{})))
	if !equalIDs(got, []int64{2, 3, 1}) {
		t.Errorf("expected [2 3 1], got %v", got)
	}
}

func TestDeriveDecoratesCards(t *testing.T) {
	elapsed := int64(42)
	b := Board{
		Pending: []Ticket{
			{OrderDetailID: 1, MenuItemID: 100, OrderedAt: epoch.Add(-90 * time.Second)},
			{OrderDetailID: 2, MenuItemID: 200, ElapsedSeconds: &elapsed},
		},
		Ready: []Ticket{{OrderDetailID: 3, MenuItemID: 100, OrderedAt: epoch}},
	}
	h := NewHighlightTracker(time.Minute)
	h.Observe(Board{Pending: []Ticket{{OrderDetailID: 1}}}, epoch)
	h.MarkRollback(3, epoch)

	v := Derive(b, Decorations{
		Now:        epoch,
		Highlights: h.Snapshot(epoch),
		OutOfStock: OutOfStock(b, map[int64]bool{100: false, 200: true}),
	}, nil)

	if len(v.Priority) != 2 || len(v.Ready) != 1 {
		t.Fatalf("unexpected view sizes %d/%d", len(v.Priority), len(v.Ready))
	}
	first := v.Priority[0]
	if first.OrderDetailID != 2 {
		t.Fatalf("expected ticket without order time first, got %d", first.OrderDetailID)
	}
	if first.Elapsed != 42 || first.OutOfStock || first.Highlight != "" {
		t.Errorf("unexpected decoration %+v", first)
	}

	second := v.Priority[1]
	if second.Elapsed != 90 || !second.OutOfStock || second.Highlight != HighlightNew {
		t.Errorf("unexpected decoration %+v", second)
	}

	ready := v.Ready[0]
	if ready.Highlight != HighlightRollback || !ready.OutOfStock {
		t.Errorf("unexpected ready decoration %+v", ready)
	}
}

func TestNormalizeNotes(t *testing.T) {
	if got := NormalizeNotes("  No   ONION\tplease "); got != "no onion please" {
		t.Errorf("unexpected normalized notes %q", got)
	}
}

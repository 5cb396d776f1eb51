package board

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/appetiteclub/kitchenboard/pkg/enums/ticketstatus"
)

var epoch = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func decode(t *testing.T, doc string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(doc), &v); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	return v
}

func ids(tickets []Ticket) []int64 {
	out := make([]int64, len(tickets))
	for i, t := range tickets {
		out[i] = t.OrderDetailID
	}
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

const splitDoc = `{
	"serverTime": "2024-01-01T10:00:00Z",
	"pending": [{"orderDetailId": 1, "dishName": "Soup", "quantity": 2, "tableNumber": "5", "orderedAt": "2024-01-01T09:59:50Z", "status": "PENDING"}],
	"inProgress": [{"orderDetailId": 2, "dishName": "Pho", "quantity": 1, "tableNumber": 7, "orderedAt": "2024-01-01T09:58:00Z", "status": "cooking"}],
	"ready": [{"orderDetailId": 3, "dishName": "Rice", "quantity": 1, "orderedAt": "2024-01-01T09:50:00Z", "status": "ready"}]
}`

const flatDoc = `{
	"serverTime": "2024-01-01T10:00:00Z",
	"items": [
		{"orderDetailId": 1, "dishName": "Soup", "quantity": 2, "tableNumber": "5", "orderedAt": "2024-01-01T09:59:50Z", "status": "pending"},
		{"orderDetailId": 2, "dishName": "Pho", "quantity": 1, "tableNumber": "7", "orderedAt": "2024-01-01T09:58:00Z", "status": "IN_PROGRESS"},
		{"orderDetailId": 3, "dishName": "Rice", "quantity": 1, "orderedAt": "2024-01-01T09:50:00Z", "status": "READY_TO_SERVE"},
		{"orderDetailId": 4, "dishName": "Tea", "quantity": 1, "status": "served"},
		{"orderDetailId": 5, "dishName": "Cake", "quantity": 1, "status": "cancelled"}
	]
}`

func TestNormalizeShapesAreEquivalent(t *testing.T) {
	wrappedDoc := `{"data": ` + splitDoc + `}`
	doubleWrappedDoc := `{"data": {"data": ` + flatDoc + `}}`

	tests := []struct {
		name  string
		doc   string
		shape Shape
	}{
		{name: "split", doc: splitDoc, shape: ShapeSplit},
		{name: "flat", doc: flatDoc, shape: ShapeFlat},
		{name: "wrapped", doc: wrappedDoc, shape: ShapeWrapped},
		{name: "doubleWrapped", doc: doubleWrappedDoc, shape: ShapeWrapped},
	}

	reference, _ := Normalize(decode(t, splitDoc), epoch)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, shape := Normalize(decode(t, tt.doc), epoch)
			if shape != tt.shape {
				t.Fatalf("expected shape %s, got %s", tt.shape, shape)
			}
			if !b.HasServerTime || !b.ServerTime.Equal(epoch) {
				t.Errorf("unexpected server time %v", b.ServerTime)
			}
			if b.Fingerprint() != reference.Fingerprint() {
				t.Errorf("board differs from split reference:\n got %+v\nwant %+v", b, reference)
			}
		})
	}
}

func TestNormalizeDecodesFields(t *testing.T) {
	b, _ := Normalize(decode(t, splitDoc), epoch)

	if len(b.Pending) != 1 || len(b.InProgress) != 1 || len(b.Ready) != 1 {
		t.Fatalf("unexpected bucket sizes %d/%d/%d", len(b.Pending), len(b.InProgress), len(b.Ready))
	}

	soup := b.Pending[0]
	if soup.DishName != "Soup" || soup.Quantity != 2 || soup.TableNumber != "5" {
		t.Errorf("unexpected ticket %+v", soup)
	}
	if !soup.OrderedAt.Equal(epoch.Add(-10 * time.Second)) {
		t.Errorf("unexpected orderedAt %v", soup.OrderedAt)
	}
	if soup.Status != ticketstatus.Statuses.Pending {
		t.Errorf("unexpected status %s", soup.Status.Code())
	}

	if got := b.InProgress[0].TableNumber; got != "7" {
		t.Errorf("expected numeric table normalized to string, got %q", got)
	}
	if got := b.Ready[0].Status; got != ticketstatus.Statuses.Done {
		t.Errorf("expected ready bucket status DONE, got %s", got.Code())
	}
}

func TestNormalizeSnakeCaseAndStrings(t *testing.T) {
	doc := `{
		"server_time": "2024-01-01 10:00:00",
		"in_progress": [{"order_detail_id": "42", "order_id": "7", "dish_name": "Pho", "quantity": "3",
			"table_number": 12, "menu_item_id": 9, "ordered_at": "2024-01-01 09:55:00",
			"elapsed_seconds": 300, "is_overtime": true, "notes": " no onion "}]
	}`

	b, shape := Normalize(decode(t, doc), epoch)
	if shape != ShapeSplit {
		t.Fatalf("expected split, got %s", shape)
	}
	if !b.ServerTime.Equal(epoch) {
		t.Errorf("expected lenient server time parse, got %v", b.ServerTime)
	}
	if len(b.InProgress) != 1 {
		t.Fatalf("expected one ticket in progress, got %d", len(b.InProgress))
	}

	tk := b.InProgress[0]
	if tk.OrderDetailID != 42 || tk.Quantity != 3 || tk.MenuItemID != 9 {
		t.Errorf("unexpected numeric fields %+v", tk)
	}
	if tk.OrderID == nil || *tk.OrderID != 7 {
		t.Errorf("unexpected order id %v", tk.OrderID)
	}
	if tk.TableNumber != "12" {
		t.Errorf("unexpected table %q", tk.TableNumber)
	}
	if tk.ElapsedSeconds == nil || *tk.ElapsedSeconds != 300 {
		t.Errorf("unexpected elapsed %v", tk.ElapsedSeconds)
	}
	if tk.Overtime == nil || !*tk.Overtime {
		t.Errorf("unexpected overtime %v", tk.Overtime)
	}
	if tk.Notes != "no onion" {
		t.Errorf("unexpected notes %q", tk.Notes)
	}
	if !tk.OrderedAt.Equal(epoch.Add(-5 * time.Minute)) {
		t.Errorf("unexpected orderedAt %v", tk.OrderedAt)
	}
}

func TestNormalizeReadyKeyPriority(t *testing.T) {
	doc := `{
		"serverTime": "2024-01-01T10:00:00Z",
		"pending": [],
		"inProgress": [],
		"readyToServe": [{"orderDetailId": 20, "dishName": "Ignored"}],
		"ready": [{"orderDetailId": 10, "dishName": "Kept"}]
	}`

	b, _ := Normalize(decode(t, doc), epoch)
	if !equalIDs(ids(b.Ready), []int64{10}) {
		t.Errorf("expected ready bucket from 'ready' only, got %v", ids(b.Ready))
	}
}

func TestNormalizeReadyFallbackKeys(t *testing.T) {
	doc := `{"pending": [], "waitingSupply": [{"orderDetailId": 4}], "prepared": [{"orderDetailId": 3}]}`
	b, _ := Normalize(decode(t, doc), epoch)
	if !equalIDs(ids(b.Ready), []int64{3}) {
		t.Errorf("expected 'prepared' to win over 'waitingSupply', got %v", ids(b.Ready))
	}
}

func TestNormalizeMostAdvancedBucketWins(t *testing.T) {
	doc := `{
		"pending": [{"orderDetailId": 1}, {"orderDetailId": 2}],
		"inProgress": [{"orderDetailId": 1}],
		"ready": [{"orderDetailId": 2}]
	}`

	b, _ := Normalize(decode(t, doc), epoch)
	if len(b.Pending) != 0 {
		t.Errorf("expected pending to be emptied, got %v", ids(b.Pending))
	}
	if !equalIDs(ids(b.InProgress), []int64{1}) {
		t.Errorf("unexpected in progress %v", ids(b.InProgress))
	}
	if !equalIDs(ids(b.Ready), []int64{2}) {
		t.Errorf("unexpected ready %v", ids(b.Ready))
	}
}

func TestNormalizeFlatRouting(t *testing.T) {
	doc := `{"items": [
		{"orderDetailId": 1, "status": "on hold"},
		{"orderDetailId": 2},
		{"orderDetailId": 3, "status": "rejected"},
		{"orderDetailId": 4, "status": "delivered"},
		{"orderDetailId": 5, "status": "prepared"}
	]}`

	b, shape := Normalize(decode(t, doc), epoch)
	if shape != ShapeFlat {
		t.Fatalf("expected flat, got %s", shape)
	}
	if !equalIDs(ids(b.Pending), []int64{1, 2}) {
		t.Errorf("expected unrecognized statuses routed to pending, got %v", ids(b.Pending))
	}
	for _, tk := range b.Pending {
		if tk.Status != ticketstatus.Statuses.Pending {
			t.Errorf("ticket %d: expected PENDING, got %s", tk.OrderDetailID, tk.Status.Code())
		}
	}
	if !equalIDs(ids(b.Ready), []int64{5}) {
		t.Errorf("unexpected ready %v", ids(b.Ready))
	}
	if b.HasServerTime {
		t.Error("expected no server time")
	}
}

func TestNormalizeUnknownShapes(t *testing.T) {
	deep := `{"items": []}`
	for i := 0; i < maxWrapDepth+1; i++ {
		deep = `{"data": ` + deep + `}`
	}

	tests := []struct {
		name string
		raw  any
	}{
		{name: "nil", raw: nil},
		{name: "string", raw: "hello"},
		{name: "array", raw: []any{1, 2}},
		{name: "emptyObject", raw: map[string]any{}},
		{name: "wrappedGarbage", raw: map[string]any{"data": "nope"}},
		{name: "pendingNotArray", raw: map[string]any{"pending": "x"}},
		{name: "tooDeep", raw: decode(t, deep)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, shape := Normalize(tt.raw, epoch)
			if shape != ShapeUnknown {
				t.Fatalf("expected unknown shape, got %s", shape)
			}
			if b.Len() != 0 {
				t.Errorf("expected empty board, got %d tickets", b.Len())
			}
			if !b.ServerTime.Equal(epoch) || b.HasServerTime {
				t.Errorf("expected board stamped with local time only, got %v/%v", b.ServerTime, b.HasServerTime)
			}
		})
	}
}

func TestNormalizeWrappedInheritsServerTime(t *testing.T) {
	raw := map[string]any{
		"serverTime": "2024-01-01T10:00:00Z",
		"payload":    map[string]any{"items": []any{map[string]any{"orderDetailId": 1}}},
	}
	b, shape := Normalize(raw, epoch.Add(time.Hour))
	if shape != ShapeWrapped {
		t.Fatalf("expected wrapped, got %s", shape)
	}
	if !b.HasServerTime || !b.ServerTime.Equal(epoch) {
		t.Errorf("expected outer server time, got %v", b.ServerTime)
	}
}

func TestNormalizeSkipsTicketsWithoutID(t *testing.T) {
	raw := map[string]any{"pending": []any{
		map[string]any{"dishName": "Ghost"},
		map[string]any{"orderDetailId": 0},
		"not an object",
		map[string]any{"id": 8},
	}}
	b, _ := Normalize(raw, epoch)
	if !equalIDs(ids(b.Pending), []int64{8}) {
		t.Errorf("unexpected pending %v", ids(b.Pending))
	}
	if b.Pending[0].Quantity != 1 {
		t.Errorf("expected default quantity 1, got %d", b.Pending[0].Quantity)
	}
}

func TestNormalizeCBORStyleMaps(t *testing.T) {
	raw := map[string]any{
		"serverTime": uint64(epoch.UnixMilli()),
		"pending": []any{map[any]any{
			"orderDetailId": uint64(11),
			"quantity":      int64(2),
		}},
	}
	b, _ := Normalize(raw, epoch)
	if !equalIDs(ids(b.Pending), []int64{11}) {
		t.Fatalf("unexpected pending %v", ids(b.Pending))
	}
	if b.Pending[0].Quantity != 2 {
		t.Errorf("unexpected quantity %d", b.Pending[0].Quantity)
	}
	if !b.ServerTime.Equal(epoch) {
		t.Errorf("expected epoch millis server time, got %v", b.ServerTime)
	}
}

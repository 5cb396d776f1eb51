package board

import (
	"time"

	"github.com/appetiteclub/kitchenboard/pkg/enums/ticketstatus"
)

// Shape tags the payload layout a snapshot arrived in.
type Shape int

const (
	ShapeUnknown Shape = iota
	ShapeSplit
	ShapeFlat
	ShapeWrapped
)

func (s Shape) String() string {
	switch s {
	case ShapeSplit:
		return "split"
	case ShapeFlat:
		return "flat"
	case ShapeWrapped:
		return "wrapped"
	default:
		return "unknown"
	}
}

const maxWrapDepth = 8

var (
	pendingKeys    = []string{"pending"}
	inProgressKeys = []string{"inProgress", "in_progress"}
	readyKeys      = []string{"ready", "prepared", "done", "readyToServe", "ready_to_serve", "waitingSupply", "waiting_supply"}
	wrapperKeys    = []string{"data", "payload"}
	serverTimeKeys = []string{"serverTime", "server_time"}
)

// Classify reports which layout raw uses.
func Classify(raw any) Shape {
	obj, ok := asObject(raw)
	if !ok {
		return ShapeUnknown
	}
	if firstArray(obj, pendingKeys) != nil || firstArray(obj, inProgressKeys) != nil || firstArray(obj, readyKeys) != nil {
		return ShapeSplit
	}
	if _, ok := asArray(obj["items"]); ok {
		return ShapeFlat
	}
	if _, ok := pick(obj, wrapperKeys...); ok {
		return ShapeWrapped
	}
	return ShapeUnknown
}

// Normalize converts any accepted snapshot layout into a canonical Board.
// Unrecognized input yields an empty board stamped with now and
// ShapeUnknown; callers are expected to drop it.
func Normalize(raw any, now time.Time) (Board, Shape) {
	return normalize(raw, now, 0)
}

func normalize(raw any, now time.Time, depth int) (Board, Shape) {
	obj, _ := asObject(raw)
	switch Classify(raw) {
	case ShapeSplit:
		return decodeSplit(obj), ShapeSplit

	case ShapeFlat:
		return decodeFlat(obj), ShapeFlat

	case ShapeWrapped:
		if depth >= maxWrapDepth {
			break
		}
		inner, _ := pick(obj, wrapperKeys...)
		b, shape := normalize(inner, now, depth+1)
		if shape == ShapeUnknown {
			break
		}
		if !b.HasServerTime {
			b.ServerTime, b.HasServerTime = serverTime(obj)
		}
		return b, ShapeWrapped
	}

	return Board{ServerTime: now, Pending: []Ticket{}, InProgress: []Ticket{}, Ready: []Ticket{}}, ShapeUnknown
}

func decodeSplit(obj map[string]any) Board {
	b := Board{
		Pending:    decodeBucket(firstArray(obj, pendingKeys), ticketstatus.Statuses.Pending),
		InProgress: decodeBucket(firstArray(obj, inProgressKeys), ticketstatus.Statuses.InProgress),
		Ready:      decodeBucket(firstArray(obj, readyKeys), ticketstatus.Statuses.Done),
	}
	b.ServerTime, b.HasServerTime = serverTime(obj)
	b.dedupe()
	return b
}

func decodeFlat(obj map[string]any) Board {
	items, _ := asArray(obj["items"])
	b := Board{Pending: []Ticket{}, InProgress: []Ticket{}, Ready: []Ticket{}}
	for _, item := range items {
		t, ok := decodeTicket(item)
		if !ok {
			continue
		}
		switch t.Status {
		case ticketstatus.Statuses.InProgress:
			b.InProgress = append(b.InProgress, t)
		case ticketstatus.Statuses.Done:
			b.Ready = append(b.Ready, t)
		case ticketstatus.Statuses.Canceled, ticketstatus.Statuses.Served:
		default:
			t.Status = ticketstatus.Statuses.Pending
			b.Pending = append(b.Pending, t)
		}
	}
	b.ServerTime, b.HasServerTime = serverTime(obj)
	b.dedupe()
	return b
}

// decodeBucket decodes a split bucket. Bucket membership decides the status.
func decodeBucket(items []any, status ticketstatus.Status) []Ticket {
	tickets := make([]Ticket, 0, len(items))
	for _, item := range items {
		t, ok := decodeTicket(item)
		if !ok {
			continue
		}
		t.Status = status
		tickets = append(tickets, t)
	}
	return tickets
}

func decodeTicket(raw any) (Ticket, bool) {
	m, ok := asObject(raw)
	if !ok {
		return Ticket{}, false
	}

	v, _ := pick(m, "orderDetailId", "order_detail_id", "id")
	id, ok := toInt64(v)
	if !ok || id <= 0 {
		return Ticket{}, false
	}

	t := Ticket{OrderDetailID: id, Quantity: 1}

	if v, ok := pick(m, "orderId", "order_id"); ok {
		if n, ok := toInt64(v); ok {
			t.OrderID = &n
		}
	}
	if v, ok := pick(m, "tableNumber", "table_number", "table"); ok {
		t.TableNumber = toString(v)
	}
	if v, ok := pick(m, "menuItemId", "menu_item_id"); ok {
		t.MenuItemID, _ = toInt64(v)
	}
	if v, ok := pick(m, "dishName", "dish_name", "menuItemName", "menu_item_name", "name"); ok {
		t.DishName = toString(v)
	}
	if v, ok := pick(m, "quantity", "qty"); ok {
		if n, ok := toInt64(v); ok && n > 0 {
			t.Quantity = int(n)
		}
	}
	if v, ok := pick(m, "notes", "note"); ok {
		t.Notes = toString(v)
	}
	if v, ok := pick(m, "orderedAt", "ordered_at", "createdAt", "created_at"); ok {
		t.OrderedAt, _, _ = toTime(v)
	}
	if v, ok := pick(m, "elapsedSeconds", "elapsed_seconds"); ok {
		if n, ok := toInt64(v); ok {
			t.ElapsedSeconds = &n
		}
	}
	if v, ok := pick(m, "overtime", "isOvertime", "is_overtime"); ok {
		if b, ok := toBool(v); ok {
			t.Overtime = &b
		}
	}
	if v, ok := pick(m, "status"); ok {
		t.Status = ticketstatus.Status{Name: ticketstatus.Normalize(toString(v))}
	}

	return t, true
}

func firstArray(obj map[string]any, keys []string) []any {
	for _, k := range keys {
		if arr, ok := asArray(obj[k]); ok {
			return arr
		}
	}
	return nil
}

func serverTime(obj map[string]any) (time.Time, bool) {
	v, ok := pick(obj, serverTimeKeys...)
	if !ok {
		return time.Time{}, false
	}
	t, _, ok := toTime(v)
	return t, ok
}

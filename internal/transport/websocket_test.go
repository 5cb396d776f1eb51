package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/appetiteclub/kitchenboard/pkg/event"
	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/websocket"
)

var fastBackoff = BackoffConfig{Initial: 10 * time.Millisecond, Max: 40 * time.Millisecond}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
}

func TestWebSocketSourceReceivesFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	subscribed := make(chan event.SubscribeFrame, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var frame event.SubscribeFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		subscribed <- frame

		binary, _ := cbor.Marshal(map[string]any{"items": []any{}})
		conn.WriteMessage(websocket.TextMessage, []byte(`{"serverTime":"2024-01-01T10:00:00Z","pending":[]}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		conn.WriteMessage(websocket.BinaryMessage, binary)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	rec := &recorder{}
	src := NewWebSocketSource(WebSocketConfig{URL: wsURL(server), Backoff: fastBackoff}, rec.handle, nil, nil)
	src.OnConnectionChange(rec.onConn)

	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer src.Stop(context.Background())

	select {
	case frame := <-subscribed:
		if frame.Action != "subscribe" || frame.Topic != event.KitchenBoardTopic {
			t.Errorf("unexpected subscribe frame %+v", frame)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no subscribe frame received")
	}

	waitFor(t, "two decoded frames", func() bool { return rec.eventCount() == 2 })

	if !src.IsConnected() {
		t.Error("expected source to be connected")
	}
	if got := rec.event(0); got.Type != event.EventBoardSnapshot {
		t.Errorf("unexpected event type %q", got.Type)
	}
	if _, ok := rec.event(1).Payload.(map[string]any); !ok {
		t.Errorf("expected cbor frame decoded to a map, got %T", rec.event(1).Payload)
	}
}

func TestWebSocketSourceReconnects(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var connects atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		n := connects.Add(1)
		if n == 1 {
			var frame event.SubscribeFrame
			conn.ReadJSON(&frame)
			conn.Close()
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	rec := &recorder{}
	src := NewWebSocketSource(WebSocketConfig{URL: wsURL(server), Backoff: fastBackoff}, rec.handle, nil, nil)
	src.OnConnectionChange(rec.onConn)

	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, "second connection", func() bool { return connects.Load() >= 2 && src.IsConnected() })
	if rec.transitionCount() < 3 {
		t.Errorf("expected connect, disconnect, connect transitions, got %d", rec.transitionCount())
	}

	if err := src.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if src.IsConnected() {
		t.Error("expected disconnected after stop")
	}
}

func TestWebSocketSourceFallsBackToLongPolling(t *testing.T) {
	var polls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "websockets disabled", http.StatusForbidden)
	})
	mux.HandleFunc("/ws/poll", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("topic") != event.KitchenBoardTopic {
			http.Error(w, "bad topic", http.StatusBadRequest)
			return
		}
		if polls.Add(1) == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set(pollCursorHeader, "c1")
			w.Write([]byte(`{"serverTime":"2024-01-01T10:00:00Z","items":[]}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	rec := &recorder{}
	src := NewWebSocketSource(WebSocketConfig{
		URL:      wsURL(server),
		PollURL:  server.URL + "/ws/poll",
		Backoff:  fastBackoff,
		PollIdle: 5 * time.Millisecond,
	}, rec.handle, nil, nil)

	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer src.Stop(context.Background())

	waitFor(t, "polled snapshot", func() bool { return rec.eventCount() == 1 })
	waitFor(t, "idle polls", func() bool { return polls.Load() >= 3 })

	if !src.Polling() {
		t.Error("expected source to stay in polling mode")
	}
	if !src.IsConnected() {
		t.Error("expected polling source to report connected")
	}
	if rec.eventCount() != 1 {
		t.Errorf("expected empty polls to deliver nothing, got %d events", rec.eventCount())
	}
}

func TestWebSocketSourceStartRequiresURL(t *testing.T) {
	src := NewWebSocketSource(WebSocketConfig{}, func(Event) {}, nil, nil)
	if err := src.Start(context.Background()); err == nil {
		t.Fatal("expected error for missing url")
	}
}

func TestWebSocketSourceStopIsIdempotent(t *testing.T) {
	src := NewWebSocketSource(WebSocketConfig{URL: "ws://127.0.0.1:1/ws", Backoff: fastBackoff}, func(Event) {}, nil, nil)
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := src.Stop(context.Background()); err != nil {
		t.Fatalf("first stop: %v", err)
	}
	if err := src.Stop(context.Background()); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

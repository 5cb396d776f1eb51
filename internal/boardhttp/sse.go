package boardhttp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/appetiteclub/kitchenboard/internal/board"
	"github.com/google/uuid"
)

const EventBoardState = "board-state"

// Events streams every published board state as SSE. The current state is
// sent first. The writer is not wrapped by telemetry since it must flush.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	subscriberID := uuid.New().String()
	log := h.log(r).With("subscriber_id", subscriberID)
	log.Info("new SSE connection")

	states := h.board.Subscribe(subscriberID)
	defer h.board.Unsubscribe(subscriberID)

	fmt.Fprintf(w, ": connected\n\n")
	fmt.Fprintf(w, "retry: 2000\n\n")
	flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Info("SSE client disconnected")
			return

		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()

		case state, ok := <-states:
			if !ok {
				log.Info("board state channel closed")
				return
			}
			if err := writeState(w, state); err != nil {
				log.Error("cannot write board state", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

func writeState(w http.ResponseWriter, state board.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if state.Revision != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", state.Revision); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", EventBoardState, data)
	return err
}

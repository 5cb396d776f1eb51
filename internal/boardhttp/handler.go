package boardhttp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/appetiteclub/kitchenboard/internal/board"
	"github.com/appetiteclub/kitchenboard/pkg/enums/ticketstatus"
	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/telemetry"
	"github.com/go-chi/chi/v5"
)

const MaxBodyBytes = 1 << 20

const DefaultKeepAlive = 30 * time.Second

// Board is the slice of the coordinator the HTTP surface drives.
type Board interface {
	State() board.State
	Subscribe(id string) <-chan board.State
	Unsubscribe(id string)
	Refresh(ctx context.Context) error
	UpdateStatus(ctx context.Context, id int64, status ticketstatus.Status) error
	CompleteOneUnit(ctx context.Context, id int64) error
	CompleteAllUnits(ctx context.Context, id int64) error
	ServeOneUnit(ctx context.Context, id int64) error
	Rollback(ctx context.Context, id int64) error
}

// AvailabilityRefresher forces a menu availability poll.
type AvailabilityRefresher interface {
	Refresh(ctx context.Context) error
}

type Handler struct {
	board        Board
	availability AvailabilityRefresher
	logger       aqm.Logger
	tlm          *telemetry.HTTP
	keepAlive    time.Duration
}

func NewHandler(b Board, availability AvailabilityRefresher, logger aqm.Logger) *Handler {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Handler{
		board:        b,
		availability: availability,
		logger:       logger,
		tlm:          telemetry.NewHTTP(),
		keepAlive:    DefaultKeepAlive,
	}
}

// SetKeepAlive changes the SSE keepalive period. Non-positive values are ignored.
func (h *Handler) SetKeepAlive(d time.Duration) {
	if d > 0 {
		h.keepAlive = d
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/board", func(r chi.Router) {
		r.Get("/", h.GetBoard)
		r.Get("/events", h.Events)
		r.Post("/refresh", h.Refresh)
		r.Post("/availability/refresh", h.RefreshAvailability)
		r.Route("/tickets/{id}", func(r chi.Router) {
			r.Patch("/status", h.UpdateStatus)
			r.Post("/complete-one", h.CompleteOneUnit)
			r.Post("/complete-all", h.CompleteAllUnits)
			r.Post("/serve-one", h.ServeOneUnit)
			r.Post("/rollback", h.Rollback)
		})
	})
}

func (h *Handler) log(r *http.Request) aqm.Logger {
	return h.logger.With("request_id", aqm.RequestIDFrom(r.Context()))
}

func (h *Handler) GetBoard(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetBoard")
	defer finish()

	state := h.board.State()
	if state.Revision != "" {
		etag := strconv.Quote(state.Revision)
		w.Header().Set("ETag", etag)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	aqm.Respond(w, http.StatusOK, state, nil)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.Refresh")
	defer finish()
	log := h.log(r)

	if err := h.board.Refresh(r.Context()); err != nil {
		log.Errorf("cannot refresh board: %v", err)
		h.respondActionError(w, err, "Could not refresh board")
		return
	}

	aqm.Respond(w, http.StatusOK, h.board.State(), nil)
}

func (h *Handler) RefreshAvailability(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.RefreshAvailability")
	defer finish()
	log := h.log(r)

	if h.availability == nil {
		aqm.RespondError(w, http.StatusServiceUnavailable, "Availability polling is disabled")
		return
	}

	if err := h.availability.Refresh(r.Context()); err != nil {
		log.Errorf("cannot refresh availability: %v", err)
		aqm.RespondError(w, http.StatusBadGateway, "Could not refresh availability")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpdateStatus")
	defer finish()
	log := h.log(r)

	id, ok := ticketID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Could not read request body")
		return
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	status, known := ticketstatus.Parse(payload.Status)
	if !known {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid status")
		return
	}

	if err := h.board.UpdateStatus(r.Context(), id, status); err != nil {
		log.Errorf("cannot update ticket status: %v", err)
		h.respondActionError(w, err, "Could not update ticket status")
		return
	}

	aqm.Respond(w, http.StatusOK, h.board.State(), nil)
}

func (h *Handler) CompleteOneUnit(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, "Handler.CompleteOneUnit", h.board.CompleteOneUnit)
}

func (h *Handler) CompleteAllUnits(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, "Handler.CompleteAllUnits", h.board.CompleteAllUnits)
}

func (h *Handler) ServeOneUnit(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, "Handler.ServeOneUnit", h.board.ServeOneUnit)
}

func (h *Handler) Rollback(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, "Handler.Rollback", h.board.Rollback)
}

func (h *Handler) action(w http.ResponseWriter, r *http.Request, name string, call func(context.Context, int64) error) {
	w, r, finish := h.tlm.Start(w, r, name)
	defer finish()
	log := h.log(r)

	id, ok := ticketID(w, r)
	if !ok {
		return
	}

	if err := call(r.Context(), id); err != nil {
		log.Errorf("cannot run ticket action: %v", err)
		h.respondActionError(w, err, "Could not update ticket")
		return
	}

	aqm.Respond(w, http.StatusOK, h.board.State(), nil)
}

func (h *Handler) respondActionError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, board.ErrInvalidTicketID):
		aqm.RespondError(w, http.StatusBadRequest, "Invalid ticket ID")
	case errors.Is(err, board.ErrStopped):
		aqm.RespondError(w, http.StatusServiceUnavailable, "Board is stopped")
	default:
		aqm.RespondError(w, http.StatusBadGateway, msg)
	}
}

func ticketID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid ticket ID")
		return 0, false
	}
	return id, true
}

package board

import (
	"context"
	"sync"

	"github.com/appetiteclub/kitchenboard/internal/kitchenapi"
	"github.com/appetiteclub/kitchenboard/internal/transport"
	"github.com/appetiteclub/kitchenboard/pkg/enums/ticketstatus"
	"github.com/appetiteclub/kitchenboard/pkg/event"
)

type MockAPI struct {
	mu    sync.Mutex
	calls []string

	FetchBoardFunc       func(ctx context.Context, q kitchenapi.BoardQuery) (any, error)
	UpdateStatusFunc     func(ctx context.Context, id int64, status ticketstatus.Status) error
	CompleteOneUnitFunc  func(ctx context.Context, id int64) error
	CompleteAllUnitsFunc func(ctx context.Context, id int64) error
	ServeOneUnitFunc     func(ctx context.Context, id int64) error
}

func (m *MockAPI) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *MockAPI) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockAPI) FetchBoard(ctx context.Context, q kitchenapi.BoardQuery) (any, error) {
	m.record("FetchBoard")
	if m.FetchBoardFunc != nil {
		return m.FetchBoardFunc(ctx, q)
	}
	return nil, context.Canceled
}

func (m *MockAPI) UpdateStatus(ctx context.Context, id int64, status ticketstatus.Status) error {
	m.record("UpdateStatus:" + status.Code())
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, id, status)
	}
	return nil
}

func (m *MockAPI) CompleteOneUnit(ctx context.Context, id int64) error {
	m.record("CompleteOneUnit")
	if m.CompleteOneUnitFunc != nil {
		return m.CompleteOneUnitFunc(ctx, id)
	}
	return nil
}

func (m *MockAPI) CompleteAllUnits(ctx context.Context, id int64) error {
	m.record("CompleteAllUnits")
	if m.CompleteAllUnitsFunc != nil {
		return m.CompleteAllUnitsFunc(ctx, id)
	}
	return nil
}

func (m *MockAPI) ServeOneUnit(ctx context.Context, id int64) error {
	m.record("ServeOneUnit")
	if m.ServeOneUnitFunc != nil {
		return m.ServeOneUnitFunc(ctx, id)
	}
	return nil
}

// MockSource is a transport driven by the test.
type MockSource struct {
	mu        sync.Mutex
	handler   transport.Handler
	listeners map[int]func(bool)
	nextID    int
	connected bool
	starts    int
	stops     int
}

func (m *MockSource) factory(handler transport.Handler) (transport.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = handler
	return m, nil
}

func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
	return nil
}

func (m *MockSource) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	return nil
}

func (m *MockSource) OnConnectionChange(fn func(bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listeners == nil {
		m.listeners = make(map[int]func(bool))
	}
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

func (m *MockSource) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockSource) SetConnected(connected bool) {
	m.mu.Lock()
	m.connected = connected
	fns := make([]func(bool), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(connected)
	}
}

func (m *MockSource) Emit(payload any) {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()
	h(transport.Event{Type: event.EventBoardSnapshot, Payload: payload})
}

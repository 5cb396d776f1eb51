package boardhttp

import (
	"context"
	"sync"

	"github.com/appetiteclub/kitchenboard/internal/board"
	"github.com/appetiteclub/kitchenboard/pkg/enums/ticketstatus"
)

type MockBoard struct {
	mu sync.Mutex

	StateFunc            func() board.State
	SubscribeFunc        func(id string) <-chan board.State
	RefreshFunc          func(ctx context.Context) error
	UpdateStatusFunc     func(ctx context.Context, id int64, status ticketstatus.Status) error
	CompleteOneUnitFunc  func(ctx context.Context, id int64) error
	CompleteAllUnitsFunc func(ctx context.Context, id int64) error
	ServeOneUnitFunc     func(ctx context.Context, id int64) error
	RollbackFunc         func(ctx context.Context, id int64) error

	unsubscribed []string
}

func NewMockBoard() *MockBoard {
	return &MockBoard{}
}

func (m *MockBoard) State() board.State {
	if m.StateFunc != nil {
		return m.StateFunc()
	}
	return board.State{Phase: board.PhaseLive}
}

func (m *MockBoard) Subscribe(id string) <-chan board.State {
	if m.SubscribeFunc != nil {
		return m.SubscribeFunc(id)
	}
	ch := make(chan board.State, 1)
	ch <- m.State()
	return ch
}

func (m *MockBoard) Unsubscribe(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unsubscribed = append(m.unsubscribed, id)
}

func (m *MockBoard) Unsubscribed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.unsubscribed...)
}

func (m *MockBoard) Refresh(ctx context.Context) error {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx)
	}
	return nil
}

func (m *MockBoard) UpdateStatus(ctx context.Context, id int64, status ticketstatus.Status) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, id, status)
	}
	return nil
}

func (m *MockBoard) CompleteOneUnit(ctx context.Context, id int64) error {
	if m.CompleteOneUnitFunc != nil {
		return m.CompleteOneUnitFunc(ctx, id)
	}
	return nil
}

func (m *MockBoard) CompleteAllUnits(ctx context.Context, id int64) error {
	if m.CompleteAllUnitsFunc != nil {
		return m.CompleteAllUnitsFunc(ctx, id)
	}
	return nil
}

func (m *MockBoard) ServeOneUnit(ctx context.Context, id int64) error {
	if m.ServeOneUnitFunc != nil {
		return m.ServeOneUnitFunc(ctx, id)
	}
	return nil
}

func (m *MockBoard) Rollback(ctx context.Context, id int64) error {
	if m.RollbackFunc != nil {
		return m.RollbackFunc(ctx, id)
	}
	return nil
}

type MockAvailability struct {
	RefreshFunc func(ctx context.Context) error
	calls       int
}

func (m *MockAvailability) Refresh(ctx context.Context) error {
	m.calls++
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx)
	}
	return nil
}

// Package transport keeps a live subscription to the kitchen board topic
// and hands decoded snapshots to a single handler.
package transport

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var (
	ErrNotConfigured = errors.New("transport not configured")
	ErrUnknownKind   = errors.New("unknown transport kind")
)

// Event is one decoded message from the board topic.
type Event struct {
	Type    string
	Payload any
}

type Handler func(Event)

// Source is a reconnecting subscription. Start returns once the
// connection loop is running; connection loss is reported through
// OnConnectionChange, never as an error.
type Source interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	OnConnectionChange(fn func(connected bool)) (unsubscribe func())
	IsConnected() bool
}

// connState tracks the connected flag and notifies listeners synchronously
// on each change.
type connState struct {
	mu        sync.Mutex
	connected bool
	nextID    int
	listeners map[int]func(bool)
}

func (s *connState) OnConnectionChange(fn func(bool)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listeners == nil {
		s.listeners = make(map[int]func(bool))
	}
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.listeners, id)
		})
	}
}

func (s *connState) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *connState) set(connected bool) {
	s.mu.Lock()
	if s.connected == connected {
		s.mu.Unlock()
		return
	}
	s.connected = connected
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(bool), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.listeners[id])
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(connected)
	}
}

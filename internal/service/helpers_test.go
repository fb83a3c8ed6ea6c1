package service

import (
	"sync"
	"testing"

	"github.com/cwrk-planet/call-service/internal/domain"
	"github.com/cwrk-planet/call-service/internal/membership"
	"github.com/cwrk-planet/call-service/internal/registry"
	"github.com/cwrk-planet/call-service/internal/storage/memory"

	"github.com/stretchr/testify/require"
)

type recSink struct {
	mu     sync.Mutex
	events []domain.Event
}

func (s *recSink) Send(ev domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *recSink) Close() error { return nil }

// take returns and clears what was received so far.
func (s *recSink) take() []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.events
	s.events = nil
	return out
}

func kinds(evs []domain.Event) []domain.EventKind {
	out := make([]domain.EventKind, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.Type)
	}
	return out
}

type env struct {
	table   *membership.Table
	conns   *registry.Registry
	store   *memory.Store
	rooms   *RoomService
	signals *SignalService
	chat    *ChatService
}

func newEnv(t *testing.T, capacity int) *env {
	t.Helper()

	table := membership.New(capacity)
	conns := registry.New()
	store := memory.New()

	rooms, err := NewRoomService(table, conns, nil)
	require.NoError(t, err)

	return &env{
		table:   table,
		conns:   conns,
		store:   store,
		rooms:   rooms,
		signals: NewSignalService(table, conns, nil),
		chat:    NewChatService(store, table, conns, 100, nil),
	}
}

func (e *env) connect(name string) (domain.ConnID, *recSink) {
	sink := &recSink{}
	id := e.conns.Register(sink, domain.Identity{ID: name, Name: name, Role: domain.RoleUser})
	return id, sink
}

// Package memory is a process-local Store used for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/cwrk-planet/call-service/internal/domain"
	"github.com/cwrk-planet/call-service/internal/storage"
)

type Store struct {
	mu       sync.RWMutex
	messages map[string][]domain.ChatMessage
	ids      map[string]struct{}
	mentors  map[string]domain.Mentor

	// FailWith makes every chat call return this error when set.
	FailWith error
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		messages: make(map[string][]domain.ChatMessage),
		ids:      make(map[string]struct{}),
		mentors:  make(map[string]domain.Mentor),
	}
}

func (s *Store) SaveMessage(ctx context.Context, m domain.ChatMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}
	if _, dup := s.ids[m.ID]; dup {
		return storage.ErrAlreadyExists
	}
	s.ids[m.ID] = struct{}{}
	s.messages[m.RoomID] = append(s.messages[m.RoomID], m)
	return nil
}

func (s *Store) History(ctx context.Context, roomID string) ([]domain.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}

	out := append([]domain.ChatMessage(nil), s.messages[roomID]...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) ActiveRooms(ctx context.Context) ([]domain.RoomSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}

	out := make([]domain.RoomSummary, 0, len(s.messages))
	for roomID, msgs := range s.messages {
		if len(msgs) == 0 {
			continue
		}
		last := msgs[0]
		for _, m := range msgs[1:] {
			if !m.CreatedAt.Before(last.CreatedAt) {
				last = m
			}
		}
		out = append(out, domain.RoomSummary{
			RoomID:         roomID,
			LastText:       last.Text,
			LastSender:     last.SenderName,
			LastSenderRole: last.SenderRole,
			LastAt:         last.CreatedAt,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].LastAt.Equal(out[j].LastAt) {
			return out[i].RoomID < out[j].RoomID
		}
		return out[i].LastAt.After(out[j].LastAt)
	})
	return out, nil
}

func (s *Store) CreateMentor(ctx context.Context, m domain.Mentor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.mentors[m.Username]; ok {
		return storage.ErrAlreadyExists
	}
	s.mentors[m.Username] = m
	return nil
}

func (s *Store) GetMentor(ctx context.Context, username string) (*domain.Mentor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.mentors[username]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &m, nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }

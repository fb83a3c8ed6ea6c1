package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/cwrk-planet/call-service/internal/domain"
	"github.com/cwrk-planet/call-service/internal/membership"
	"github.com/cwrk-planet/call-service/internal/registry"
	"github.com/cwrk-planet/call-service/internal/storage"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const activeRoomsTimeout = 10 * time.Second

type ChatService struct {
	repo  storage.ChatRepository
	table *membership.Table
	conns *registry.Registry
	log   *slog.Logger

	maxLen int

	clockMu sync.Mutex
	last    time.Time
	now     func() time.Time

	active singleflight.Group
}

func NewChatService(repo storage.ChatRepository, table *membership.Table, conns *registry.Registry, maxLen int, log *slog.Logger) *ChatService {
	if log == nil {
		log = slog.Default()
	}
	return &ChatService{
		repo:   repo,
		table:  table,
		conns:  conns,
		log:    log,
		maxLen: maxLen,
		now:    time.Now,
	}
}

// stamp never returns a time earlier than the previous one.
func (s *ChatService) stamp() time.Time {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()

	t := s.now().UTC().Truncate(time.Microsecond)
	if t.Before(s.last) {
		t = s.last
	}
	s.last = t
	return t
}

// Send stores the message and then pushes new-message to every member of the room,
// the sender included. Nothing is broadcast if the store rejects the write.
func (s *ChatService) Send(ctx context.Context, roomID string, role domain.Role, senderName, text string) (domain.ChatMessage, error) {
	roomID = strings.TrimSpace(roomID)
	text = strings.TrimSpace(text)
	switch {
	case roomID == "":
		return domain.ChatMessage{}, fmt.Errorf("%w: roomId is required", domain.ErrValidation)
	case text == "":
		return domain.ChatMessage{}, fmt.Errorf("%w: text is required", domain.ErrValidation)
	case s.maxLen > 0 && utf8.RuneCountInString(text) > s.maxLen:
		return domain.ChatMessage{}, fmt.Errorf("%w: text is longer than %d characters", domain.ErrValidation, s.maxLen)
	}
	if !role.Valid() {
		role = domain.ParseRole(string(role))
	}

	msg := domain.ChatMessage{
		ID:         uuid.NewString(),
		RoomID:     roomID,
		SenderRole: role,
		SenderName: strings.TrimSpace(senderName),
		Text:       text,
		CreatedAt:  s.stamp(),
	}

	if err := s.repo.SaveMessage(ctx, msg); err != nil {
		s.log.ErrorContext(ctx, "save chat message", "room", roomID, "err", err)
		return domain.ChatMessage{}, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}

	for _, m := range s.table.Members(roomID) {
		stored := msg
		s.conns.Send(m.Conn, domain.Event{
			Type:        domain.EventNewMessage,
			RoomID:      roomID,
			ChatMessage: &stored,
		})
	}
	return msg, nil
}

// SendFrom is Send for a live connection; it must currently be a member of roomID.
func (s *ChatService) SendFrom(ctx context.Context, conn domain.ConnID, roomID string, role domain.Role, senderName, text string) (domain.ChatMessage, error) {
	if !s.table.IsMember(strings.TrimSpace(roomID), conn) {
		s.log.DebugContext(ctx, "chat dropped, sender not in room", "room", roomID, "conn", conn)
		return domain.ChatMessage{}, domain.ErrNotAMember
	}
	return s.Send(ctx, roomID, role, senderName, text)
}

// History returns every message of the room, oldest first.
func (s *ChatService) History(ctx context.Context, roomID string) ([]domain.ChatMessage, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return nil, fmt.Errorf("%w: roomId is required", domain.ErrValidation)
	}

	msgs, err := s.repo.History(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return msgs, nil
}

// ActiveRooms lists rooms with stored messages, most recent first, each with its live member count.
// Concurrent callers share one store query; it runs detached from any single caller's
// cancellation, and each caller still returns as soon as its own ctx is done.
func (s *ChatService) ActiveRooms(ctx context.Context) ([]domain.RoomSummary, error) {
	ch := s.active.DoChan("active-rooms", func() (any, error) {
		qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), activeRoomsTimeout)
		defer cancel()
		return s.repo.ActiveRooms(qctx)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("active rooms: %w", ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, res.Err)
	}

	v := res.Val
	shared := v.([]domain.RoomSummary)
	out := make([]domain.RoomSummary, len(shared))
	copy(out, shared)
	for i := range out {
		out[i].LiveMembers = s.table.Count(out[i].RoomID)
	}
	return out, nil
}

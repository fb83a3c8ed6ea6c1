// Package storagetest holds behaviour checks shared by every storage.Store implementation.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/cwrk-planet/call-service/internal/domain"
	"github.com/cwrk-planet/call-service/internal/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises s. It expects an empty store and leaves data behind.
func Run(t *testing.T, s storage.Store) {
	t.Helper()

	t.Run("HistoryOrder", func(t *testing.T) { historyOrder(t, s) })
	t.Run("EmptyHistory", func(t *testing.T) { emptyHistory(t, s) })
	t.Run("ActiveRooms", func(t *testing.T) { activeRooms(t, s) })
	t.Run("Mentors", func(t *testing.T) { mentors(t, s) })
}

func msg(room, name, text string, at time.Time) domain.ChatMessage {
	return domain.ChatMessage{
		ID:         uuid.NewString(),
		RoomID:     room,
		SenderRole: domain.RoleUser,
		SenderName: name,
		Text:       text,
		CreatedAt:  at,
	}
}

func historyOrder(t *testing.T, s storage.Store) {
	ctx := context.Background()
	room := "hist-" + uuid.NewString()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	// same timestamp twice: insertion order must win
	first := msg(room, "alice", "one", base)
	second := msg(room, "bob", "two", base)
	third := msg(room, "alice", "three", base.Add(time.Second))
	third.SenderRole = domain.RoleMentor

	for _, m := range []domain.ChatMessage{first, second, third} {
		require.NoError(t, s.SaveMessage(ctx, m))
	}

	got, err := s.History(ctx, room)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, []string{"one", "two", "three"}, []string{got[0].Text, got[1].Text, got[2].Text})
	assert.Equal(t, first.ID, got[0].ID)
	assert.Equal(t, room, got[0].RoomID)
	assert.Equal(t, "alice", got[0].SenderName)
	assert.Equal(t, domain.RoleMentor, got[2].SenderRole)
	assert.True(t, got[2].CreatedAt.Equal(third.CreatedAt))
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].CreatedAt.Before(got[i-1].CreatedAt))
	}

	// duplicate ids are rejected
	assert.ErrorIs(t, s.SaveMessage(ctx, first), storage.ErrAlreadyExists)
}

func emptyHistory(t *testing.T, s storage.Store) {
	got, err := s.History(context.Background(), "never-used-"+uuid.NewString())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func activeRooms(t *testing.T, s storage.Store) {
	ctx := context.Background()
	base := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	older := "active-a-" + uuid.NewString()
	newer := "active-b-" + uuid.NewString()

	require.NoError(t, s.SaveMessage(ctx, msg(older, "alice", "first", base)))
	require.NoError(t, s.SaveMessage(ctx, msg(newer, "bob", "hello", base.Add(time.Minute))))
	require.NoError(t, s.SaveMessage(ctx, msg(older, "carol", "latest in a", base.Add(2*time.Minute))))
	require.NoError(t, s.SaveMessage(ctx, msg(newer, "dave", "latest in b", base.Add(3*time.Minute))))

	got, err := s.ActiveRooms(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(got), 2)

	// rows from other subtests are older than 2030, so these two lead
	assert.Equal(t, newer, got[0].RoomID)
	assert.Equal(t, "latest in b", got[0].LastText)
	assert.Equal(t, "dave", got[0].LastSender)
	assert.True(t, got[0].LastAt.Equal(base.Add(3*time.Minute)))

	assert.Equal(t, older, got[1].RoomID)
	assert.Equal(t, "latest in a", got[1].LastText)
	assert.Equal(t, "carol", got[1].LastSender)

	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].LastAt.After(got[i-1].LastAt), "recency order")
	}
}

func mentors(t *testing.T, s storage.Store) {
	ctx := context.Background()
	name := "mentor-" + uuid.NewString()
	m := domain.Mentor{Username: name, SecretHash: "$2a$10$hash", CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}

	_, err := s.GetMentor(ctx, name)
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.CreateMentor(ctx, m))
	require.ErrorIs(t, s.CreateMentor(ctx, m), storage.ErrAlreadyExists)

	got, err := s.GetMentor(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, name, got.Username)
	assert.Equal(t, m.SecretHash, got.SecretHash)
	assert.True(t, got.CreatedAt.Equal(m.CreatedAt))

	require.NoError(t, s.Ping(ctx))
}

// Package storage declares the persistence contracts of the coordinator.
// Implementations live in the memory, postgres and sqlite subpackages.
package storage

import (
	"context"
	"errors"

	"github.com/cwrk-planet/call-service/internal/domain"
)

var (
	ErrNotFound      = errors.New("storage: not found")
	ErrAlreadyExists = errors.New("storage: already exists")
)

// ChatRepository persists chat messages. History is ordered oldest first,
// messages with equal timestamps keep insertion order.
type ChatRepository interface {
	SaveMessage(ctx context.Context, m domain.ChatMessage) error
	History(ctx context.Context, roomID string) ([]domain.ChatMessage, error)
	// ActiveRooms returns one summary per room that has messages, most recent first.
	// LiveMembers is left zero; the caller fills it from the membership table.
	ActiveRooms(ctx context.Context) ([]domain.RoomSummary, error)
}

type MentorRepository interface {
	CreateMentor(ctx context.Context, m domain.Mentor) error
	GetMentor(ctx context.Context, username string) (*domain.Mentor, error)
}

type Store interface {
	ChatRepository
	MentorRepository
	Ping(ctx context.Context) error
	Close() error
}

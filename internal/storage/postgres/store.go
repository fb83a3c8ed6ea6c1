// Package postgres implements storage.Store on a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cwrk-planet/call-service/internal/domain"
	"github.com/cwrk-planet/call-service/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Store struct {
	pool *pgxpool.Pool
	q    querier
}

var _ storage.Store = (*Store)(nil)

// Open connects, then creates the tables if they are missing.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	pool, err := NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	s := &Store{pool: pool, q: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.q.Exec(ctx, querySchema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

func (s *Store) SaveMessage(ctx context.Context, m domain.ChatMessage) error {
	_, err := s.q.Exec(ctx, queryInsertMessage,
		m.ID,
		m.RoomID,
		string(m.SenderRole),
		m.SenderName,
		m.Text,
		m.CreatedAt,
	)
	if err != nil {
		return mapPgError(err)
	}
	return nil
}

func (s *Store) History(ctx context.Context, roomID string) ([]domain.ChatMessage, error) {
	rows, err := s.q.Query(ctx, queryHistory, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ChatMessage, 0)
	for rows.Next() {
		var (
			m    domain.ChatMessage
			role string
		)
		if err := rows.Scan(&m.ID, &m.RoomID, &role, &m.SenderName, &m.Text, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.SenderRole = domain.Role(role)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) ActiveRooms(ctx context.Context) ([]domain.RoomSummary, error) {
	rows, err := s.q.Query(ctx, queryActiveRooms)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.RoomSummary, 0)
	for rows.Next() {
		var (
			rs   domain.RoomSummary
			role string
		)
		if err := rows.Scan(&rs.RoomID, &rs.LastText, &rs.LastSender, &role, &rs.LastAt); err != nil {
			return nil, err
		}
		rs.LastSenderRole = domain.Role(role)
		out = append(out, rs)
	}
	return out, rows.Err()
}

func (s *Store) CreateMentor(ctx context.Context, m domain.Mentor) error {
	if _, err := s.q.Exec(ctx, queryInsertMentor, m.Username, m.SecretHash, m.CreatedAt); err != nil {
		return mapPgError(err)
	}
	return nil
}

func (s *Store) GetMentor(ctx context.Context, username string) (*domain.Mentor, error) {
	var m domain.Mentor
	err := s.q.QueryRow(ctx, queryGetMentor, username).Scan(&m.Username, &m.SecretHash, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, mapPgError(err)
	}
	return &m, nil
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 23505 - unique violation
		if pgErr.Code == "23505" {
			return storage.ErrAlreadyExists
		}
	}
	return err
}

// Package sqlite implements storage.Store on a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cwrk-planet/call-service/internal/domain"
	"github.com/cwrk-planet/call-service/internal/storage"

	sqlite3 "github.com/mattn/go-sqlite3"
)

const schema = `
	CREATE TABLE IF NOT EXISTS chat_messages (
		seq         INTEGER PRIMARY KEY AUTOINCREMENT,
		id          TEXT NOT NULL UNIQUE,
		room_id     TEXT NOT NULL,
		sender_role TEXT NOT NULL,
		sender_name TEXT NOT NULL,
		text        TEXT NOT NULL,
		created_at  INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_messages_room ON chat_messages(room_id, created_at, seq);

	CREATE TABLE IF NOT EXISTS mentors (
		username    TEXT PRIMARY KEY,
		secret_hash TEXT NOT NULL,
		created_at  INTEGER NOT NULL
	);
`

type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// Open opens (or creates) the database at path. Timestamps are stored as unix nanoseconds.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	// one writer at a time; WAL lets readers proceed alongside it
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: create tables: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) SaveMessage(ctx context.Context, m domain.ChatMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (id, room_id, sender_role, sender_name, text, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.RoomID, string(m.SenderRole), m.SenderName, m.Text, m.CreatedAt.UnixNano(),
	)
	return mapError(err)
}

func (s *Store) History(ctx context.Context, roomID string) ([]domain.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, room_id, sender_role, sender_name, text, created_at
		 FROM chat_messages WHERE room_id = ?
		 ORDER BY created_at ASC, seq ASC`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ChatMessage, 0)
	for rows.Next() {
		var (
			m    domain.ChatMessage
			role string
			at   int64
		)
		if err := rows.Scan(&m.ID, &m.RoomID, &role, &m.SenderName, &m.Text, &at); err != nil {
			return nil, err
		}
		m.SenderRole = domain.Role(role)
		m.CreatedAt = time.Unix(0, at).UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) ActiveRooms(ctx context.Context) ([]domain.RoomSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT room_id, text, sender_name, sender_role, created_at
		FROM (
			SELECT room_id, text, sender_name, sender_role, created_at,
			       ROW_NUMBER() OVER (PARTITION BY room_id ORDER BY created_at DESC, seq DESC) AS rn
			FROM chat_messages
		)
		WHERE rn = 1
		ORDER BY created_at DESC, room_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.RoomSummary, 0)
	for rows.Next() {
		var (
			rs   domain.RoomSummary
			role string
			at   int64
		)
		if err := rows.Scan(&rs.RoomID, &rs.LastText, &rs.LastSender, &role, &at); err != nil {
			return nil, err
		}
		rs.LastSenderRole = domain.Role(role)
		rs.LastAt = time.Unix(0, at).UTC()
		out = append(out, rs)
	}
	return out, rows.Err()
}

func (s *Store) CreateMentor(ctx context.Context, m domain.Mentor) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO mentors (username, secret_hash, created_at) VALUES (?, ?, ?)`,
		m.Username, m.SecretHash, m.CreatedAt.UnixNano(),
	)
	return mapError(err)
}

func (s *Store) GetMentor(ctx context.Context, username string) (*domain.Mentor, error) {
	var (
		m  domain.Mentor
		at int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT username, secret_hash, created_at FROM mentors WHERE username = ?`, username,
	).Scan(&m.Username, &m.SecretHash, &at)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	m.CreatedAt = time.Unix(0, at).UTC()
	return &m, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return storage.ErrAlreadyExists
		}
	}
	return err
}

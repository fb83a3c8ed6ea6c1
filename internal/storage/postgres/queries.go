package postgres

const (
	querySchema = `
		CREATE TABLE IF NOT EXISTS chat_messages (
			seq         BIGSERIAL PRIMARY KEY,
			id          TEXT NOT NULL UNIQUE,
			room_id     TEXT NOT NULL,
			sender_role TEXT NOT NULL,
			sender_name TEXT NOT NULL,
			text        TEXT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_chat_messages_room ON chat_messages (room_id, created_at, seq);

		CREATE TABLE IF NOT EXISTS mentors (
			username    TEXT PRIMARY KEY,
			secret_hash TEXT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL
		);
	`

	queryInsertMessage = `
		INSERT INTO chat_messages (id, room_id, sender_role, sender_name, text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
	queryHistory = `
		SELECT id, room_id, sender_role, sender_name, text, created_at
		FROM chat_messages
		WHERE room_id = $1
		ORDER BY created_at ASC, seq ASC;
	`
	queryActiveRooms = `
		SELECT room_id, text, sender_name, sender_role, created_at
		FROM (
			SELECT DISTINCT ON (room_id) room_id, text, sender_name, sender_role, created_at
			FROM chat_messages
			ORDER BY room_id, created_at DESC, seq DESC
		) latest
		ORDER BY created_at DESC, room_id ASC;
	`

	queryInsertMentor = `
		INSERT INTO mentors (username, secret_hash, created_at)
		VALUES ($1, $2, $3);
	`
	queryGetMentor = `
		SELECT username, secret_hash, created_at
		FROM mentors
		WHERE username = $1;
	`
)

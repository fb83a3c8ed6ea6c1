package domain

import "time"

// Member is one connection inside a live room.
type Member struct {
	Conn     ConnID
	Identity Identity
	JoinedAt time.Time
}

// RoomInfo is a snapshot of a live room.
type RoomInfo struct {
	ID        string
	Members   int
	CreatedAt time.Time
}

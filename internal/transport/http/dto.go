package http

import (
	"time"

	"github.com/cwrk-planet/call-service/internal/domain"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type CreateRoomResponse struct {
	RoomID   string `json:"roomId"`
	Capacity int    `json:"capacity"`
}

type ChatHistoryResponse struct {
	RoomID string               `json:"roomId"`
	Items  []domain.ChatMessage `json:"items"`
}

type MemberItem struct {
	ID       string      `json:"id,omitempty"`
	Name     string      `json:"name,omitempty"`
	Role     domain.Role `json:"role"`
	JoinedAt time.Time   `json:"joinedAt"`
}

type MembersResponse struct {
	RoomID string       `json:"roomId"`
	Live   bool         `json:"live"`
	Items  []MemberItem `json:"items"`
}

type LiveRoomItem struct {
	RoomID    string    `json:"roomId"`
	Members   int       `json:"members"`
	CreatedAt time.Time `json:"createdAt"`
}

type ActiveRoomsResponse struct {
	Items []domain.RoomSummary `json:"items"`
}

type LiveRoomsResponse struct {
	Items []LiveRoomItem `json:"items"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

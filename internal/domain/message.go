package domain

import "time"

type ChatMessage struct {
	ID         string    `json:"id"`
	RoomID     string    `json:"roomId"`
	SenderRole Role      `json:"sender"`
	SenderName string    `json:"senderName"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
}

// RoomSummary is one row of the active-rooms listing.
type RoomSummary struct {
	RoomID         string    `json:"roomId"`
	LastText       string    `json:"lastMessage"`
	LastSender     string    `json:"lastSender"`
	LastSenderRole Role      `json:"lastSenderRole"`
	LastAt         time.Time `json:"lastAt"`
	LiveMembers    int       `json:"liveMembers"`
}

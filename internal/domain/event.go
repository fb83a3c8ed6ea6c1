package domain

import "encoding/json"

// EventKind enumerates server-originated events.
type EventKind string

const (
	EventRoomCreated  EventKind = "room-created"
	EventRoomJoined   EventKind = "room-joined"
	EventMemberJoined EventKind = "member-joined"
	EventCallEnded    EventKind = "call-ended"
	EventRoomFull     EventKind = "room-full"
	EventOffer        EventKind = "offer"
	EventAnswer       EventKind = "answer"
	EventICECandidate EventKind = "ice-candidate"
	EventNewMessage   EventKind = "new-message"
	EventError        EventKind = "error"
	EventPong         EventKind = "pong"
)

// Event is what the coordinator pushes to a connection.
type Event struct {
	Type        EventKind       `json:"type"`
	RoomID      string          `json:"roomId,omitempty"`
	MemberCount int             `json:"memberCount,omitempty"`
	Member      *Identity       `json:"member,omitempty"`
	From        ConnID          `json:"from,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Error       *ErrorBody      `json:"error,omitempty"`

	// new-message carries the stored message's fields at the top level
	*ChatMessage
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Sink delivers events to one connection. Send must not block for long.
type Sink interface {
	Send(ev Event) error
	Close() error
}

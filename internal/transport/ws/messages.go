package ws

import (
	"encoding/json"

	"github.com/cwrk-planet/call-service/internal/domain"
)

// Kind is the type tag of a client frame.
type Kind string

const (
	KindJoinRoom     Kind = "join-room"
	KindLeaveRoom    Kind = "leave-room"
	KindEndCall      Kind = "end-call"
	KindOffer        Kind = "offer"
	KindAnswer       Kind = "answer"
	KindICECandidate Kind = "ice-candidate"
	KindSendMessage  Kind = "send-message"
	KindCreateRoom   Kind = "create-room"
	KindPing         Kind = "ping"
)

// header is decoded first; the full frame is then decoded into the payload type of its kind.
type header struct {
	Type   Kind   `json:"type"`
	RoomID string `json:"roomId"`
}

type JoinRoomPayload struct {
	RoomID   string           `json:"roomId"`
	Identity *domain.Identity `json:"identity,omitempty"`
}

// LeaveRoomPayload is shared by leave-room and end-call.
type LeaveRoomPayload struct {
	RoomID string `json:"roomId"`
}

type SignalPayload struct {
	RoomID  string          `json:"roomId"`
	Payload json.RawMessage `json:"payload"`
}

type SendMessagePayload struct {
	RoomID     string      `json:"roomId"`
	Sender     domain.Role `json:"sender"`
	SenderName string      `json:"senderName"`
	Text       string      `json:"text"`
}

// error codes carried by the error event
const (
	CodeBadRequest       = "bad_request"
	CodeUnknownType      = "unknown_type"
	CodeValidation       = "validation"
	CodeStoreUnavailable = "store_unavailable"
	CodeInternal         = "internal"
)

func errorEvent(roomID, code, msg string) domain.Event {
	return domain.Event{
		Type:   domain.EventError,
		RoomID: roomID,
		Error:  &domain.ErrorBody{Code: code, Message: msg},
	}
}

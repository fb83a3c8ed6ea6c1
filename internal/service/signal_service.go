package service

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cwrk-planet/call-service/internal/domain"
	"github.com/cwrk-planet/call-service/internal/membership"
	"github.com/cwrk-planet/call-service/internal/registry"
)

// SignalService forwards offer/answer/ice-candidate payloads between room members.
// Payloads are passed through byte for byte and never stored.
type SignalService struct {
	table *membership.Table
	conns *registry.Registry
	log   *slog.Logger
}

func NewSignalService(table *membership.Table, conns *registry.Registry, log *slog.Logger) *SignalService {
	if log == nil {
		log = slog.Default()
	}
	return &SignalService{table: table, conns: conns, log: log}
}

func IsSignalKind(kind domain.EventKind) bool {
	switch kind {
	case domain.EventOffer, domain.EventAnswer, domain.EventICECandidate:
		return true
	}
	return false
}

// Relay sends payload to every member of roomID except sender and returns how many
// recipients accepted it. A sender outside the room gets domain.ErrNotAMember.
func (s *SignalService) Relay(kind domain.EventKind, roomID string, sender domain.ConnID, payload json.RawMessage) (int, error) {
	if !IsSignalKind(kind) {
		return 0, fmt.Errorf("%w: %q is not a signaling kind", domain.ErrValidation, kind)
	}

	members := s.table.Members(roomID)
	if !contains(members, sender) {
		s.log.Debug("signal dropped, sender not in room", "room", roomID, "conn", sender, "kind", kind)
		return 0, domain.ErrNotAMember
	}

	delivered := 0
	for _, m := range members {
		if m.Conn == sender {
			continue
		}
		if s.conns.Send(m.Conn, domain.Event{
			Type:    kind,
			RoomID:  roomID,
			From:    sender,
			Payload: payload,
		}) {
			delivered++
		}
	}
	return delivered, nil
}

func contains(members []domain.Member, conn domain.ConnID) bool {
	for _, m := range members {
		if m.Conn == conn {
			return true
		}
	}
	return false
}

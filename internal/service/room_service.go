package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cwrk-planet/call-service/internal/domain"
	"github.com/cwrk-planet/call-service/internal/membership"
	"github.com/cwrk-planet/call-service/internal/registry"

	nanoid "github.com/jaevor/go-nanoid"
)

const (
	roomIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	roomIDLength   = 12
)

// RoomService drives the join/leave lifecycle of connections.
type RoomService struct {
	table *membership.Table
	conns *registry.Registry
	newID func() string
	log   *slog.Logger
}

func NewRoomService(table *membership.Table, conns *registry.Registry, log *slog.Logger) (*RoomService, error) {
	gen, err := nanoid.CustomASCII(roomIDAlphabet, roomIDLength)
	if err != nil {
		return nil, fmt.Errorf("room id generator: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}

	s := &RoomService{table: table, conns: conns, newID: gen, log: log}
	conns.OnClose(s.Disconnect)
	return s, nil
}

// CreateRoom mints an id no live room uses. Nothing is stored until someone joins.
func (s *RoomService) CreateRoom() string {
	for {
		id := s.newID()
		if !s.table.Exists(id) {
			return id
		}
	}
}

// Join moves conn into roomID (minting one when empty). A full room answers room-full
// to the requester only and returns domain.ErrRoomFull.
func (s *RoomService) Join(ctx context.Context, conn domain.ConnID, roomID string, identity domain.Identity) (string, error) {
	known, ok := s.conns.Identity(conn)
	if !ok {
		return "", domain.ErrUnknownConnection
	}
	if identity.ID == "" && identity.Name == "" {
		identity = known
	}
	if !identity.Role.Valid() {
		identity.Role = domain.RoleUser
	}
	s.conns.SetIdentity(conn, identity)

	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		roomID = s.CreateRoom()
	}

	if cur, in := s.conns.Room(conn); in {
		if cur == roomID {
			s.conns.Send(conn, domain.Event{
				Type:        domain.EventRoomJoined,
				RoomID:      roomID,
				MemberCount: s.table.Count(roomID),
			})
			return roomID, nil
		}
		s.leave(conn, cur)
	}

	res, err := s.table.Join(roomID, conn, identity)
	if err != nil {
		if errors.Is(err, domain.ErrRoomFull) {
			s.log.InfoContext(ctx, "room full", "room", roomID, "conn", conn, "members", res.MemberCount)
			s.conns.Send(conn, domain.Event{
				Type:        domain.EventRoomFull,
				RoomID:      roomID,
				MemberCount: res.MemberCount,
			})
		}
		return roomID, err
	}

	if !s.conns.SetRoom(conn, roomID) {
		// closed between the two steps; its close hook saw no room, so undo here
		s.table.Leave(roomID, conn)
		return roomID, domain.ErrUnknownConnection
	}

	s.log.InfoContext(ctx, "joined room", "room", roomID, "conn", conn, "members", res.MemberCount)

	s.conns.Send(conn, domain.Event{
		Type:        domain.EventRoomJoined,
		RoomID:      roomID,
		MemberCount: res.MemberCount,
	})
	member := identity
	for _, m := range res.Others {
		s.conns.Send(m.Conn, domain.Event{
			Type:        domain.EventMemberJoined,
			RoomID:      roomID,
			MemberCount: res.MemberCount,
			Member:      &member,
		})
	}
	return roomID, nil
}

// Leave handles explicit leave-room and end-call. An empty roomID means the current room.
// It reports whether a membership was actually removed.
func (s *RoomService) Leave(ctx context.Context, conn domain.ConnID, roomID string) bool {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		cur, ok := s.conns.Room(conn)
		if !ok {
			return false
		}
		roomID = cur
	}

	removed := s.leave(conn, roomID)
	if removed {
		s.log.InfoContext(ctx, "left room", "room", roomID, "conn", conn)
	}
	return removed
}

// Disconnect is the registry close hook.
func (s *RoomService) Disconnect(conn domain.ConnID, roomID string, _ domain.Identity) {
	if roomID == "" {
		return
	}
	if s.leave(conn, roomID) {
		s.log.Info("connection closed, left room", "room", roomID, "conn", conn)
	}
}

func (s *RoomService) leave(conn domain.ConnID, roomID string) bool {
	res := s.table.Leave(roomID, conn)
	s.conns.ClearRoom(conn, roomID)
	if !res.Removed {
		return false
	}

	for _, m := range res.Remaining {
		s.conns.Send(m.Conn, domain.Event{
			Type:        domain.EventCallEnded,
			RoomID:      roomID,
			MemberCount: res.MemberCount,
		})
	}
	return true
}

func (s *RoomService) LiveRooms() []domain.RoomInfo {
	return s.table.Rooms()
}

// LiveMembers returns nil for rooms that are not live.
func (s *RoomService) LiveMembers(roomID string) []domain.Member {
	return s.table.Members(strings.TrimSpace(roomID))
}

func (s *RoomService) Capacity() int {
	return s.table.Capacity()
}

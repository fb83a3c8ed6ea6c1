package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cwrk-planet/call-service/internal/domain"
	"github.com/cwrk-planet/call-service/internal/service"
	"github.com/cwrk-planet/call-service/pkg/logger"

	"github.com/go-chi/chi/v5"
)

type RoomSvc interface {
	CreateRoom() string
	Capacity() int
	LiveRooms() []domain.RoomInfo
	LiveMembers(roomID string) []domain.Member
}

type ChatSvc interface {
	History(ctx context.Context, roomID string) ([]domain.ChatMessage, error)
	ActiveRooms(ctx context.Context) ([]domain.RoomSummary, error)
}

type MentorSvc interface {
	Login(ctx context.Context, username, secret string) (*service.LoginResult, error)
	Authorize(token string) (domain.Identity, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	roomSvc   RoomSvc
	chatSvc   ChatSvc
	mentorSvc MentorSvc
	store     Pinger
}

func NewHandler(room RoomSvc, chat ChatSvc, mentor MentorSvc, store Pinger) *Handler {
	return &Handler{
		roomSvc:   room,
		chatSvc:   chat,
		mentorSvc: mentor,
		store:     store,
	}
}

// GET /readyz
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		slog.WarnContext(r.Context(), "handler.Ready: store ping failed", logger.Err(err))
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "storage unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// POST /rooms
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, CreateRoomResponse{
		RoomID:   h.roomSvc.CreateRoom(),
		Capacity: h.roomSvc.Capacity(),
	})
}

// GET /rooms/{id}/messages
func (h *Handler) GetChatHistory(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")

	items, err := h.chatSvc.History(r.Context(), roomID)
	if err != nil {
		writeError(w, r, "handler.GetChatHistory", err)
		return
	}
	if items == nil {
		items = []domain.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, ChatHistoryResponse{RoomID: roomID, Items: items})
}

// GET /rooms/{id}/members
func (h *Handler) GetMembers(w http.ResponseWriter, r *http.Request) {
	roomID := strings.TrimSpace(chi.URLParam(r, "id"))

	members := h.roomSvc.LiveMembers(roomID)
	resp := MembersResponse{RoomID: roomID, Live: members != nil, Items: make([]MemberItem, 0, len(members))}
	for _, m := range members {
		resp.Items = append(resp.Items, MemberItem{
			ID:       m.Identity.ID,
			Name:     m.Identity.Name,
			Role:     m.Identity.Role,
			JoinedAt: m.JoinedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /mentors/login
func (h *Handler) MentorLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	res, err := h.mentorSvc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, "handler.MentorLogin", err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{
		AccessToken: res.AccessToken,
		TokenType:   "Bearer",
		ExpiresAt:   res.ExpiresAt,
	})
}

// GET /rooms/active (mentor only)
func (h *Handler) ListActiveRooms(w http.ResponseWriter, r *http.Request) {
	items, err := h.chatSvc.ActiveRooms(r.Context())
	if err != nil {
		writeError(w, r, "handler.ListActiveRooms", err)
		return
	}
	if items == nil {
		items = []domain.RoomSummary{}
	}
	if mentor, ok := IdentityFromContext(r.Context()); ok {
		slog.InfoContext(r.Context(), "active rooms listed", "mentor", mentor.ID, "rooms", len(items))
	}
	writeJSON(w, http.StatusOK, ActiveRoomsResponse{Items: items})
}

// GET /rooms/live (mentor only)
func (h *Handler) ListLiveRooms(w http.ResponseWriter, r *http.Request) {
	rooms := h.roomSvc.LiveRooms()
	resp := LiveRoomsResponse{Items: make([]LiveRoomItem, 0, len(rooms))}
	for _, rm := range rooms {
		resp.Items = append(resp.Items, LiveRoomItem{
			RoomID:    rm.ID,
			Members:   rm.Members,
			CreatedAt: rm.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

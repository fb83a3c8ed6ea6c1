// Package ws is the realtime transport: one websocket per client carrying tagged JSON frames.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cwrk-planet/call-service/internal/domain"
	"github.com/cwrk-planet/call-service/internal/registry"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/cwrk-planet/call-service/internal/transport/ws")

type RoomSvc interface {
	CreateRoom() string
	Join(ctx context.Context, conn domain.ConnID, roomID string, identity domain.Identity) (string, error)
	Leave(ctx context.Context, conn domain.ConnID, roomID string) bool
}

type SignalSvc interface {
	Relay(kind domain.EventKind, roomID string, sender domain.ConnID, payload json.RawMessage) (int, error)
}

type ChatSvc interface {
	SendFrom(ctx context.Context, conn domain.ConnID, roomID string, role domain.Role, senderName, text string) (domain.ChatMessage, error)
}

type TokenParser interface {
	Parse(token string) (domain.Identity, error)
}

type Options struct {
	PingEvery      time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
	SendBuffer     int
	AllowedOrigins []string
	// RequireToken rejects upgrades without a valid access_token.
	RequireToken bool
}

type Server struct {
	upgrader websocket.Upgrader
	conns    *registry.Registry
	rooms    RoomSvc
	signals  SignalSvc
	chat     ChatSvc
	tokens   TokenParser // nil disables token checks
	opts     Options
	log      *slog.Logger
}

func NewServer(conns *registry.Registry, rooms RoomSvc, signals SignalSvc, chat ChatSvc, tokens TokenParser, opts Options, log *slog.Logger) *Server {
	if opts.PingEvery <= 0 {
		opts.PingEvery = 15 * time.Second
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = 5 * time.Second
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = 64 * 1024
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		conns:   conns,
		rooms:   rooms,
		signals: signals,
		chat:    chat,
		tokens:  tokens,
		opts:    opts,
		log:     log,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range s.opts.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// HandleWS serves GET /ws?access_token=...
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	identity, verified, err := s.authenticate(r)
	if err != nil {
		s.log.InfoContext(r.Context(), "ws: rejected handshake", "err", err)
		http.Error(w, "invalid or missing access_token", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already written the error response
		s.log.WarnContext(r.Context(), "ws: upgrade failed", "err", err)
		return
	}

	c := newClient(conn, s.opts.SendBuffer, s.opts.WriteWait, s.opts.PingEvery)
	c.verified = verified
	c.id = s.conns.Register(c, identity)

	s.log.DebugContext(r.Context(), "ws: connected", "conn", c.id, "verified", verified)

	go c.writePump()
	s.readPump(r.Context(), c)
}

func (s *Server) authenticate(r *http.Request) (domain.Identity, bool, error) {
	token := strings.TrimSpace(r.URL.Query().Get("access_token"))
	if token == "" {
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		}
	}

	if token == "" || s.tokens == nil {
		if s.opts.RequireToken {
			return domain.Identity{}, false, domain.ErrInvalidToken
		}
		return domain.Identity{Role: domain.RoleUser}, false, nil
	}

	id, err := s.tokens.Parse(token)
	if err != nil {
		return domain.Identity{}, false, err
	}
	return id, true, nil
}

// readPump runs until the peer goes away; on exit the registry runs the leave path.
func (s *Server) readPump(ctx context.Context, c *client) {
	defer func() {
		s.conns.Unregister(c.id)
		_ = c.Close()
		s.log.Debug("ws: disconnected", "conn", c.id)
	}()

	c.conn.SetReadLimit(s.opts.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.opts.PingEvery))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * s.opts.PingEvery))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("ws: read failed", "conn", c.id, "err", err)
			}
			return
		}
		// any frame counts as liveness
		_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.opts.PingEvery))

		s.dispatch(ctx, c, data)
	}
}

// dispatch handles exactly one client frame.
func (s *Server) dispatch(ctx context.Context, c *client, data []byte) {
	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		_ = c.Send(errorEvent("", CodeBadRequest, "malformed frame"))
		return
	}

	ctx, span := tracer.Start(ctx, "ws "+string(h.Type),
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("ws.conn", string(c.id)),
			attribute.String("room.id", h.RoomID),
		))
	defer span.End()

	switch h.Type {
	case KindJoinRoom:
		var p JoinRoomPayload
		if !s.decode(c, h, data, &p) {
			return
		}
		s.handleJoin(ctx, c, p)

	case KindLeaveRoom, KindEndCall:
		var p LeaveRoomPayload
		if !s.decode(c, h, data, &p) {
			return
		}
		s.rooms.Leave(ctx, c.id, p.RoomID)

	case KindOffer, KindAnswer, KindICECandidate:
		var p SignalPayload
		if !s.decode(c, h, data, &p) {
			return
		}
		n, err := s.signals.Relay(domain.EventKind(h.Type), p.RoomID, c.id, p.Payload)
		span.SetAttributes(attribute.Int("signal.recipients", n))
		s.reportErr(ctx, c, p.RoomID, err)

	case KindSendMessage:
		var p SendMessagePayload
		if !s.decode(c, h, data, &p) {
			return
		}
		role, name := s.sender(c, p)
		_, err := s.chat.SendFrom(ctx, c.id, p.RoomID, role, name, p.Text)
		s.reportErr(ctx, c, p.RoomID, err)

	case KindCreateRoom:
		_ = c.Send(domain.Event{Type: domain.EventRoomCreated, RoomID: s.rooms.CreateRoom()})

	case KindPing:
		_ = c.Send(domain.Event{Type: domain.EventPong})

	default:
		_ = c.Send(errorEvent(h.RoomID, CodeUnknownType, "unknown message type "+string(h.Type)))
	}
}

func (s *Server) decode(c *client, h header, data []byte, dst any) bool {
	if err := json.Unmarshal(data, dst); err != nil {
		_ = c.Send(errorEvent(h.RoomID, CodeBadRequest, "malformed "+string(h.Type)+" frame"))
		return false
	}
	return true
}

func (s *Server) handleJoin(ctx context.Context, c *client, p JoinRoomPayload) {
	var identity domain.Identity
	if c.verified || p.Identity == nil {
		identity, _ = s.conns.Identity(c.id)
	} else {
		identity = *p.Identity
		identity.Role = domain.ParseRole(string(identity.Role))
	}

	_, err := s.rooms.Join(ctx, c.id, p.RoomID, identity)
	switch {
	case err == nil, errors.Is(err, domain.ErrRoomFull), errors.Is(err, domain.ErrUnknownConnection):
		// room-full was already sent; an unknown connection is closing anyway
	default:
		s.log.Error("ws: join failed", "conn", c.id, "room", p.RoomID, "err", err)
		_ = c.Send(errorEvent(p.RoomID, CodeInternal, "join failed"))
	}
}

// sender picks the chat author: a verified identity wins over whatever the frame claims.
func (s *Server) sender(c *client, p SendMessagePayload) (domain.Role, string) {
	known, _ := s.conns.Identity(c.id)
	if c.verified {
		return known.Role, known.Name
	}

	role, name := p.Sender, strings.TrimSpace(p.SenderName)
	if role == "" {
		role = known.Role
	}
	if name == "" {
		name = known.Name
	}
	return domain.ParseRole(string(role)), name
}

// reportErr surfaces failures to the sender only; membership races are dropped silently.
func (s *Server) reportErr(ctx context.Context, c *client, roomID string, err error) {
	if err != nil && !errors.Is(err, domain.ErrNotAMember) {
		span := trace.SpanFromContext(ctx)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	switch {
	case err == nil, errors.Is(err, domain.ErrNotAMember):
	case errors.Is(err, domain.ErrValidation):
		_ = c.Send(errorEvent(roomID, CodeValidation, err.Error()))
	case errors.Is(err, domain.ErrStoreUnavailable):
		_ = c.Send(errorEvent(roomID, CodeStoreUnavailable, "message was not stored"))
	default:
		s.log.ErrorContext(ctx, "ws: request failed", "conn", c.id, "room", roomID, "err", err)
		_ = c.Send(errorEvent(roomID, CodeInternal, "internal error"))
	}
}

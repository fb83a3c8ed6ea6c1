package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cwrk-planet/call-service/internal/domain"
	"github.com/cwrk-planet/call-service/internal/membership"
	"github.com/cwrk-planet/call-service/internal/registry"
	"github.com/cwrk-planet/call-service/internal/security"
	"github.com/cwrk-planet/call-service/internal/service"
	"github.com/cwrk-planet/call-service/internal/storage/memory"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stack struct {
	srv    *httptest.Server
	conns  *registry.Registry
	table  *membership.Table
	chat   *service.ChatService
	signer *security.TokenSigner
}

func newStack(t *testing.T, opts Options) *stack {
	t.Helper()

	table := membership.New(2)
	conns := registry.New()
	rooms, err := service.NewRoomService(table, conns, nil)
	require.NoError(t, err)
	chat := service.NewChatService(memory.New(), table, conns, 200, nil)
	signer := security.NewTokenSigner("ws-secret", "call-service", time.Hour, 0)

	if opts.PingEvery == 0 {
		opts.PingEvery = 5 * time.Second
	}
	ws := NewServer(conns, rooms, service.NewSignalService(table, conns, nil), chat, signer, opts, nil)

	srv := httptest.NewServer(http.HandlerFunc(ws.HandleWS))
	t.Cleanup(func() {
		conns.Close()
		srv.Close()
	})
	return &stack{srv: srv, conns: conns, table: table, chat: chat, signer: signer}
}

func (s *stack) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ws" + query
	c, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func send(t *testing.T, c *websocket.Conn, frame map[string]any) {
	t.Helper()
	require.NoError(t, c.WriteJSON(frame))
}

func next(t *testing.T, c *websocket.Conn) domain.Event {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(3*time.Second)))
	var ev domain.Event
	require.NoError(t, c.ReadJSON(&ev))
	return ev
}

func expect(t *testing.T, c *websocket.Conn, kind domain.EventKind) domain.Event {
	t.Helper()
	ev := next(t, c)
	require.Equal(t, kind, ev.Type, "got %+v", ev)
	return ev
}

// quiet proves nothing else is queued for c: a ping is answered by the very next frame.
func quiet(t *testing.T, c *websocket.Conn) {
	t.Helper()
	send(t, c, map[string]any{"type": "ping"})
	expect(t, c, domain.EventPong)
}

func TestServer_JoinChatDisconnect(t *testing.T) {
	s := newStack(t, Options{})
	x := s.dial(t, "")
	y := s.dial(t, "")
	z := s.dial(t, "")

	send(t, x, map[string]any{"type": "join-room", "roomId": "R1", "identity": map[string]any{"id": "x", "name": "Xena"}})
	ev := expect(t, x, domain.EventRoomJoined)
	assert.Equal(t, "R1", ev.RoomID)
	assert.Equal(t, 1, ev.MemberCount)

	send(t, y, map[string]any{"type": "join-room", "roomId": "R1", "identity": map[string]any{"id": "y", "name": "Yuri", "role": "mentor"}})
	ev = expect(t, y, domain.EventRoomJoined)
	assert.Equal(t, 2, ev.MemberCount)

	ev = expect(t, x, domain.EventMemberJoined)
	assert.Equal(t, 2, ev.MemberCount)
	require.NotNil(t, ev.Member)
	assert.Equal(t, "Yuri", ev.Member.Name)

	send(t, z, map[string]any{"type": "join-room", "roomId": "R1", "identity": map[string]any{"id": "z"}})
	ev = expect(t, z, domain.EventRoomFull)
	assert.Equal(t, "R1", ev.RoomID)
	assert.Equal(t, 2, s.table.Count("R1"))
	quiet(t, x)
	quiet(t, y)

	send(t, x, map[string]any{"type": "send-message", "roomId": "R1", "sender": "user", "senderName": "Xena", "text": "hello"})
	fromX := expect(t, x, domain.EventNewMessage)
	fromY := expect(t, y, domain.EventNewMessage)
	require.NotNil(t, fromX.ChatMessage)
	require.NotNil(t, fromY.ChatMessage)
	assert.Equal(t, "hello", fromX.ChatMessage.Text)
	assert.Equal(t, fromX.ChatMessage.Text, fromY.ChatMessage.Text)
	assert.True(t, fromX.ChatMessage.CreatedAt.Equal(fromY.ChatMessage.CreatedAt))
	assert.Equal(t, "Xena", fromY.ChatMessage.SenderName)
	quiet(t, z)

	hist, err := s.chat.History(context.Background(), "R1")
	require.NoError(t, err)
	require.Len(t, hist, 1)

	require.NoError(t, y.Close())
	ev = expect(t, x, domain.EventCallEnded)
	assert.Equal(t, "R1", ev.RoomID)
	assert.Equal(t, 1, ev.MemberCount)

	require.NoError(t, x.Close())
	require.Eventually(t, func() bool { return !s.table.Exists("R1") }, 3*time.Second, 10*time.Millisecond)

	active, err := s.chat.ActiveRooms(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "R1", active[0].RoomID)
	assert.Zero(t, active[0].LiveMembers)

	hist, err = s.chat.History(context.Background(), "R1")
	require.NoError(t, err)
	assert.Len(t, hist, 1, "history outlives the room")
}

func TestServer_SignalingFanOut(t *testing.T) {
	s := newStack(t, Options{})
	a := s.dial(t, "")
	b := s.dial(t, "")

	send(t, a, map[string]any{"type": "join-room", "roomId": "S"})
	expect(t, a, domain.EventRoomJoined)
	send(t, b, map[string]any{"type": "join-room", "roomId": "S"})
	expect(t, b, domain.EventRoomJoined)
	expect(t, a, domain.EventMemberJoined)

	blob := `{"candidate":"candidate:1 1 UDP 2122252543 10.0.0.1 54321 typ host","sdpMid":"0"}`
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"type":"ice-candidate","roomId":"S","payload":`+blob+`}`)))

	ev := expect(t, b, domain.EventICECandidate)
	assert.Equal(t, "S", ev.RoomID)
	assert.NotEmpty(t, ev.From)
	assert.JSONEq(t, blob, string(ev.Payload))
	quiet(t, a)

	// after leaving, a's offers go nowhere and nobody is told about it
	send(t, a, map[string]any{"type": "end-call", "roomId": "S"})
	expect(t, b, domain.EventCallEnded)
	send(t, a, map[string]any{"type": "offer", "roomId": "S", "payload": map[string]any{"sdp": "x"}})
	quiet(t, a)
	quiet(t, b)
}

func TestServer_ProtocolErrors(t *testing.T) {
	s := newStack(t, Options{})
	c := s.dial(t, "")

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(`{nope`)))
	ev := expect(t, c, domain.EventError)
	assert.Equal(t, CodeBadRequest, ev.Error.Code)

	send(t, c, map[string]any{"type": "teleport"})
	ev = expect(t, c, domain.EventError)
	assert.Equal(t, CodeUnknownType, ev.Error.Code)

	send(t, c, map[string]any{"type": "join-room", "roomId": "V"})
	expect(t, c, domain.EventRoomJoined)

	send(t, c, map[string]any{"type": "send-message", "roomId": "V", "text": "   "})
	ev = expect(t, c, domain.EventError)
	assert.Equal(t, CodeValidation, ev.Error.Code)
	assert.Equal(t, "V", ev.RoomID)
}

func TestServer_CreateRoom(t *testing.T) {
	s := newStack(t, Options{})
	c := s.dial(t, "")

	send(t, c, map[string]any{"type": "create-room"})
	created := expect(t, c, domain.EventRoomCreated)
	require.NotEmpty(t, created.RoomID)

	send(t, c, map[string]any{"type": "join-room", "roomId": created.RoomID})
	joined := expect(t, c, domain.EventRoomJoined)
	assert.Equal(t, created.RoomID, joined.RoomID)
}

func TestServer_TokenIdentity(t *testing.T) {
	s := newStack(t, Options{RequireToken: true})

	u := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(u+"?access_token=forged", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	mentorTok, _, err := s.signer.Sign(domain.Identity{ID: "m1", Name: "Maria", Role: domain.RoleMentor})
	require.NoError(t, err)
	userTok, _, err := s.signer.Sign(domain.Identity{ID: "u1", Name: "Ulan", Role: domain.RoleUser})
	require.NoError(t, err)

	m := s.dial(t, "?access_token="+mentorTok)
	u1 := s.dial(t, "?access_token="+userTok)

	send(t, m, map[string]any{"type": "join-room", "roomId": "T"})
	expect(t, m, domain.EventRoomJoined)

	// the payload identity is ignored for verified connections
	send(t, u1, map[string]any{"type": "join-room", "roomId": "T", "identity": map[string]any{"id": "evil", "name": "Admin", "role": "mentor"}})
	expect(t, u1, domain.EventRoomJoined)
	ev := expect(t, m, domain.EventMemberJoined)
	require.NotNil(t, ev.Member)
	assert.Equal(t, domain.Identity{ID: "u1", Name: "Ulan", Role: domain.RoleUser}, *ev.Member)

	send(t, u1, map[string]any{"type": "send-message", "roomId": "T", "sender": "mentor", "senderName": "Admin", "text": "hi"})
	msg := expect(t, m, domain.EventNewMessage)
	assert.Equal(t, "Ulan", msg.ChatMessage.SenderName)
	assert.Equal(t, domain.RoleUser, msg.ChatMessage.SenderRole)
}

func TestServer_EventWireFormat(t *testing.T) {
	ev := domain.Event{Type: domain.EventRoomJoined, RoomID: "R1", MemberCount: 1}
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"room-joined","roomId":"R1","memberCount":1}`, string(data))

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	data, err = json.Marshal(domain.Event{
		Type:   domain.EventNewMessage,
		RoomID: "R1",
		ChatMessage: &domain.ChatMessage{
			ID: "m1", RoomID: "R1", SenderRole: domain.RoleUser, SenderName: "A", Text: "hi", CreatedAt: at,
		},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"new-message","roomId":"R1","id":"m1","sender":"user","senderName":"A","text":"hi","createdAt":"2026-03-01T10:00:00Z"}`, string(data))
}

func TestClient_SlowConsumerIsClosed(t *testing.T) {
	c := newClient(nil, 1, time.Second, time.Second)

	require.NoError(t, c.Send(domain.Event{Type: domain.EventPong}))
	assert.ErrorIs(t, c.Send(domain.Event{Type: domain.EventPong}), errSlowConsumer)
	assert.ErrorIs(t, c.Send(domain.Event{Type: domain.EventPong}), errClosed)
	assert.NoError(t, c.Close(), "second close is a no-op")
}

package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cwrk-planet/call-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomService_JoinUntilFull(t *testing.T) {
	e := newEnv(t, 2)
	ctx := context.Background()
	x, xs := e.connect("x")
	y, ys := e.connect("y")
	z, zs := e.connect("z")

	_, err := e.rooms.Join(ctx, x, "R1", domain.Identity{ID: "x", Name: "Xena"})
	require.NoError(t, err)
	evs := xs.take()
	require.Len(t, evs, 1)
	assert.Equal(t, domain.EventRoomJoined, evs[0].Type)
	assert.Equal(t, "R1", evs[0].RoomID)
	assert.Equal(t, 1, evs[0].MemberCount)

	_, err = e.rooms.Join(ctx, y, "R1", domain.Identity{ID: "y", Name: "Yuri", Role: domain.RoleMentor})
	require.NoError(t, err)
	evs = ys.take()
	require.Len(t, evs, 1)
	assert.Equal(t, domain.EventRoomJoined, evs[0].Type)
	assert.Equal(t, 2, evs[0].MemberCount)

	evs = xs.take()
	require.Len(t, evs, 1)
	assert.Equal(t, domain.EventMemberJoined, evs[0].Type)
	assert.Equal(t, 2, evs[0].MemberCount)
	require.NotNil(t, evs[0].Member)
	assert.Equal(t, "Yuri", evs[0].Member.Name)
	assert.Equal(t, domain.RoleMentor, evs[0].Member.Role)

	_, err = e.rooms.Join(ctx, z, "R1", domain.Identity{ID: "z"})
	require.ErrorIs(t, err, domain.ErrRoomFull)
	evs = zs.take()
	require.Len(t, evs, 1)
	assert.Equal(t, domain.EventRoomFull, evs[0].Type)
	assert.Equal(t, "R1", evs[0].RoomID)

	// only the requester hears about it, and nothing changed
	assert.Empty(t, xs.take())
	assert.Empty(t, ys.take())
	assert.Equal(t, 2, e.table.Count("R1"))
	_, inRoom := e.conns.Room(z)
	assert.False(t, inRoom)
}

func TestRoomService_EmptyRoomIDMintsOne(t *testing.T) {
	e := newEnv(t, 2)
	x, xs := e.connect("x")

	roomID, err := e.rooms.Join(context.Background(), x, "  ", domain.Identity{})
	require.NoError(t, err)
	assert.Len(t, roomID, roomIDLength)

	evs := xs.take()
	require.Len(t, evs, 1)
	assert.Equal(t, roomID, evs[0].RoomID)

	cur, ok := e.conns.Room(x)
	require.True(t, ok)
	assert.Equal(t, roomID, cur)

	// identity falls back to the one given at registration
	members := e.rooms.LiveMembers(roomID)
	require.Len(t, members, 1)
	assert.Equal(t, "x", members[0].Identity.Name)
	assert.Equal(t, domain.RoleUser, members[0].Identity.Role)
}

func TestRoomService_CreateRoomIsUnique(t *testing.T) {
	e := newEnv(t, 2)
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		id := e.rooms.CreateRoom()
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Empty(t, e.rooms.LiveRooms(), "minting does not create live rooms")
}

func TestRoomService_RejoinSameRoom(t *testing.T) {
	e := newEnv(t, 2)
	ctx := context.Background()
	x, xs := e.connect("x")
	y, ys := e.connect("y")

	_, _ = e.rooms.Join(ctx, x, "R1", domain.Identity{ID: "x"})
	_, _ = e.rooms.Join(ctx, y, "R1", domain.Identity{ID: "y"})
	xs.take()
	ys.take()

	_, err := e.rooms.Join(ctx, y, "R1", domain.Identity{ID: "y"})
	require.NoError(t, err)

	evs := ys.take()
	require.Len(t, evs, 1)
	assert.Equal(t, domain.EventRoomJoined, evs[0].Type)
	assert.Equal(t, 2, evs[0].MemberCount)
	assert.Empty(t, xs.take(), "no member-joined for a repeated join")
	assert.Equal(t, 2, e.table.Count("R1"))
}

func TestRoomService_SwitchRoomLeavesPrevious(t *testing.T) {
	e := newEnv(t, 2)
	ctx := context.Background()
	x, xs := e.connect("x")
	y, ys := e.connect("y")

	_, _ = e.rooms.Join(ctx, x, "R1", domain.Identity{ID: "x"})
	_, _ = e.rooms.Join(ctx, y, "R1", domain.Identity{ID: "y"})
	xs.take()
	ys.take()

	_, err := e.rooms.Join(ctx, y, "R2", domain.Identity{ID: "y"})
	require.NoError(t, err)

	evs := xs.take()
	require.Len(t, evs, 1)
	assert.Equal(t, domain.EventCallEnded, evs[0].Type)
	assert.Equal(t, "R1", evs[0].RoomID)
	assert.Equal(t, 1, evs[0].MemberCount)

	assert.Equal(t, []domain.EventKind{domain.EventRoomJoined}, kinds(ys.take()))
	assert.Equal(t, 1, e.table.Count("R1"))
	assert.Equal(t, 1, e.table.Count("R2"))
}

func TestRoomService_LeaveIsIdempotent(t *testing.T) {
	e := newEnv(t, 2)
	ctx := context.Background()
	x, xs := e.connect("x")
	y, _ := e.connect("y")

	_, _ = e.rooms.Join(ctx, x, "R1", domain.Identity{ID: "x"})
	_, _ = e.rooms.Join(ctx, y, "R1", domain.Identity{ID: "y"})
	xs.take()

	assert.True(t, e.rooms.Leave(ctx, y, "R1"))
	assert.False(t, e.rooms.Leave(ctx, y, "R1"))
	assert.False(t, e.rooms.Leave(ctx, y, ""))

	evs := xs.take()
	require.Len(t, evs, 1, "call-ended exactly once")
	assert.Equal(t, domain.EventCallEnded, evs[0].Type)
	assert.Equal(t, 1, e.table.Count("R1"))

	_, inRoom := e.conns.Room(y)
	assert.False(t, inRoom)
}

func TestRoomService_LastLeaveDeletesRoom(t *testing.T) {
	e := newEnv(t, 2)
	ctx := context.Background()
	x, xs := e.connect("x")

	_, _ = e.rooms.Join(ctx, x, "R1", domain.Identity{ID: "x"})
	xs.take()

	assert.True(t, e.rooms.Leave(ctx, x, ""))
	assert.Empty(t, xs.take(), "nobody left to notify")
	assert.Nil(t, e.rooms.LiveMembers("R1"))
	assert.Empty(t, e.rooms.LiveRooms())
}

func TestRoomService_DisconnectPropagates(t *testing.T) {
	e := newEnv(t, 2)
	ctx := context.Background()
	x, xs := e.connect("x")
	y, _ := e.connect("y")

	_, _ = e.rooms.Join(ctx, x, "R1", domain.Identity{ID: "x"})
	_, _ = e.rooms.Join(ctx, y, "R1", domain.Identity{ID: "y"})
	xs.take()

	e.conns.Unregister(y)
	e.conns.Unregister(y)

	evs := xs.take()
	require.Len(t, evs, 1)
	assert.Equal(t, domain.EventCallEnded, evs[0].Type)
	assert.Equal(t, 1, evs[0].MemberCount)

	e.conns.Unregister(x)
	assert.Nil(t, e.rooms.LiveMembers("R1"))
}

func TestRoomService_UnknownConnection(t *testing.T) {
	e := newEnv(t, 2)
	_, err := e.rooms.Join(context.Background(), "ghost", "R1", domain.Identity{ID: "g"})
	assert.ErrorIs(t, err, domain.ErrUnknownConnection)
	assert.False(t, e.table.Exists("R1"))
}

func TestRoomService_ConcurrentJoins(t *testing.T) {
	const n = 40
	e := newEnv(t, 2)

	ids := make([]domain.ConnID, n)
	for i := range ids {
		ids[i], _ = e.connect(fmt.Sprintf("c%d", i))
	}

	var (
		wg   sync.WaitGroup
		ok   atomic.Int32
		full atomic.Int32
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id domain.ConnID) {
			defer wg.Done()
			_, err := e.rooms.Join(context.Background(), id, "hot", domain.Identity{ID: string(id)})
			if err == nil {
				ok.Add(1)
			} else {
				full.Add(1)
			}
		}(id)
	}
	wg.Wait()

	assert.EqualValues(t, 2, ok.Load())
	assert.EqualValues(t, n-2, full.Load())
	assert.Equal(t, 2, e.table.Count("hot"))
}

func TestRoomService_RegistryCloseLeavesEverything(t *testing.T) {
	e := newEnv(t, 0)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		id, _ := e.connect(fmt.Sprintf("c%d", i))
		_, err := e.rooms.Join(ctx, id, fmt.Sprintf("room-%d", i%2), domain.Identity{ID: string(id)})
		require.NoError(t, err)
	}
	require.Len(t, e.rooms.LiveRooms(), 2)

	e.conns.Close()
	assert.Empty(t, e.rooms.LiveRooms())
	assert.Zero(t, e.conns.Len())
}

// Package membership maps room ids to the ordered set of connections joined to them.
//
// Every mutation of a room happens under that room's own lock; the table lock only
// guards the map itself, so different rooms never wait for each other.
package membership

import (
	"sort"
	"sync"
	"time"

	"github.com/cwrk-planet/call-service/internal/domain"
)

type room struct {
	mu        sync.Mutex
	id        string
	members   []domain.Member
	createdAt time.Time
	deleted   bool // set once the last member left; a new room must be created
}

type JoinResult struct {
	Accepted    bool
	MemberCount int
	// Others are the members present before this join, in arrival order.
	Others []domain.Member
}

type LeaveResult struct {
	Removed     bool
	MemberCount int
	Remaining   []domain.Member
}

type Table struct {
	mu    sync.Mutex
	rooms map[string]*room

	capacity int
	now      func() time.Time
}

// New creates a table; capacity <= 0 means unbounded.
func New(capacity int) *Table {
	return &Table{
		rooms:    make(map[string]*room),
		capacity: capacity,
		now:      time.Now,
	}
}

func (t *Table) Capacity() int { return t.capacity }

func (t *Table) getOrCreate(roomID string) *room {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.rooms[roomID]
	if !ok {
		r = &room{id: roomID, createdAt: t.now()}
		t.rooms[roomID] = r
	}
	return r
}

func (t *Table) get(roomID string) *room {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rooms[roomID]
}

// drop removes r from the map unless another room took its id meanwhile.
func (t *Table) drop(r *room) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.rooms[r.id]; ok && cur == r {
		delete(t.rooms, r.id)
	}
}

// Join appends conn to the room. A full room returns domain.ErrRoomFull and is left untouched.
// Joining twice with the same conn is accepted without a second entry.
func (t *Table) Join(roomID string, conn domain.ConnID, identity domain.Identity) (JoinResult, error) {
	for {
		r := t.getOrCreate(roomID)

		r.mu.Lock()
		if r.deleted {
			// lost the race with the last leave; retry on a fresh room
			r.mu.Unlock()
			continue
		}

		if idx := indexOf(r.members, conn); idx >= 0 {
			res := JoinResult{Accepted: true, MemberCount: len(r.members), Others: without(r.members, conn)}
			r.mu.Unlock()
			return res, nil
		}

		if t.capacity > 0 && len(r.members) >= t.capacity {
			n := len(r.members)
			r.mu.Unlock()
			return JoinResult{Accepted: false, MemberCount: n}, domain.ErrRoomFull
		}

		others := append([]domain.Member(nil), r.members...)
		r.members = append(r.members, domain.Member{Conn: conn, Identity: identity, JoinedAt: t.now()})
		res := JoinResult{Accepted: true, MemberCount: len(r.members), Others: others}
		r.mu.Unlock()
		return res, nil
	}
}

// Leave removes conn from the room. Calling it again, or for a conn that never
// joined, reports Removed=false and changes nothing.
func (t *Table) Leave(roomID string, conn domain.ConnID) LeaveResult {
	r := t.get(roomID)
	if r == nil {
		return LeaveResult{}
	}

	r.mu.Lock()
	idx := indexOf(r.members, conn)
	if r.deleted || idx < 0 {
		n := len(r.members)
		r.mu.Unlock()
		return LeaveResult{MemberCount: n}
	}

	r.members = append(r.members[:idx], r.members[idx+1:]...)
	res := LeaveResult{
		Removed:     true,
		MemberCount: len(r.members),
		Remaining:   append([]domain.Member(nil), r.members...),
	}
	emptied := len(r.members) == 0
	if emptied {
		r.deleted = true
	}
	r.mu.Unlock()

	if emptied {
		t.drop(r)
	}
	return res
}

// Members returns the room's members in arrival order, nil when the room does not exist.
func (t *Table) Members(roomID string) []domain.Member {
	r := t.get(roomID)
	if r == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleted || len(r.members) == 0 {
		return nil
	}
	return append([]domain.Member(nil), r.members...)
}

func (t *Table) IsMember(roomID string, conn domain.ConnID) bool {
	r := t.get(roomID)
	if r == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.deleted && indexOf(r.members, conn) >= 0
}

func (t *Table) Count(roomID string) int {
	r := t.get(roomID)
	if r == nil {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleted {
		return 0
	}
	return len(r.members)
}

func (t *Table) Exists(roomID string) bool {
	return t.Count(roomID) > 0
}

// Rooms is the live view: every room with at least one member, oldest first.
func (t *Table) Rooms() []domain.RoomInfo {
	t.mu.Lock()
	rs := make([]*room, 0, len(t.rooms))
	for _, r := range t.rooms {
		rs = append(rs, r)
	}
	t.mu.Unlock()

	out := make([]domain.RoomInfo, 0, len(rs))
	for _, r := range rs {
		r.mu.Lock()
		if !r.deleted && len(r.members) > 0 {
			out = append(out, domain.RoomInfo{ID: r.id, Members: len(r.members), CreatedAt: r.createdAt})
		}
		r.mu.Unlock()
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func indexOf(members []domain.Member, conn domain.ConnID) int {
	for i, m := range members {
		if m.Conn == conn {
			return i
		}
	}
	return -1
}

func without(members []domain.Member, conn domain.ConnID) []domain.Member {
	out := make([]domain.Member, 0, len(members))
	for _, m := range members {
		if m.Conn != conn {
			out = append(out, m)
		}
	}
	return out
}

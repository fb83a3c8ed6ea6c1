// Package registry tracks live connections and the room each one has joined.
package registry

import (
	"log/slog"
	"sync"

	"github.com/cwrk-planet/call-service/internal/domain"

	"github.com/google/uuid"
)

// CloseFunc runs once per unregistered connection with the room it was in ("" if none).
type CloseFunc func(id domain.ConnID, roomID string, identity domain.Identity)

type conn struct {
	sink     domain.Sink
	roomID   string
	identity domain.Identity
}

type Registry struct {
	mu    sync.RWMutex
	conns map[domain.ConnID]*conn

	onClose CloseFunc
}

func New() *Registry {
	return &Registry{conns: make(map[domain.ConnID]*conn)}
}

// OnClose sets the hook invoked by Unregister. Set it before serving traffic.
func (r *Registry) OnClose(fn CloseFunc) {
	r.mu.Lock()
	r.onClose = fn
	r.mu.Unlock()
}

func (r *Registry) Register(sink domain.Sink, identity domain.Identity) domain.ConnID {
	id := domain.ConnID(uuid.NewString())

	r.mu.Lock()
	r.conns[id] = &conn{sink: sink, identity: identity}
	r.mu.Unlock()

	slog.Debug("registry: connection registered", "conn", id)
	return id
}

// Unregister forgets the connection and runs the close hook. Unknown ids are a no-op,
// so a second call for the same id does nothing.
func (r *Registry) Unregister(id domain.ConnID) {
	r.mu.Lock()
	c, ok := r.conns[id]
	if ok {
		delete(r.conns, id)
	}
	hook := r.onClose
	r.mu.Unlock()

	if !ok {
		return
	}
	slog.Debug("registry: connection unregistered", "conn", id, "room", c.roomID)
	if hook != nil {
		hook(id, c.roomID, c.identity)
	}
}

func (r *Registry) Room(id domain.ConnID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conns[id]
	if !ok || c.roomID == "" {
		return "", false
	}
	return c.roomID, true
}

// SetRoom records (or clears, with "") the connection's room. False for unknown ids.
func (r *Registry) SetRoom(id domain.ConnID, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[id]
	if !ok {
		return false
	}
	c.roomID = roomID
	return true
}

// ClearRoom resets the room only if it still equals roomID.
func (r *Registry) ClearRoom(id domain.ConnID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.conns[id]; ok && c.roomID == roomID {
		c.roomID = ""
	}
}

func (r *Registry) Identity(id domain.ConnID) (domain.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conns[id]
	if !ok {
		return domain.Identity{}, false
	}
	return c.identity, true
}

func (r *Registry) SetIdentity(id domain.ConnID, identity domain.Identity) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[id]
	if !ok {
		return false
	}
	c.identity = identity
	return true
}

func (r *Registry) Sink(id domain.ConnID) (domain.Sink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	return c.sink, true
}

// Send delivers ev to id; missing or failing connections are skipped.
func (r *Registry) Send(id domain.ConnID, ev domain.Event) bool {
	sink, ok := r.Sink(id)
	if !ok {
		return false
	}
	if err := sink.Send(ev); err != nil {
		slog.Debug("registry: send failed", "conn", id, "type", ev.Type, "err", err)
		return false
	}
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Close unregisters every connection (running the close hook) and closes their sinks.
func (r *Registry) Close() {
	r.mu.RLock()
	ids := make([]domain.ConnID, 0, len(r.conns))
	sinks := make([]domain.Sink, 0, len(r.conns))
	for id, c := range r.conns {
		ids = append(ids, id)
		sinks = append(sinks, c.sink)
	}
	r.mu.RUnlock()

	for _, id := range ids {
		r.Unregister(id)
	}
	for _, s := range sinks {
		_ = s.Close()
	}
}

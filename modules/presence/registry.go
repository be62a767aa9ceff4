package presence

import (
	"errors"
	"slices"
	"sort"
	"sync"
)

// ErrDuplicateConnection is returned when a connection id is already registered.
var ErrDuplicateConnection = errors.New("connection already registered")

// Registry owns the set of live connections and the room membership index.
// A connection is in at most one room, and rooms[r] holds exactly the
// connections whose Room is r, in join order. Empty rooms are dropped.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]*entry
	rooms  map[string][]string
	nextID uint64
}

type entry struct {
	conn Connection
	seq  uint64
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*entry),
		rooms: make(map[string][]string),
	}
}

// Register adds a connection that is not in any room yet.
func (r *Registry) Register(c Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[c.ID]; ok {
		return ErrDuplicateConnection
	}
	c.Room = ""
	r.nextID++
	r.conns[c.ID] = &entry{conn: c, seq: r.nextID}
	return nil
}

// MoveToRoom places the connection in room, leaving its previous room.
// ok is false when the connection is not registered.
func (r *Registry) MoveToRoom(connID, room string) (Move, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.conns[connID]
	if !ok {
		return Move{}, false
	}

	mv := Move{PreviousRoom: e.conn.Room}
	if e.conn.Room != room {
		if e.conn.Room != "" {
			r.removeFromRoom(e.conn.Room, connID)
			mv.OldRoom = r.listLocked(e.conn.Room)
		}
		r.rooms[room] = append(r.rooms[room], connID)
		e.conn.Room = room
		mv.Changed = true
	}

	mv.Connection = e.conn
	mv.NewRoom = r.listLocked(room)
	return mv, true
}

// Unregister removes a connection and returns it with the room it was in.
// Removing an unknown connection is a no-op and reports false.
func (r *Registry) Unregister(connID string) (Connection, string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.conns[connID]
	if !ok {
		return Connection{}, "", false
	}
	delete(r.conns, connID)
	if e.conn.Room != "" {
		r.removeFromRoom(e.conn.Room, connID)
	}
	return e.conn, e.conn.Room, true
}

// Get returns a copy of a registered connection.
func (r *Registry) Get(connID string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.conns[connID]
	if !ok {
		return Connection{}, false
	}
	return e.conn, true
}

// ListRoom returns the members of room in join order.
func (r *Registry) ListRoom(room string) []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listLocked(room)
}

// ListRoomExcept returns the members of room except connID.
func (r *Registry) ListRoomExcept(room, connID string) []Connection {
	conns := r.ListRoom(room)
	return slices.DeleteFunc(conns, func(c Connection) bool { return c.ID == connID })
}

// SnapshotAll returns every connection in registration order.
func (r *Registry) SnapshotAll() []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// RoomCount returns the number of connections in room.
func (r *Registry) RoomCount(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}

// Rooms returns the non-empty rooms with their member counts.
func (r *Registry) Rooms() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]int, len(r.rooms))
	for room, ids := range r.rooms {
		out[room] = len(ids)
	}
	return out
}

func (r *Registry) listLocked(room string) []Connection {
	ids := r.rooms[room]
	out := make([]Connection, 0, len(ids))
	for _, id := range ids {
		if e, ok := r.conns[id]; ok {
			out = append(out, e.conn)
		}
	}
	return out
}

func (r *Registry) snapshotLocked() []Connection {
	entries := make([]*entry, 0, len(r.conns))
	for _, e := range r.conns {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	out := make([]Connection, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.conn)
	}
	return out
}

func (r *Registry) removeFromRoom(room, connID string) {
	ids := slices.DeleteFunc(r.rooms[room], func(id string) bool { return id == connID })
	if len(ids) == 0 {
		delete(r.rooms, room)
		return
	}
	r.rooms[room] = ids
}

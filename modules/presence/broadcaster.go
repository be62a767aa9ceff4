package presence

import (
	"fmt"
	"sync"
	"time"

	"github.com/example/chat-app/domain/apperror"
	"github.com/example/chat-app/domain/message"
	"github.com/go-monolith/mono/pkg/types"
)

// Pusher enqueues an event for delivery to one connection. It must not
// block and must not call back into the Broadcaster.
type Pusher interface {
	Push(connID string, ev Event) error
}

// Broadcaster applies connection transitions to the Registry and enqueues
// the resulting notifications. Transitions are serialized, so every
// connection observes notifications in the order transitions were applied.
type Broadcaster struct {
	mu       sync.Mutex
	registry *Registry
	pusher   Pusher
	logger   types.Logger
	now      func() time.Time
}

// NewBroadcaster creates a Broadcaster over registry.
func NewBroadcaster(registry *Registry, pusher Pusher, logger types.Logger) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		pusher:   pusher,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Registry returns the underlying registry.
func (b *Broadcaster) Registry() *Registry {
	return b.registry
}

// Connect registers an admitted connection and notifies the others.
func (b *Broadcaster) Connect(c Connection) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.registry.Register(c); err != nil {
		return err
	}
	c.Room = ""
	b.OnConnect(c)
	return nil
}

// Join moves a connection into room. A connection that has gone away
// yields a connection_gone error and no notifications.
func (b *Broadcaster) Join(connID, room string) (Move, error) {
	if err := message.ValidateRoom(room); err != nil {
		return Move{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	mv, ok := b.registry.MoveToRoom(connID, room)
	if !ok {
		return Move{}, apperror.New(apperror.KindNotFound, apperror.CodeConnectionGone, "Connection is no longer active")
	}
	b.OnJoin(mv)
	return mv, nil
}

// Disconnect removes a connection and notifies those left behind.
// Disconnecting an unknown connection does nothing.
func (b *Broadcaster) Disconnect(connID string) (Connection, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, room, ok := b.registry.Unregister(connID)
	if !ok {
		return Connection{}, false
	}
	b.OnLeave(c, room)
	return c, true
}

// OnConnect sends the global snapshot to c and announces c to everyone else.
func (b *Broadcaster) OnConnect(c Connection) {
	all := b.registry.SnapshotAll()
	b.push(c.ID, Event{Type: EventPresenceSnapshot, Payload: SnapshotPayload{Users: Members(all)}})

	joined := Event{Type: EventUserJoined, Payload: UserPayload{User: MemberOf(c)}}
	for _, other := range all {
		if other.ID != c.ID {
			b.push(other.ID, joined)
		}
	}
}

// OnJoin sends room rosters to the new and old rooms, announces a real
// membership change in the new room, and refreshes everyone's snapshot.
func (b *Broadcaster) OnJoin(mv Move) {
	room := mv.Connection.Room

	roster := Event{Type: EventRoomRosterUpdate, Payload: RosterPayload{Room: room, Members: Members(mv.NewRoom)}}
	for _, c := range mv.NewRoom {
		b.push(c.ID, roster)
	}

	if mv.Changed && mv.PreviousRoom != "" {
		old := Event{Type: EventRoomRosterUpdate, Payload: RosterPayload{Room: mv.PreviousRoom, Members: Members(mv.OldRoom)}}
		for _, c := range mv.OldRoom {
			b.push(c.ID, old)
		}
	}

	if mv.Changed {
		text := fmt.Sprintf("%s has joined the chat.", mv.Connection.Username)
		notice := Event{Type: EventNewMessage, Payload: message.Announcement(room, text, b.now())}
		for _, c := range mv.NewRoom {
			b.push(c.ID, notice)
		}
	}

	b.broadcastSnapshot()
}

// OnLeave tells the rest of c's room that c left, then refreshes the
// snapshot of every remaining connection. c itself is not notified.
func (b *Broadcaster) OnLeave(c Connection, room string) {
	if room != "" {
		remaining := b.registry.ListRoom(room)
		left := Event{Type: EventUserLeft, Payload: UserLeftPayload{Room: room, User: MemberOf(c)}}
		roster := Event{Type: EventRoomRosterUpdate, Payload: RosterPayload{Room: room, Members: Members(remaining)}}
		for _, m := range remaining {
			b.push(m.ID, left)
			b.push(m.ID, roster)
		}
	}
	b.broadcastSnapshot()
}

func (b *Broadcaster) broadcastSnapshot() {
	all := b.registry.SnapshotAll()
	snapshot := Event{Type: EventPresenceSnapshot, Payload: SnapshotPayload{Users: Members(all)}}
	for _, c := range all {
		b.push(c.ID, snapshot)
	}
}

// push isolates delivery failures to the target connection.
func (b *Broadcaster) push(connID string, ev Event) {
	if err := b.pusher.Push(connID, ev); err != nil {
		b.logger.Warn("Failed to enqueue presence event",
			"connectionID", connID,
			"event", ev.Type,
			"error", err)
	}
}

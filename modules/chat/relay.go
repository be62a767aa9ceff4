package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/example/chat-app/domain/apperror"
	domain "github.com/example/chat-app/domain/message"
	"github.com/example/chat-app/modules/presence"
	"github.com/example/chat-app/modules/ratelimit"
	"github.com/go-monolith/mono/pkg/types"
)

// Store persists a message and returns its outbound view.
type Store interface {
	Append(ctx context.Context, draft domain.Draft) (*domain.View, error)
}

// Limiter decides whether a sender may send another message.
type Limiter interface {
	Allow(ctx context.Context, key string) (*ratelimit.Result, error)
}

// Relay validates, persists and fans out messages sent over live
// connections.
type Relay struct {
	registry *presence.Registry
	store    Store
	limiter  Limiter
	pusher   presence.Pusher
	logger   types.Logger
	seq      *sequencer
}

// NewRelay creates a Relay. limiter may be nil.
func NewRelay(registry *presence.Registry, store Store, limiter Limiter, pusher presence.Pusher, logger types.Logger) *Relay {
	return &Relay{
		registry: registry,
		store:    store,
		limiter:  limiter,
		pusher:   pusher,
		logger:   logger,
		seq:      newSequencer(),
	}
}

// Send relays a message from connID to everyone in req.Room. The sender
// must currently be in that room. The room sequencer is held from persist
// through fan-out, so members see a room's messages in persistence order.
func (r *Relay) Send(ctx context.Context, connID string, req SendRequest) (*domain.View, error) {
	conn, ok := r.registry.Get(connID)
	if !ok {
		return nil, apperror.New(apperror.KindNotFound, apperror.CodeConnectionGone, "Connection is no longer active")
	}

	draft := domain.Draft{
		SenderID:  conn.UserID,
		Room:      req.Room,
		Text:      req.Text,
		File:      req.File,
		ReplyToID: req.ReplyToID,
	}.Normalize()

	if conn.Room == "" || conn.Room != draft.Room {
		return nil, apperror.New(apperror.KindAuthorization, apperror.CodeNotInRoom, "Join the room before sending messages to it")
	}
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	if err := r.checkRate(ctx, conn.UserID); err != nil {
		return nil, err
	}

	unlock := r.seq.lock(draft.Room)
	defer unlock()

	view, err := r.store.Append(ctx, draft)
	if err != nil {
		return nil, err
	}

	ev := presence.Event{Type: presence.EventNewMessage, Payload: view}
	for _, c := range r.registry.ListRoom(draft.Room) {
		if err := r.pusher.Push(c.ID, ev); err != nil {
			r.logger.Warn("Failed to deliver message",
				"connectionID", c.ID,
				"messageID", view.ID,
				"error", err)
		}
	}
	return view, nil
}

// checkRate fails open: a limiter outage must not block chat.
func (r *Relay) checkRate(ctx context.Context, userID string) error {
	if r.limiter == nil {
		return nil
	}
	res, err := r.limiter.Allow(ctx, "send:"+userID)
	if err != nil {
		r.logger.Warn("Rate limiter unavailable", "userID", userID, "error", err)
		return nil
	}
	if !res.Allowed {
		return apperror.New(apperror.KindRateLimited, apperror.CodeRateLimited,
			fmt.Sprintf("Too many messages, retry in %.0fs", res.RetryAfter.Seconds()))
	}
	return nil
}

// sequencer hands out one mutex per room, dropped when nobody holds it.
type sequencer struct {
	mu    sync.Mutex
	rooms map[string]*roomLock
}

type roomLock struct {
	mu   sync.Mutex
	refs int
}

func newSequencer() *sequencer {
	return &sequencer{rooms: make(map[string]*roomLock)}
}

func (s *sequencer) lock(room string) func() {
	s.mu.Lock()
	l, ok := s.rooms[room]
	if !ok {
		l = &roomLock{}
		s.rooms[room] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.rooms, room)
		}
		s.mu.Unlock()
	}
}

func (s *sequencer) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

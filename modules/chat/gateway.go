package chat

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/example/chat-app/domain/apperror"
	domain "github.com/example/chat-app/domain/message"
	"github.com/example/chat-app/events"
	"github.com/example/chat-app/modules/presence"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

var errNotReady = apperror.New(apperror.KindTransport, apperror.CodeServiceUnavailable, "Chat service is not ready")

// Gateway is the live connection surface used by the transport. It ties
// admission, presence, relay and mailboxes together.
type Gateway struct {
	gate        *Gate
	hub         *Hub
	broadcaster *presence.Broadcaster
	relay       *Relay
	bus         mono.EventBus
	logger      types.Logger
}

// NewGateway creates a Gateway. bus may be nil.
func NewGateway(gate *Gate, hub *Hub, broadcaster *presence.Broadcaster, relay *Relay, bus mono.EventBus, logger types.Logger) *Gateway {
	return &Gateway{
		gate:        gate,
		hub:         hub,
		broadcaster: broadcaster,
		relay:       relay,
		bus:         bus,
		logger:      logger,
	}
}

// Ready reports whether the gateway can admit connections.
func (g *Gateway) Ready() bool {
	return g.gate != nil && g.relay != nil
}

// Admit verifies a handshake token without creating any state.
func (g *Gateway) Admit(ctx context.Context, token string) (presence.Connection, error) {
	if !g.Ready() {
		return presence.Connection{}, errNotReady
	}
	return g.gate.Admit(ctx, token)
}

// Connect opens the mailbox of an admitted connection and registers it.
// The caller drains the returned mailbox and must call Disconnect when done.
func (g *Gateway) Connect(c presence.Connection) (*Mailbox, error) {
	mb, err := g.hub.Open(c.ID)
	if err != nil {
		return nil, err
	}
	if err := g.broadcaster.Connect(c); err != nil {
		g.hub.Close(c.ID)
		return nil, err
	}

	g.logger.Info("Connection admitted", "connectionID", c.ID, "userID", c.UserID, "username", c.Username)
	g.publish(func() error {
		return events.UserConnectedV1.Publish(g.bus, events.UserConnectedEvent{
			ConnectionID: c.ID,
			UserID:       c.UserID,
			Username:     c.Username,
			Timestamp:    c.ConnectedAt,
		}, nil)
	})
	return mb, nil
}

// Join moves connID into room.
func (g *Gateway) Join(_ context.Context, connID, room string) (presence.Move, error) {
	mv, err := g.broadcaster.Join(connID, strings.TrimSpace(room))
	if err != nil {
		return presence.Move{}, err
	}
	if mv.Changed {
		c := mv.Connection
		g.logger.Debug("Connection joined room", "connectionID", c.ID, "room", c.Room, "previousRoom", mv.PreviousRoom)
		g.publish(func() error {
			return events.RoomJoinedV1.Publish(g.bus, events.RoomJoinedEvent{
				ConnectionID: c.ID,
				UserID:       c.UserID,
				Username:     c.Username,
				Room:         c.Room,
				PreviousRoom: mv.PreviousRoom,
				Timestamp:    time.Now().UTC(),
			}, nil)
		})
	}
	return mv, nil
}

// Send relays a message from connID.
func (g *Gateway) Send(ctx context.Context, connID string, req SendRequest) (*domain.View, error) {
	if !g.Ready() {
		return nil, errNotReady
	}
	return g.relay.Send(ctx, connID, req)
}

// Disconnect unregisters connID and closes its mailbox. Calling it twice
// is harmless.
func (g *Gateway) Disconnect(connID string) {
	c, ok := g.broadcaster.Disconnect(connID)
	g.hub.Close(connID)
	if !ok {
		return
	}

	g.logger.Info("Connection closed", "connectionID", c.ID, "userID", c.UserID, "room", c.Room)
	g.publish(func() error {
		return events.UserDisconnectedV1.Publish(g.bus, events.UserDisconnectedEvent{
			ConnectionID: c.ID,
			UserID:       c.UserID,
			Username:     c.Username,
			Room:         c.Room,
			Timestamp:    time.Now().UTC(),
		}, nil)
	})
}

// Handle processes one inbound client frame from connID. Outcomes are
// answered through the connection's mailbox: an ack on success, a
// messageError to the sender only on failure.
func (g *Gateway) Handle(ctx context.Context, connID string, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		g.replyError(connID, "", apperror.New(apperror.KindValidation, apperror.CodeInvalidRequest, "Invalid frame format"))
		return
	}

	switch env.Type {
	case FrameJoinRoom:
		var p JoinRoomPayload
		if err := decodePayload(env.Payload, &p); err != nil {
			g.replyError(connID, env.RequestID, err)
			return
		}
		mv, err := g.Join(ctx, connID, p.Room)
		if err != nil {
			g.replyError(connID, env.RequestID, err)
			return
		}
		g.reply(connID, Frame{
			Type:      FrameJoined,
			RequestID: env.RequestID,
			Payload:   JoinedPayload{Room: mv.Connection.Room, Changed: mv.Changed},
		})

	case FrameSendMessage:
		var req SendRequest
		if err := decodePayload(env.Payload, &req); err != nil {
			g.replyError(connID, env.RequestID, err)
			return
		}
		view, err := g.Send(ctx, connID, req)
		if err != nil {
			g.replyError(connID, env.RequestID, err)
			return
		}
		g.reply(connID, Frame{Type: FrameMessageAccepted, RequestID: env.RequestID, Payload: view})

	default:
		g.replyError(connID, env.RequestID,
			apperror.New(apperror.KindValidation, apperror.CodeInvalidRequest, "Unknown frame type: "+env.Type))
	}
}

// Snapshot returns every online connection in registration order.
func (g *Gateway) Snapshot() []presence.Member {
	return presence.Members(g.broadcaster.Registry().SnapshotAll())
}

// RoomMembers returns the live roster of room.
func (g *Gateway) RoomMembers(room string) []presence.Member {
	return presence.Members(g.broadcaster.Registry().ListRoom(room))
}

// RoomCounts returns live member counts of non-empty rooms.
func (g *Gateway) RoomCounts() map[string]int {
	return g.broadcaster.Registry().Rooms()
}

// ConnectionCount returns the number of live connections.
func (g *Gateway) ConnectionCount() int {
	return g.broadcaster.Registry().Count()
}

func (g *Gateway) reply(connID string, f Frame) {
	if err := g.hub.Send(connID, f); err != nil {
		g.logger.Warn("Failed to enqueue reply", "connectionID", connID, "frame", f.Type, "error", err)
	}
}

func (g *Gateway) replyError(connID, requestID string, err error) {
	if apperror.KindOf(err) == apperror.KindInternal {
		g.logger.Error("Request failed", "connectionID", connID, "error", err)
	}
	g.reply(connID, Frame{
		Type:      presence.EventMessageError,
		RequestID: requestID,
		Payload: ErrorPayload{
			Code:      apperror.CodeOf(err),
			Message:   apperror.MessageOf(err),
			RequestID: requestID,
		},
	})
}

func (g *Gateway) publish(fn func() error) {
	if g.bus == nil {
		return
	}
	if err := fn(); err != nil {
		g.logger.Warn("Failed to publish event", "error", err)
	}
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return apperror.New(apperror.KindValidation, apperror.CodeInvalidRequest, "Frame payload is required")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return apperror.Wrap(apperror.KindValidation, apperror.CodeInvalidRequest, "Invalid frame payload", err)
	}
	return nil
}

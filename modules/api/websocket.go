package api

import (
	"context"
	"errors"
	"time"

	"github.com/example/chat-app/modules/chat"
	"github.com/example/chat-app/modules/presence"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	connectionKey = "connection"
)

// AdmitWebSocket authenticates /ws before the upgrade. The token comes from
// the Authorization header or the token query parameter.
func (h *Handlers) AdmitWebSocket(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	token := bearerToken(c.Get(fiber.HeaderAuthorization))
	if token == "" {
		token = c.Query("token")
	}

	conn, err := h.gateway.Admit(c.UserContext(), token)
	if err != nil {
		return fail(c, err)
	}

	c.Locals(connectionKey, conn)
	return c.Next()
}

// WebSocket returns the handler serving one admitted connection.
func (h *Handlers) WebSocket() fiber.Handler {
	return websocket.New(h.serveConn, websocket.Config{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	})
}

func (h *Handlers) serveConn(ws *websocket.Conn) {
	conn, ok := ws.Locals(connectionKey).(presence.Connection)
	if !ok {
		_ = ws.Close()
		return
	}
	logger := h.logger.With("connectionID", conn.ID, "userID", conn.UserID)

	mailbox, err := h.gateway.Connect(conn)
	if err != nil {
		logger.Error("Failed to register connection", "error", err)
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "unavailable"),
			time.Now().Add(writeWait))
		_ = ws.Close()
		return
	}
	defer h.gateway.Disconnect(conn.ID)
	logger.Info("Connection opened", "username", conn.Username)

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error { return writePump(ctx, ws, mailbox) })
	g.Go(func() error { return h.readPump(ctx, ws, conn.ID) })

	err = g.Wait()
	switch {
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway),
		errors.Is(err, chat.ErrMailboxClosed), errors.Is(err, context.Canceled):
		logger.Info("Connection closed")
	default:
		logger.Warn("Connection closed", "error", err)
	}
}

// writePump is the only writer on ws. It drains the mailbox, sends pings and
// closes the socket when it stops, which unblocks the read pump.
func writePump(ctx context.Context, ws *websocket.Conn, mailbox *chat.Mailbox) error {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = ws.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-mailbox.Done():
			reason := mailbox.Err()
			_ = ws.WriteControl(websocket.CloseMessage, closeMessage(reason), time.Now().Add(writeWait))
			return reason
		case data := <-mailbox.Outbound():
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return err
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

// readPump hands inbound frames to the gateway one at a time.
func (h *Handlers) readPump(ctx context.Context, ws *websocket.Conn, connID string) error {
	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		h.gateway.Handle(ctx, connID, data)
	}
}

func closeMessage(reason error) []byte {
	switch {
	case errors.Is(reason, chat.ErrSlowConsumer):
		return websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "slow consumer")
	case errors.Is(reason, chat.ErrHubShuttingDown):
		return websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	default:
		return websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	}
}

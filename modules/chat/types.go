// Package chat admits live connections, relays room messages, and owns the
// outbound mailbox of every connection.
package chat

import (
	"encoding/json"

	domain "github.com/example/chat-app/domain/message"
)

// Client frame types.
const (
	FrameJoinRoom    = "joinRoom"
	FrameSendMessage = "sendMessage"
)

// Server acknowledgement frame types.
const (
	FrameJoined          = "joined"
	FrameMessageAccepted = "messageAccepted"
)

// Envelope is an inbound client frame.
type Envelope struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Frame is an outbound server frame.
type Frame struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Payload   any    `json:"payload"`
}

// JoinRoomPayload is the payload of a joinRoom frame.
type JoinRoomPayload struct {
	Room string `json:"room"`
}

// SendRequest is the payload of a sendMessage frame.
type SendRequest struct {
	Room      string          `json:"room"`
	Text      *string         `json:"text"`
	File      *domain.FileRef `json:"file"`
	ReplyToID *string         `json:"reply_to"`
}

// JoinedPayload acknowledges a joinRoom frame.
type JoinedPayload struct {
	Room    string `json:"room"`
	Changed bool   `json:"changed"`
}

// ErrorPayload reports a failed request to its sender only.
type ErrorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

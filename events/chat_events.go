package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// MessageSentEvent is emitted after a message has been persisted.
type MessageSentEvent struct {
	MessageID string    `json:"message_id"`
	Room      string    `json:"room"`
	SenderID  string    `json:"sender_id"`
	HasFile   bool      `json:"has_file"`
	IsReply   bool      `json:"is_reply"`
	Timestamp time.Time `json:"timestamp"`
}

// MessagesDeletedEvent is emitted after an author deleted a batch of messages.
type MessagesDeletedEvent struct {
	RequesterID string         `json:"requester_id"`
	MessageIDs  []string       `json:"message_ids"`
	PerRoom     map[string]int `json:"per_room"`
	Timestamp   time.Time      `json:"timestamp"`
}

// UserConnectedEvent is emitted when a live connection is admitted.
type UserConnectedEvent struct {
	ConnectionID string    `json:"connection_id"`
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	Timestamp    time.Time `json:"timestamp"`
}

// UserDisconnectedEvent is emitted when a live connection goes away.
type UserDisconnectedEvent struct {
	ConnectionID string    `json:"connection_id"`
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	Room         string    `json:"room,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// RoomJoinedEvent is emitted when a connection moves into a room.
type RoomJoinedEvent struct {
	ConnectionID string    `json:"connection_id"`
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	Room         string    `json:"room"`
	PreviousRoom string    `json:"previous_room,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Event definitions for the chat domain.
var (
	MessageSentV1 = helper.EventDefinition[MessageSentEvent](
		"chat",
		"MessageSent",
		"v1",
	)

	MessagesDeletedV1 = helper.EventDefinition[MessagesDeletedEvent](
		"chat",
		"MessagesDeleted",
		"v1",
	)

	UserConnectedV1 = helper.EventDefinition[UserConnectedEvent](
		"chat",
		"UserConnected",
		"v1",
	)

	UserDisconnectedV1 = helper.EventDefinition[UserDisconnectedEvent](
		"chat",
		"UserDisconnected",
		"v1",
	)

	RoomJoinedV1 = helper.EventDefinition[RoomJoinedEvent](
		"chat",
		"RoomJoined",
		"v1",
	)
)

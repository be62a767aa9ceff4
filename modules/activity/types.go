package activity

import (
	"time"

	"github.com/example/chat-app/domain/apperror"
)

// RoomActivity is the accumulated history of one room.
type RoomActivity struct {
	Room string `json:"room"`
	// Messages counts messages currently stored in the room.
	Messages      int64      `json:"messages"`
	Sent          int64      `json:"sent"`
	Deleted       int64      `json:"deleted"`
	Joins         int64      `json:"joins"`
	LastMessageAt *time.Time `json:"last_message_at"`
	LastJoinAt    *time.Time `json:"last_join_at"`
}

// Totals counts connection lifecycle events across all rooms.
type Totals struct {
	Connects    int64      `json:"connects"`
	Disconnects int64      `json:"disconnects"`
	LastSeenAt  *time.Time `json:"last_seen_at"`
}

// RoomActivityRequest asks for one room, or every room when Room is empty.
type RoomActivityRequest struct {
	Room string `json:"room,omitempty"`
}

// RoomActivityResponse carries room activity ordered by room name.
type RoomActivityResponse struct {
	Rooms  []RoomActivity  `json:"rooms"`
	Totals Totals          `json:"totals"`
	Fault  *apperror.Fault `json:"fault,omitempty"`
}

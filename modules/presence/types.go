// Package presence tracks live connections, their room membership, and
// the notifications that follow each membership change.
package presence

import "time"

// Connection is one live session of an authenticated user.
// Room is empty until the connection joins a room.
type Connection struct {
	ID          string
	UserID      string
	Username    string
	AvatarURL   *string
	Room        string
	ConnectedAt time.Time
}

// Member is the display form of a connection in presence views.
type Member struct {
	ConnectionID string  `json:"connection_id"`
	UserID       string  `json:"user_id"`
	Username     string  `json:"username"`
	AvatarURL    *string `json:"avatar_url"`
	Room         string  `json:"room,omitempty"`
}

// MemberOf returns the display form of c.
func MemberOf(c Connection) Member {
	return Member{
		ConnectionID: c.ID,
		UserID:       c.UserID,
		Username:     c.Username,
		AvatarURL:    c.AvatarURL,
		Room:         c.Room,
	}
}

// Real-time event types.
const (
	EventPresenceSnapshot = "presenceSnapshot"
	EventRoomRosterUpdate = "roomRosterUpdate"
	EventUserJoined       = "userJoined"
	EventUserLeft         = "userLeft"
	EventNewMessage       = "newMessage"
	EventMessageError     = "messageError"
)

// Event is a notification addressed to one connection.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// SnapshotPayload lists every online connection.
type SnapshotPayload struct {
	Users []Member `json:"users"`
}

// RosterPayload lists the members of one room in join order.
type RosterPayload struct {
	Room    string   `json:"room"`
	Members []Member `json:"members"`
}

// UserPayload names one connection that came online.
type UserPayload struct {
	User Member `json:"user"`
}

// UserLeftPayload names a connection that left a room by disconnecting.
type UserLeftPayload struct {
	Room string `json:"room"`
	User Member `json:"user"`
}

// Move describes the outcome of a room transition.
type Move struct {
	Connection   Connection
	PreviousRoom string
	// Changed is false when the connection was already in the room.
	Changed bool
	// OldRoom is the remaining roster of PreviousRoom, empty when unchanged.
	OldRoom []Connection
	NewRoom []Connection
}

// Members converts connections to their display form.
func Members(conns []Connection) []Member {
	out := make([]Member, 0, len(conns))
	for _, c := range conns {
		out = append(out, MemberOf(c))
	}
	return out
}

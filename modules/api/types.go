package api

import (
	"time"

	domain "github.com/example/chat-app/domain/message"
	"github.com/example/chat-app/modules/activity"
	"github.com/example/chat-app/modules/presence"
)

// CredentialsRequest is the body of register and login.
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	ID        string  `json:"id"`
	Username  string  `json:"username"`
	AvatarURL *string `json:"avatar_url"`
	Token     string  `json:"token"`
	ExpiresIn int64   `json:"expires_in"`
}

// SendMessageRequest is the body of POST /api/messages.
type SendMessageRequest struct {
	Room      string          `json:"room"`
	Text      *string         `json:"text"`
	File      *domain.FileRef `json:"file"`
	ReplyToID *string         `json:"reply_to"`
}

// DeleteMessagesRequest is the body of DELETE /api/messages.
type DeleteMessagesRequest struct {
	IDs []string `json:"ids"`
}

// DeleteMessagesResponse reports a bulk delete.
type DeleteMessagesResponse struct {
	Message string `json:"message"`
	Deleted int    `json:"deleted"`
}

// UploadResponse describes a stored chat file.
type UploadResponse struct {
	Message  string `json:"message"`
	FilePath string `json:"file_path"`
	FileName string `json:"file_name"`
	MimeType string `json:"mimetype"`
}

// AvatarResponse describes an updated profile picture.
type AvatarResponse struct {
	Message   string `json:"message"`
	AvatarURL string `json:"avatar_url"`
}

// RoomSummary merges stored activity with the live member count.
type RoomSummary struct {
	Room          string     `json:"room"`
	Online        int        `json:"online"`
	Messages      int64      `json:"messages"`
	Joins         int64      `json:"joins"`
	LastMessageAt *time.Time `json:"last_message_at"`
	LastJoinAt    *time.Time `json:"last_join_at"`
}

// RoomsResponse is returned by GET /api/rooms.
type RoomsResponse struct {
	Rooms  []RoomSummary    `json:"rooms"`
	Totals *activity.Totals `json:"totals,omitempty"`
}

// PresenceResponse is returned by GET /api/presence.
type PresenceResponse struct {
	Users       []presence.Member `json:"users"`
	Connections int               `json:"connections"`
}

// ErrorResponse is the API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse is the API health check response.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

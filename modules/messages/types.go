package messages

import (
	"github.com/example/chat-app/domain/apperror"
	domain "github.com/example/chat-app/domain/message"
)

// AppendMessageRequest carries a draft to persist.
type AppendMessageRequest struct {
	Draft domain.Draft `json:"draft"`
}

// MessageResponse returns one persisted message.
type MessageResponse struct {
	Message *domain.View    `json:"message,omitempty"`
	Fault   *apperror.Fault `json:"fault,omitempty"`
}

// ListRoomMessagesRequest asks for the history of a room.
type ListRoomMessagesRequest struct {
	Room string `json:"room"`
}

// ListRoomMessagesResponse returns the history of a room, oldest first.
type ListRoomMessagesResponse struct {
	Messages []domain.View   `json:"messages"`
	Fault    *apperror.Fault `json:"fault,omitempty"`
}

// DeleteMessagesRequest asks to delete a batch of the requester's messages.
type DeleteMessagesRequest struct {
	RequesterID string   `json:"requester_id"`
	IDs         []string `json:"ids"`
}

// DeleteMessagesResponse reports how many messages were deleted.
type DeleteMessagesResponse struct {
	Deleted int             `json:"deleted"`
	Fault   *apperror.Fault `json:"fault,omitempty"`
}

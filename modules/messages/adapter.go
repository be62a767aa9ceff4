package messages

import (
	"context"
	"encoding/json"

	"github.com/example/chat-app/domain/apperror"
	domain "github.com/example/chat-app/domain/message"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// MessagesPort is what other modules use to store and read messages.
type MessagesPort interface {
	Append(ctx context.Context, draft domain.Draft) (*domain.View, error)
	ListRoom(ctx context.Context, room string) ([]domain.View, error)
	DeleteMany(ctx context.Context, requesterID string, ids []string) (int, error)
}

// MessagesAdapter implements MessagesPort using the service container.
type MessagesAdapter struct {
	container mono.ServiceContainer
}

var _ MessagesPort = (*MessagesAdapter)(nil)

// NewMessagesAdapter creates a new MessagesAdapter.
func NewMessagesAdapter(container mono.ServiceContainer) *MessagesAdapter {
	return &MessagesAdapter{container: container}
}

func (a *MessagesAdapter) call(ctx context.Context, service string, req, resp any) error {
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		service,
		json.Marshal,
		json.Unmarshal,
		req,
		resp,
	); err != nil {
		return apperror.Wrap(apperror.KindPersistence, apperror.CodePersistenceFailed, service+" request failed", err)
	}
	return nil
}

// Append persists a draft.
func (a *MessagesAdapter) Append(ctx context.Context, draft domain.Draft) (*domain.View, error) {
	req := AppendMessageRequest{Draft: draft}
	var resp MessageResponse
	if err := a.call(ctx, "append-message", &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Fault.Err(); err != nil {
		return nil, err
	}
	if resp.Message == nil {
		return nil, apperror.New(apperror.KindPersistence, apperror.CodePersistenceFailed, "Empty append response")
	}
	return resp.Message, nil
}

// ListRoom fetches the history of a room.
func (a *MessagesAdapter) ListRoom(ctx context.Context, room string) ([]domain.View, error) {
	req := ListRoomMessagesRequest{Room: room}
	var resp ListRoomMessagesResponse
	if err := a.call(ctx, "list-room-messages", &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Fault.Err(); err != nil {
		return nil, err
	}
	if resp.Messages == nil {
		resp.Messages = []domain.View{}
	}
	return resp.Messages, nil
}

// DeleteMany deletes a batch of the requester's messages.
func (a *MessagesAdapter) DeleteMany(ctx context.Context, requesterID string, ids []string) (int, error) {
	req := DeleteMessagesRequest{RequesterID: requesterID, IDs: ids}
	var resp DeleteMessagesResponse
	if err := a.call(ctx, "delete-messages", &req, &resp); err != nil {
		return 0, err
	}
	if err := resp.Fault.Err(); err != nil {
		return 0, err
	}
	return resp.Deleted, nil
}

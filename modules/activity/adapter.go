package activity

import (
	"context"
	"encoding/json"

	"github.com/example/chat-app/domain/apperror"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// ActivityPort reads room activity from another module.
type ActivityPort interface {
	RoomActivity(ctx context.Context, room string) (*RoomActivityResponse, error)
}

// ActivityAdapter implements ActivityPort using the service container.
type ActivityAdapter struct {
	container mono.ServiceContainer
}

var _ ActivityPort = (*ActivityAdapter)(nil)

// NewActivityAdapter creates a new ActivityAdapter.
func NewActivityAdapter(container mono.ServiceContainer) *ActivityAdapter {
	return &ActivityAdapter{container: container}
}

// RoomActivity returns the activity of room, or of every room when room is empty.
func (a *ActivityAdapter) RoomActivity(ctx context.Context, room string) (*RoomActivityResponse, error) {
	req := RoomActivityRequest{Room: room}
	var resp RoomActivityResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		"room-activity",
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, apperror.Wrap(apperror.KindTransport, apperror.CodeServiceUnavailable, "Activity service unavailable", err)
	}
	if err := resp.Fault.Err(); err != nil {
		return nil, err
	}
	if resp.Rooms == nil {
		resp.Rooms = []RoomActivity{}
	}
	return &resp, nil
}

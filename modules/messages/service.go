package messages

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/example/chat-app/domain/apperror"
	domain "github.com/example/chat-app/domain/message"
	"github.com/example/chat-app/domain/user"
	"github.com/example/chat-app/events"
	"github.com/go-monolith/mono"
	"github.com/google/uuid"
)

// unknownSender is shown when the author of a message no longer resolves.
const unknownSender = "unknown"

// ProfileSource resolves display fields of message authors.
type ProfileSource interface {
	GetProfiles(ctx context.Context, userIDs []string) ([]user.Profile, error)
}

// Service implements message storage and projection.
type Service struct {
	repo     *Repository
	profiles ProfileSource
	bus      mono.EventBus
	now      func() time.Time
}

// NewService creates a new Service. bus may be nil.
func NewService(repo *Repository, profiles ProfileSource, bus mono.EventBus) *Service {
	return &Service{
		repo:     repo,
		profiles: profiles,
		bus:      bus,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Append validates and persists a draft, then returns its outbound view.
func (s *Service) Append(ctx context.Context, draft domain.Draft) (*domain.View, error) {
	draft = draft.Normalize()
	if draft.SenderID == "" {
		return nil, apperror.New(apperror.KindValidation, apperror.CodeInvalidRequest, "Sender is required")
	}
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ID:        uuid.New().String(),
		SenderID:  draft.SenderID,
		Room:      draft.Room,
		Text:      draft.Text,
		ReplyToID: draft.ReplyToID,
		CreatedAt: s.now(),
	}
	msg.SetAttachment(draft.File)

	if err := s.repo.Create(msg); err != nil {
		return nil, apperror.Wrap(apperror.KindPersistence, apperror.CodePersistenceFailed, "Failed to save message", err)
	}

	views, err := s.buildViews(ctx, []domain.Message{*msg})
	if err != nil {
		return nil, err
	}

	s.publish(func() error {
		return events.MessageSentV1.Publish(s.bus, events.MessageSentEvent{
			MessageID: msg.ID,
			Room:      msg.Room,
			SenderID:  msg.SenderID,
			HasFile:   msg.Attachment() != nil,
			IsReply:   msg.ReplyToID != nil,
			Timestamp: msg.CreatedAt,
		}, nil)
	})

	return &views[0], nil
}

// ListRoom returns the history of a room ordered by creation time.
func (s *Service) ListRoom(ctx context.Context, room string) ([]domain.View, error) {
	room = strings.TrimSpace(room)
	if err := domain.ValidateRoom(room); err != nil {
		return nil, err
	}

	msgs, err := s.repo.ListByRoom(room)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindPersistence, apperror.CodePersistenceFailed, "Failed to load messages", err)
	}
	return s.buildViews(ctx, msgs)
}

// DeleteMany deletes messages authored by requester. The whole batch is
// rejected when any referenced message has another author.
func (s *Service) DeleteMany(_ context.Context, requester string, ids []string) (int, error) {
	ids = cleanIDs(ids)
	if len(ids) == 0 {
		return 0, apperror.New(apperror.KindValidation, apperror.CodeNoIDs, "No message ids provided")
	}

	deleted, err := s.repo.DeleteOwned(requester, ids)
	if err != nil {
		if errors.Is(err, ErrNotOwner) {
			return 0, apperror.New(apperror.KindAuthorization, apperror.CodeNotOwner, "You can only delete your own messages")
		}
		return 0, apperror.Wrap(apperror.KindPersistence, apperror.CodePersistenceFailed, "Failed to delete messages", err)
	}
	if len(deleted) == 0 {
		return 0, apperror.New(apperror.KindNotFound, apperror.CodeMessagesNotFound, "No messages found to delete")
	}

	perRoom := make(map[string]int)
	deletedIDs := make([]string, 0, len(deleted))
	for _, m := range deleted {
		perRoom[m.Room]++
		deletedIDs = append(deletedIDs, m.ID)
	}
	s.publish(func() error {
		return events.MessagesDeletedV1.Publish(s.bus, events.MessagesDeletedEvent{
			RequesterID: requester,
			MessageIDs:  deletedIDs,
			PerRoom:     perRoom,
			Timestamp:   s.now(),
		}, nil)
	})

	return len(deleted), nil
}

// buildViews resolves senders and reply previews for msgs in one pass.
// Replies to missing messages render without a preview.
func (s *Service) buildViews(ctx context.Context, msgs []domain.Message) ([]domain.View, error) {
	var replyIDs []string
	for _, m := range msgs {
		if m.ReplyToID != nil {
			replyIDs = append(replyIDs, *m.ReplyToID)
		}
	}

	replies := make(map[string]domain.Message)
	if len(replyIDs) > 0 {
		found, err := s.repo.FindByIDs(replyIDs)
		if err != nil {
			return nil, apperror.Wrap(apperror.KindPersistence, apperror.CodePersistenceFailed, "Failed to load replied messages", err)
		}
		for _, m := range found {
			replies[m.ID] = m
		}
	}

	senderIDs := make([]string, 0, len(msgs)+len(replies))
	for _, m := range msgs {
		senderIDs = append(senderIDs, m.SenderID)
	}
	for _, m := range replies {
		senderIDs = append(senderIDs, m.SenderID)
	}
	senders := s.resolveSenders(ctx, senderIDs)

	views := make([]domain.View, 0, len(msgs))
	for i := range msgs {
		m := &msgs[i]
		view := domain.View{
			ID:        m.ID,
			Room:      m.Room,
			Text:      m.Text,
			File:      m.Attachment(),
			Sender:    senderOf(senders, m.SenderID),
			CreatedAt: m.CreatedAt,
		}
		if m.ReplyToID != nil {
			if parent, ok := replies[*m.ReplyToID]; ok {
				view.ReplyTo = &domain.ReplyPreview{
					ID:             parent.ID,
					Text:           parent.Text,
					File:           parent.Attachment(),
					SenderUsername: senderOf(senders, parent.SenderID).Username,
				}
			}
		}
		views = append(views, view)
	}
	return views, nil
}

// resolveSenders looks up author profiles. A failed lookup degrades to
// unknown authors rather than failing the read.
func (s *Service) resolveSenders(ctx context.Context, ids []string) map[string]user.Profile {
	out := make(map[string]user.Profile)
	if s.profiles == nil || len(ids) == 0 {
		return out
	}
	profiles, err := s.profiles.GetProfiles(ctx, ids)
	if err != nil {
		log.Printf("[messages] Warning: failed to resolve senders: %v", err)
		return out
	}
	for _, p := range profiles {
		out[p.ID] = p
	}
	return out
}

func (s *Service) publish(fn func() error) {
	if s.bus == nil {
		return
	}
	if err := fn(); err != nil {
		log.Printf("[messages] Warning: failed to publish event: %v", err)
	}
}

func senderOf(senders map[string]user.Profile, id string) domain.Sender {
	p, ok := senders[id]
	if !ok {
		return domain.Sender{ID: id, Username: unknownSender}
	}
	return domain.Sender{ID: p.ID, Username: p.Username, AvatarURL: p.AvatarURL}
}

func cleanIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

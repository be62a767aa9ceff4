package messages

import (
	"errors"

	domain "github.com/example/chat-app/domain/message"
	"gorm.io/gorm"
)

var (
	// ErrMessageNotFound is returned when a message is not found.
	ErrMessageNotFound = errors.New("message not found")
	// ErrNotOwner is returned when a batch references another author's message.
	ErrNotOwner = errors.New("message belongs to another user")
)

// Repository handles message persistence using GORM.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new Repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a message.
func (r *Repository) Create(msg *domain.Message) error {
	return r.db.Create(msg).Error
}

// FindByID finds a message by ID.
func (r *Repository) FindByID(id string) (*domain.Message, error) {
	var msg domain.Message
	result := r.db.First(&msg, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, result.Error
	}
	return &msg, nil
}

// FindByIDs returns the messages among ids that exist.
func (r *Repository) FindByIDs(ids []string) ([]domain.Message, error) {
	var msgs []domain.Message
	if len(ids) == 0 {
		return msgs, nil
	}
	if err := r.db.Where("id IN ?", ids).Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// ListByRoom returns the messages of a room, oldest first.
func (r *Repository) ListByRoom(room string) ([]domain.Message, error) {
	var msgs []domain.Message
	if err := r.db.Where("room = ?", room).Order("created_at ASC").Order("id ASC").Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// DeleteOwned deletes the messages among ids authored by requester and
// returns them. If any existing message in ids has a different author,
// nothing is deleted and ErrNotOwner is returned.
func (r *Repository) DeleteOwned(requester string, ids []string) ([]domain.Message, error) {
	var deleted []domain.Message
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var foreign int64
		if err := tx.Model(&domain.Message{}).
			Where("id IN ? AND sender_id <> ?", ids, requester).
			Count(&foreign).Error; err != nil {
			return err
		}
		if foreign > 0 {
			return ErrNotOwner
		}

		if err := tx.Where("id IN ? AND sender_id = ?", ids, requester).Find(&deleted).Error; err != nil {
			return err
		}
		if len(deleted) == 0 {
			return nil
		}
		return tx.Where("id IN ? AND sender_id = ?", ids, requester).Delete(&domain.Message{}).Error
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// Count returns the number of stored messages.
func (r *Repository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&domain.Message{}).Count(&count).Error
	return count, err
}

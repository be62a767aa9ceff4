package message

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/example/chat-app/domain/apperror"
)

// Validation constants
const (
	MaxRoomNameLength = 100
	MaxTextLength     = 5000
)

// SystemUsername is the sender name of server-generated announcements.
const SystemUsername = "System"

// FileRef references a stored blob attached to a message.
type FileRef struct {
	Path     string `json:"path"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
}

// FileColumns is the column layout of an attachment. An empty path means no file.
type FileColumns struct {
	Path     string `gorm:"type:text"`
	Name     string `gorm:"type:text"`
	MimeType string `gorm:"type:text"`
}

// Message is a persisted chat message.
type Message struct {
	ID        string      `gorm:"primaryKey;type:text"`
	SenderID  string      `gorm:"index;not null;type:text"`
	Room      string      `gorm:"index:idx_messages_room_created,priority:1;not null;type:text"`
	Text      *string     `gorm:"type:text"`
	File      FileColumns `gorm:"embedded;embeddedPrefix:file_"`
	ReplyToID *string     `gorm:"index;type:text"`
	CreatedAt time.Time   `gorm:"index:idx_messages_room_created,priority:2"`
}

// TableName returns the table name for the Message entity.
func (Message) TableName() string {
	return "messages"
}

// Attachment returns the file reference, or nil when the message has none.
func (m *Message) Attachment() *FileRef {
	if m.File.Path == "" {
		return nil
	}
	return &FileRef{Path: m.File.Path, Name: m.File.Name, MimeType: m.File.MimeType}
}

// SetAttachment stores f on the message. A nil f clears the attachment.
func (m *Message) SetAttachment(f *FileRef) {
	if f == nil {
		m.File = FileColumns{}
		return
	}
	m.File = FileColumns{Path: f.Path, Name: f.Name, MimeType: f.MimeType}
}

// Draft is an unsaved message as submitted by a sender.
type Draft struct {
	SenderID  string   `json:"sender_id"`
	Room      string   `json:"room"`
	Text      *string  `json:"text"`
	File      *FileRef `json:"file"`
	ReplyToID *string  `json:"reply_to"`
}

// Normalize trims text and drops empty optional fields so that an absent
// value is always nil, never an empty string.
func (d Draft) Normalize() Draft {
	d.Room = strings.TrimSpace(d.Room)
	if d.Text != nil {
		trimmed := strings.TrimSpace(*d.Text)
		if trimmed == "" {
			d.Text = nil
		} else {
			d.Text = &trimmed
		}
	}
	if d.File != nil && strings.TrimSpace(d.File.Path) == "" {
		d.File = nil
	}
	if d.ReplyToID != nil && strings.TrimSpace(*d.ReplyToID) == "" {
		d.ReplyToID = nil
	}
	return d
}

// Validate checks a normalized draft.
func (d Draft) Validate() error {
	if err := ValidateRoom(d.Room); err != nil {
		return err
	}
	if d.Text == nil && d.File == nil {
		return apperror.New(apperror.KindValidation, apperror.CodeEmptyMessage, "Message must have text or a file")
	}
	if d.Text != nil {
		if utf8.RuneCountInString(*d.Text) > MaxTextLength {
			return apperror.New(apperror.KindValidation, apperror.CodeMessageTooLong, "Message exceeds maximum length")
		}
		if !utf8.ValidString(*d.Text) {
			return apperror.New(apperror.KindValidation, apperror.CodeInvalidRequest, "Message contains invalid characters")
		}
	}
	return nil
}

// ValidateRoom validates a room name.
func ValidateRoom(room string) error {
	if strings.TrimSpace(room) == "" {
		return apperror.New(apperror.KindValidation, apperror.CodeInvalidRoom, "Room name is required")
	}
	if utf8.RuneCountInString(room) > MaxRoomNameLength {
		return apperror.New(apperror.KindValidation, apperror.CodeInvalidRoom, "Room name exceeds maximum length")
	}
	return nil
}

// Sender holds display fields of a message author.
type Sender struct {
	ID        string  `json:"id"`
	Username  string  `json:"username"`
	AvatarURL *string `json:"avatar_url"`
}

// ReplyPreview is the minimal projection of a replied-to message.
type ReplyPreview struct {
	ID             string   `json:"id"`
	Text           *string  `json:"text"`
	File           *FileRef `json:"file"`
	SenderUsername string   `json:"sender_username"`
}

// View is the outbound representation of a message.
type View struct {
	ID        string        `json:"id"`
	Room      string        `json:"room"`
	Text      *string       `json:"text"`
	File      *FileRef      `json:"file"`
	Sender    Sender        `json:"sender"`
	ReplyTo   *ReplyPreview `json:"reply_to"`
	CreatedAt time.Time     `json:"created_at"`
	System    bool          `json:"system,omitempty"`
}

// Announcement builds a non-persisted system message for a room.
func Announcement(room, text string, at time.Time) View {
	return View{
		Room:      room,
		Text:      &text,
		Sender:    Sender{Username: SystemUsername},
		CreatedAt: at,
		System:    true,
	}
}

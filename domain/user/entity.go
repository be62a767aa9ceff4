package user

import (
	"time"
)

// User represents a registered chat user.
type User struct {
	ID           string  `gorm:"primaryKey;type:text"`
	Username     string  `gorm:"uniqueIndex;not null;type:text"`
	PasswordHash string  `gorm:"not null;type:text"`
	AvatarURL    *string `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName returns the table name for the User entity.
func (User) TableName() string {
	return "users"
}

// Profile returns the public display fields of the user.
func (u *User) Profile() Profile {
	return Profile{
		ID:        u.ID,
		Username:  u.Username,
		AvatarURL: u.AvatarURL,
	}
}

// Profile is the display metadata other modules see for a user.
type Profile struct {
	ID        string  `json:"id"`
	Username  string  `json:"username"`
	AvatarURL *string `json:"avatar_url"`
}

// Claims represents verified token claims.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

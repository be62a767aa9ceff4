package auth

import (
	"time"

	"github.com/example/chat-app/domain/apperror"
	domain "github.com/example/chat-app/domain/user"
)

// RegisterRequest represents a user registration request.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginRequest represents a user login request.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SessionResponse is returned by register and login.
type SessionResponse struct {
	User      *UserResponse   `json:"user,omitempty"`
	Token     string          `json:"token,omitempty"`
	ExpiresIn int64           `json:"expires_in,omitempty"`
	Fault     *apperror.Fault `json:"fault,omitempty"`
}

// UserResponse is the public view of a user account.
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	AvatarURL *string   `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
}

// VerifyTokenRequest represents a token verification request.
type VerifyTokenRequest struct {
	Token string `json:"token"`
}

// VerifyTokenResponse carries the claims of a valid token or the failure reason.
type VerifyTokenResponse struct {
	UserID   string          `json:"user_id,omitempty"`
	Username string          `json:"username,omitempty"`
	Fault    *apperror.Fault `json:"fault,omitempty"`
}

// GetProfileRequest represents a get profile request.
type GetProfileRequest struct {
	UserID string `json:"user_id"`
}

// GetProfileResponse represents a get profile response.
type GetProfileResponse struct {
	Profile *domain.Profile `json:"profile,omitempty"`
	Fault   *apperror.Fault `json:"fault,omitempty"`
}

// GetProfilesRequest asks for several profiles at once.
type GetProfilesRequest struct {
	UserIDs []string `json:"user_ids"`
}

// GetProfilesResponse lists the profiles that were found.
type GetProfilesResponse struct {
	Profiles []domain.Profile `json:"profiles"`
	Fault    *apperror.Fault  `json:"fault,omitempty"`
}

// UpdateAvatarRequest sets a new avatar path for a user.
type UpdateAvatarRequest struct {
	UserID    string `json:"user_id"`
	AvatarURL string `json:"avatar_url"`
}

// UpdateAvatarResponse returns the avatar that was replaced, if any.
type UpdateAvatarResponse struct {
	PreviousURL *string         `json:"previous_url"`
	Fault       *apperror.Fault `json:"fault,omitempty"`
}

func toUserResponse(u *domain.User) *UserResponse {
	return &UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		AvatarURL: u.AvatarURL,
		CreatedAt: u.CreatedAt,
	}
}

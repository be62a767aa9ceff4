package auth

import (
	"context"
	"encoding/json"

	"github.com/example/chat-app/domain/apperror"
	domain "github.com/example/chat-app/domain/user"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// AuthPort defines the interface for authentication operations.
// This is the port that other modules use to access auth functionality.
type AuthPort interface {
	Register(ctx context.Context, username, password string) (*SessionResponse, error)
	Login(ctx context.Context, username, password string) (*SessionResponse, error)
	VerifyToken(ctx context.Context, token string) (*domain.Claims, error)
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	GetProfiles(ctx context.Context, userIDs []string) ([]domain.Profile, error)
	UpdateAvatar(ctx context.Context, userID, avatarURL string) (*string, error)
}

// AuthAdapter implements AuthPort using the service container.
type AuthAdapter struct {
	container mono.ServiceContainer
}

var _ AuthPort = (*AuthAdapter)(nil)

// NewAuthAdapter creates a new AuthAdapter.
func NewAuthAdapter(container mono.ServiceContainer) *AuthAdapter {
	return &AuthAdapter{
		container: container,
	}
}

func (a *AuthAdapter) call(ctx context.Context, service string, req, resp any) error {
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		service,
		json.Marshal,
		json.Unmarshal,
		req,
		resp,
	); err != nil {
		return apperror.Wrap(apperror.KindTransport, apperror.CodeServiceUnavailable, service+" request failed", err)
	}
	return nil
}

// Register creates an account and returns its session.
func (a *AuthAdapter) Register(ctx context.Context, username, password string) (*SessionResponse, error) {
	req := RegisterRequest{Username: username, Password: password}
	var resp SessionResponse
	if err := a.call(ctx, "register", &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Fault.Err(); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Login authenticates credentials and returns a session.
func (a *AuthAdapter) Login(ctx context.Context, username, password string) (*SessionResponse, error) {
	req := LoginRequest{Username: username, Password: password}
	var resp SessionResponse
	if err := a.call(ctx, "login", &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Fault.Err(); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyToken validates a session token and returns claims.
func (a *AuthAdapter) VerifyToken(ctx context.Context, token string) (*domain.Claims, error) {
	req := VerifyTokenRequest{Token: token}
	var resp VerifyTokenResponse
	if err := a.call(ctx, "verify-token", &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Fault.Err(); err != nil {
		return nil, err
	}
	return &domain.Claims{
		UserID:   resp.UserID,
		Username: resp.Username,
	}, nil
}

// GetProfile retrieves the profile of a user.
func (a *AuthAdapter) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	req := GetProfileRequest{UserID: userID}
	var resp GetProfileResponse
	if err := a.call(ctx, "get-profile", &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Fault.Err(); err != nil {
		return nil, err
	}
	if resp.Profile == nil {
		return nil, apperror.New(apperror.KindNotFound, apperror.CodeUserNotFound, "User not found")
	}
	return resp.Profile, nil
}

// GetProfiles retrieves profiles for several users. Unknown ids are omitted.
func (a *AuthAdapter) GetProfiles(ctx context.Context, userIDs []string) ([]domain.Profile, error) {
	req := GetProfilesRequest{UserIDs: userIDs}
	var resp GetProfilesResponse
	if err := a.call(ctx, "get-profiles", &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Fault.Err(); err != nil {
		return nil, err
	}
	return resp.Profiles, nil
}

// UpdateAvatar sets a new avatar and returns the previous one.
func (a *AuthAdapter) UpdateAvatar(ctx context.Context, userID, avatarURL string) (*string, error) {
	req := UpdateAvatarRequest{UserID: userID, AvatarURL: avatarURL}
	var resp UpdateAvatarResponse
	if err := a.call(ctx, "update-avatar", &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Fault.Err(); err != nil {
		return nil, err
	}
	return resp.PreviousURL, nil
}

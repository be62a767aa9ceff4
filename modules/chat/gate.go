package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/chat-app/domain/apperror"
	"github.com/example/chat-app/domain/user"
	"github.com/example/chat-app/modules/presence"
	nanoid "github.com/jaevor/go-nanoid"
)

// Identity is the part of the auth module the gate consumes.
type Identity interface {
	VerifyToken(ctx context.Context, token string) (*user.Claims, error)
	GetProfile(ctx context.Context, userID string) (*user.Profile, error)
}

// Gate admits connections by verifying their bearer token.
type Gate struct {
	identity Identity
	newID    func() string
	now      func() time.Time
}

// NewGate creates a Gate that issues 21 character nanoid connection ids.
func NewGate(identity Identity) (*Gate, error) {
	gen, err := nanoid.Standard(21)
	if err != nil {
		return nil, fmt.Errorf("failed to create id generator: %w", err)
	}
	return &Gate{
		identity: identity,
		newID:    gen,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Admit verifies token and builds a Connection that is not in any room.
// Nothing is registered here, so a rejected handshake leaves no state.
func (g *Gate) Admit(ctx context.Context, token string) (presence.Connection, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return presence.Connection{}, apperror.New(apperror.KindAuthFailure, apperror.CodeMissingToken, "Authentication token is required")
	}

	claims, err := g.identity.VerifyToken(ctx, token)
	if err != nil {
		return presence.Connection{}, err
	}

	profile, err := g.identity.GetProfile(ctx, claims.UserID)
	if err != nil {
		if apperror.CodeOf(err) == apperror.CodeUserNotFound {
			return presence.Connection{}, apperror.Wrap(apperror.KindAuthFailure, apperror.CodeUserNotFound, "User no longer exists", err)
		}
		return presence.Connection{}, err
	}

	return presence.Connection{
		ID:          g.newID(),
		UserID:      profile.ID,
		Username:    profile.Username,
		AvatarURL:   profile.AvatarURL,
		ConnectedAt: g.now(),
	}, nil
}

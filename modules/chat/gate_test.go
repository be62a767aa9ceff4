package chat

import (
	"context"
	"testing"

	"github.com/example/chat-app/domain/apperror"
	"github.com/example/chat-app/domain/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_Admit(t *testing.T) {
	avatar := "/uploads/profile_pics/a.png"
	identity := &mockIdentity{
		VerifyTokenFunc: func(_ context.Context, token string) (*user.Claims, error) {
			require.Equal(t, "good-token", token)
			return &user.Claims{UserID: "u1", Username: "stale-name"}, nil
		},
		GetProfileFunc: func(_ context.Context, userID string) (*user.Profile, error) {
			return &user.Profile{ID: userID, Username: "alice", AvatarURL: &avatar}, nil
		},
	}
	gate, err := NewGate(identity)
	require.NoError(t, err)

	conn, err := gate.Admit(context.Background(), "Bearer good-token")
	require.NoError(t, err)

	assert.Len(t, conn.ID, 21)
	assert.Equal(t, "u1", conn.UserID)
	assert.Equal(t, "alice", conn.Username, "profile wins over token claims")
	assert.Equal(t, &avatar, conn.AvatarURL)
	assert.Empty(t, conn.Room)
	assert.False(t, conn.ConnectedAt.IsZero())

	other, err := gate.Admit(context.Background(), "good-token")
	require.NoError(t, err)
	assert.NotEqual(t, conn.ID, other.ID)
}

func TestGate_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		verifyErr  error
		profileErr error
		wantCode   string
	}{
		{"missing token", "  ", nil, nil, apperror.CodeMissingToken},
		{"bare bearer", "Bearer ", nil, nil, apperror.CodeMissingToken},
		{"invalid token", "x", apperror.New(apperror.KindAuthFailure, apperror.CodeInvalidToken, "bad"), nil, apperror.CodeInvalidToken},
		{"expired token", "x", apperror.New(apperror.KindAuthFailure, apperror.CodeExpiredToken, "old"), nil, apperror.CodeExpiredToken},
		{"deleted user", "x", nil, apperror.New(apperror.KindNotFound, apperror.CodeUserNotFound, "gone"), apperror.CodeUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity := &mockIdentity{
				VerifyTokenFunc: func(context.Context, string) (*user.Claims, error) {
					if tt.verifyErr != nil {
						return nil, tt.verifyErr
					}
					return &user.Claims{UserID: "u1"}, nil
				},
				GetProfileFunc: func(context.Context, string) (*user.Profile, error) {
					if tt.profileErr != nil {
						return nil, tt.profileErr
					}
					return &user.Profile{ID: "u1", Username: "alice"}, nil
				},
			}
			gate, err := NewGate(identity)
			require.NoError(t, err)

			_, err = gate.Admit(context.Background(), tt.token)
			require.Error(t, err)
			assert.Equal(t, apperror.KindAuthFailure, apperror.KindOf(err))
			assert.Equal(t, tt.wantCode, apperror.CodeOf(err))
		})
	}
}

func TestGate_TransportFailurePassesThrough(t *testing.T) {
	identity := &mockIdentity{
		VerifyTokenFunc: func(context.Context, string) (*user.Claims, error) {
			return nil, apperror.New(apperror.KindTransport, apperror.CodeServiceUnavailable, "auth down")
		},
	}
	gate, err := NewGate(identity)
	require.NoError(t, err)

	_, err = gate.Admit(context.Background(), "token")
	assert.Equal(t, apperror.KindTransport, apperror.KindOf(err))
}

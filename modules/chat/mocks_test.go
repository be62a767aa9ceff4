package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	domain "github.com/example/chat-app/domain/message"
	"github.com/example/chat-app/domain/user"
	"github.com/example/chat-app/modules/ratelimit"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/stretchr/testify/require"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(msg string, args ...any)         {}
func (m *mockLogger) Info(msg string, args ...any)          {}
func (m *mockLogger) Warn(msg string, args ...any)          {}
func (m *mockLogger) Error(msg string, args ...any)         {}
func (m *mockLogger) With(args ...any) types.Logger         { return m }
func (m *mockLogger) WithError(err error) types.Logger      { return m }
func (m *mockLogger) WithModule(module string) types.Logger { return m }

type mockIdentity struct {
	VerifyTokenFunc func(ctx context.Context, token string) (*user.Claims, error)
	GetProfileFunc  func(ctx context.Context, userID string) (*user.Profile, error)
}

func (m *mockIdentity) VerifyToken(ctx context.Context, token string) (*user.Claims, error) {
	return m.VerifyTokenFunc(ctx, token)
}

func (m *mockIdentity) GetProfile(ctx context.Context, userID string) (*user.Profile, error) {
	return m.GetProfileFunc(ctx, userID)
}

// tokenIdentity treats every token as the id of a user named after it.
func tokenIdentity() *mockIdentity {
	return &mockIdentity{
		VerifyTokenFunc: func(_ context.Context, token string) (*user.Claims, error) {
			return &user.Claims{UserID: "user-" + token, Username: token}, nil
		},
		GetProfileFunc: func(_ context.Context, userID string) (*user.Profile, error) {
			return &user.Profile{ID: userID, Username: userID[len("user-"):]}, nil
		},
	}
}

// memoryStore persists drafts in memory in append order.
type memoryStore struct {
	mu       sync.Mutex
	messages []domain.View
	fail     error
	delay    time.Duration
	seq      int
}

func (s *memoryStore) Append(_ context.Context, draft domain.Draft) (*domain.View, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	s.seq++
	view := domain.View{
		ID:        fmt.Sprintf("msg-%03d", s.seq),
		Room:      draft.Room,
		Text:      draft.Text,
		File:      draft.File,
		Sender:    domain.Sender{ID: draft.SenderID, Username: draft.SenderID},
		CreatedAt: time.Now().UTC(),
	}
	s.messages = append(s.messages, view)
	return &view, nil
}

func (s *memoryStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

type mockLimiter struct {
	AllowFunc func(ctx context.Context, key string) (*ratelimit.Result, error)
}

func (m *mockLimiter) Allow(ctx context.Context, key string) (*ratelimit.Result, error) {
	return m.AllowFunc(ctx, key)
}

// drain returns every frame queued in mb without blocking.
func drain(t *testing.T, mb *Mailbox) []Frame {
	t.Helper()
	var out []Frame
	for {
		select {
		case data := <-mb.Outbound():
			var f struct {
				Type      string          `json:"type"`
				RequestID string          `json:"request_id"`
				Payload   json.RawMessage `json:"payload"`
			}
			require.NoError(t, json.Unmarshal(data, &f))
			out = append(out, Frame{Type: f.Type, RequestID: f.RequestID, Payload: f.Payload})
		default:
			return out
		}
	}
}

func frameTypes(frames []Frame) []string {
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		out = append(out, f.Type)
	}
	return out
}

func findFrame(t *testing.T, frames []Frame, frameType string) Frame {
	t.Helper()
	for _, f := range frames {
		if f.Type == frameType {
			return f
		}
	}
	t.Fatalf("no %s frame in %v", frameType, frameTypes(frames))
	return Frame{}
}

func decode[T any](t *testing.T, f Frame) T {
	t.Helper()
	raw, ok := f.Payload.(json.RawMessage)
	require.True(t, ok, "payload is %T", f.Payload)
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func strPtr(s string) *string { return &s }

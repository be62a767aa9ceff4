package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/example/chat-app/domain/apperror"
	domain "github.com/example/chat-app/domain/message"
	user "github.com/example/chat-app/domain/user"
	"github.com/example/chat-app/modules/activity"
	"github.com/example/chat-app/modules/auth"
	"github.com/example/chat-app/modules/chat"
	"github.com/example/chat-app/modules/files"
	"github.com/example/chat-app/modules/presence"
	"github.com/example/chat-app/modules/ratelimit"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
)

var errNotImplemented = errors.New("not implemented")

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(msg string, args ...any)         {}
func (m *mockLogger) Info(msg string, args ...any)          {}
func (m *mockLogger) Warn(msg string, args ...any)          {}
func (m *mockLogger) Error(msg string, args ...any)         {}
func (m *mockLogger) With(args ...any) types.Logger         { return m }
func (m *mockLogger) WithError(err error) types.Logger      { return m }
func (m *mockLogger) WithModule(module string) types.Logger { return m }

// mockAuthPort implements auth.AuthPort for testing
type mockAuthPort struct {
	registerFunc     func(ctx context.Context, username, password string) (*auth.SessionResponse, error)
	loginFunc        func(ctx context.Context, username, password string) (*auth.SessionResponse, error)
	verifyTokenFunc  func(ctx context.Context, token string) (*user.Claims, error)
	updateAvatarFunc func(ctx context.Context, userID, avatarURL string) (*string, error)
}

func (m *mockAuthPort) Register(ctx context.Context, username, password string) (*auth.SessionResponse, error) {
	if m.registerFunc != nil {
		return m.registerFunc(ctx, username, password)
	}
	return nil, errNotImplemented
}

func (m *mockAuthPort) Login(ctx context.Context, username, password string) (*auth.SessionResponse, error) {
	if m.loginFunc != nil {
		return m.loginFunc(ctx, username, password)
	}
	return nil, errNotImplemented
}

func (m *mockAuthPort) VerifyToken(ctx context.Context, token string) (*user.Claims, error) {
	if m.verifyTokenFunc != nil {
		return m.verifyTokenFunc(ctx, token)
	}
	if token == "good" {
		return &user.Claims{UserID: "u1", Username: "alice"}, nil
	}
	return nil, apperror.New(apperror.KindAuthFailure, apperror.CodeInvalidToken, "Invalid token")
}

func (m *mockAuthPort) GetProfile(ctx context.Context, userID string) (*user.Profile, error) {
	return nil, errNotImplemented
}

func (m *mockAuthPort) GetProfiles(ctx context.Context, userIDs []string) ([]user.Profile, error) {
	return nil, errNotImplemented
}

func (m *mockAuthPort) UpdateAvatar(ctx context.Context, userID, avatarURL string) (*string, error) {
	if m.updateAvatarFunc != nil {
		return m.updateAvatarFunc(ctx, userID, avatarURL)
	}
	return nil, errNotImplemented
}

// mockMessagesPort implements messages.MessagesPort for testing
type mockMessagesPort struct {
	appendFunc     func(ctx context.Context, draft domain.Draft) (*domain.View, error)
	listRoomFunc   func(ctx context.Context, room string) ([]domain.View, error)
	deleteManyFunc func(ctx context.Context, requesterID string, ids []string) (int, error)
}

func (m *mockMessagesPort) Append(ctx context.Context, draft domain.Draft) (*domain.View, error) {
	if m.appendFunc != nil {
		return m.appendFunc(ctx, draft)
	}
	return nil, errNotImplemented
}

func (m *mockMessagesPort) ListRoom(ctx context.Context, room string) ([]domain.View, error) {
	if m.listRoomFunc != nil {
		return m.listRoomFunc(ctx, room)
	}
	return nil, errNotImplemented
}

func (m *mockMessagesPort) DeleteMany(ctx context.Context, requesterID string, ids []string) (int, error) {
	if m.deleteManyFunc != nil {
		return m.deleteManyFunc(ctx, requesterID, ids)
	}
	return 0, errNotImplemented
}

// mockActivityPort implements activity.ActivityPort for testing
type mockActivityPort struct {
	roomActivityFunc func(ctx context.Context, room string) (*activity.RoomActivityResponse, error)
}

func (m *mockActivityPort) RoomActivity(ctx context.Context, room string) (*activity.RoomActivityResponse, error) {
	if m.roomActivityFunc != nil {
		return m.roomActivityFunc(ctx, room)
	}
	return nil, errNotImplemented
}

// mockLimiter implements ratelimit.RateLimitPort for testing
type mockLimiter struct {
	allowFunc func(ctx context.Context, key string) (*ratelimit.Result, error)
}

func (m *mockLimiter) Allow(ctx context.Context, key string) (*ratelimit.Result, error) {
	if m.allowFunc != nil {
		return m.allowFunc(ctx, key)
	}
	return &ratelimit.Result{Allowed: true, Remaining: 10}, nil
}

// mockBlobStore keeps blobs in memory and records deletions.
type mockBlobStore struct {
	mu       sync.Mutex
	blobs    map[string][]byte
	types    map[string]string
	deleted  []string
	storeErr error
}

func newMockBlobStore() *mockBlobStore {
	return &mockBlobStore{blobs: make(map[string][]byte), types: make(map[string]string)}
}

func (m *mockBlobStore) Store(_ context.Context, up files.Upload) (*domain.FileRef, error) {
	if m.storeErr != nil {
		return nil, m.storeErr
	}
	data, err := io.ReadAll(up.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	path := files.PublicPrefix + string(up.Kind) + "/id-" + up.Filename
	m.blobs[path] = data
	m.types[path] = up.ContentType
	return &domain.FileRef{Path: path, Name: up.Filename, MimeType: up.ContentType}, nil
}

func (m *mockBlobStore) Open(_ context.Context, path string) (io.ReadCloser, *files.BlobInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[path]
	if !ok {
		return nil, nil, apperror.New(apperror.KindNotFound, apperror.CodeBlobNotFound, "File not found")
	}
	return io.NopCloser(bytes.NewReader(data)), &files.BlobInfo{
		Path:        path,
		ContentType: m.types[path],
		Size:        int64(len(data)),
	}, nil
}

func (m *mockBlobStore) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, path)
	if _, ok := m.blobs[path]; !ok {
		return apperror.New(apperror.KindNotFound, apperror.CodeBlobNotFound, "File not found")
	}
	delete(m.blobs, path)
	return nil
}

// mockGateway implements LiveGateway with fixed views.
type mockGateway struct {
	admitFunc   func(ctx context.Context, token string) (presence.Connection, error)
	members     []presence.Member
	rooms       map[string]int
	connections int
}

func (m *mockGateway) Admit(ctx context.Context, token string) (presence.Connection, error) {
	if m.admitFunc != nil {
		return m.admitFunc(ctx, token)
	}
	return presence.Connection{}, errNotImplemented
}

func (m *mockGateway) Connect(c presence.Connection) (*chat.Mailbox, error) {
	return nil, errNotImplemented
}

func (m *mockGateway) Handle(ctx context.Context, connID string, raw []byte) {}

func (m *mockGateway) Disconnect(connID string) {}

func (m *mockGateway) Snapshot() []presence.Member { return m.members }

func (m *mockGateway) RoomCounts() map[string]int { return m.rooms }

func (m *mockGateway) ConnectionCount() int { return m.connections }

// testDeps bundles the mocks behind one Handlers.
type testDeps struct {
	auth     *mockAuthPort
	messages *mockMessagesPort
	activity *mockActivityPort
	limiter  *mockLimiter
	blobs    *mockBlobStore
	gateway  *mockGateway
}

func newTestDeps() *testDeps {
	return &testDeps{
		auth:     &mockAuthPort{},
		messages: &mockMessagesPort{},
		activity: &mockActivityPort{},
		limiter:  &mockLimiter{},
		blobs:    newMockBlobStore(),
		gateway:  &mockGateway{rooms: map[string]int{}},
	}
}

func (d *testDeps) app() *fiber.App {
	h := NewHandlers(d.auth, d.messages, d.activity, d.limiter, d.blobs, d.gateway, &mockLogger{})
	return newApp(h, DefaultConfig(), &mockLogger{})
}

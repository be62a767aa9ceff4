package activity

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/example/chat-app/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	kvjetstream "github.com/go-monolith/mono/plugin/kv-jetstream"
	"github.com/stretchr/testify/assert"
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

// createTestModule starts a module on an in-memory activity bucket.
func createTestModule(t *testing.T) *Module {
	t.Helper()

	app, err := mono.NewMonoApplication(
		mono.WithLogLevel(mono.LogLevelError),
	)
	require.NoError(t, err)

	kv, err := kvjetstream.New(kvjetstream.Config{
		Buckets: []kvjetstream.BucketConfig{
			{
				Name:        BucketName,
				Description: "Test room activity",
				Storage:     kvjetstream.MemoryStorage,
			},
		},
	})
	require.NoError(t, err)
	require.NoError(t, app.RegisterPlugin(kv, "kv"))
	require.NoError(t, app.Start(context.Background()))
	t.Cleanup(func() {
		_ = app.Stop(context.Background())
	})

	module := NewModule(&mockLogger{})
	module.SetPlugin("kv", kv)
	require.NoError(t, module.Start(context.Background()))
	return module
}

func TestStore_RoomCounters(t *testing.T) {
	store := createTestModule(t).Store()
	t1 := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)

	require.NoError(t, store.RecordMessage("general", t2))
	require.NoError(t, store.RecordMessage("general", t1))
	require.NoError(t, store.RecordMessage("general", t1))
	require.NoError(t, store.RecordJoin("general", t1))
	require.NoError(t, store.RecordDeleted("general", 1))

	a, err := store.Room("general")
	require.NoError(t, err)
	assert.Equal(t, "general", a.Room)
	assert.Equal(t, int64(3), a.Sent)
	assert.Equal(t, int64(2), a.Messages)
	assert.Equal(t, int64(1), a.Deleted)
	assert.Equal(t, int64(1), a.Joins)
	require.NotNil(t, a.LastMessageAt)
	assert.True(t, a.LastMessageAt.Equal(t2), "an older event must not move the timestamp back")
	require.NotNil(t, a.LastJoinAt)
	assert.True(t, a.LastJoinAt.Equal(t1))
}

func TestStore_DeletedNeverNegative(t *testing.T) {
	store := createTestModule(t).Store()

	require.NoError(t, store.RecordMessage("general", time.Now()))
	require.NoError(t, store.RecordDeleted("general", 5))

	a, err := store.Room("general")
	require.NoError(t, err)
	assert.Equal(t, int64(0), a.Messages)
	assert.Equal(t, int64(5), a.Deleted)
}

func TestStore_UnknownRoomIsZero(t *testing.T) {
	store := createTestModule(t).Store()

	a, err := store.Room("nobody-here")
	require.NoError(t, err)
	assert.Equal(t, RoomActivity{Room: "nobody-here"}, a)
}

func TestStore_RoomsSortedAndEncoded(t *testing.T) {
	store := createTestModule(t).Store()
	now := time.Now().UTC()

	require.NoError(t, store.RecordMessage("random", now))
	require.NoError(t, store.RecordJoin("Café au lait / ☕", now))
	require.NoError(t, store.RecordMessage("general", now))
	require.NoError(t, store.RecordConnect(now))

	rooms, err := store.Rooms()
	require.NoError(t, err)
	names := make([]string, 0, len(rooms))
	for _, r := range rooms {
		names = append(names, r.Room)
	}
	assert.Equal(t, []string{"Café au lait / ☕", "general", "random"}, names)
}

func TestStore_ConcurrentUpdates(t *testing.T) {
	store := createTestModule(t).Store()

	const writers = 4
	const perWriter = 5
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				// contention may exhaust retries; count what landed
				_ = store.RecordJoin("general", time.Now())
			}
		}()
	}
	wg.Wait()

	a, err := store.Room("general")
	require.NoError(t, err)
	assert.Positive(t, a.Joins)
	assert.LessOrEqual(t, a.Joins, int64(writers*perWriter))
}

func TestRoomKey(t *testing.T) {
	for _, room := range []string{"general", "with space", "dots.and/slashes", "ünïcode"} {
		key := roomKey(room)
		assert.True(t, strings.HasPrefix(key, roomKeyPrefix))
		assert.NotContains(t, key[len(roomKeyPrefix):], ".")
		assert.NotContains(t, key, " ")
	}
	assert.NotEqual(t, roomKey("a"), roomKey("b"))
}

func TestModule_EventHandlers(t *testing.T) {
	m := createTestModule(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, m.handleUserConnected(ctx, events.UserConnectedEvent{ConnectionID: "c1", Timestamp: now}, nil))
	require.NoError(t, m.handleRoomJoined(ctx, events.RoomJoinedEvent{ConnectionID: "c1", Room: "general", Timestamp: now}, nil))
	require.NoError(t, m.handleMessageSent(ctx, events.MessageSentEvent{MessageID: "m1", Room: "general", Timestamp: now}, nil))
	require.NoError(t, m.handleMessageSent(ctx, events.MessageSentEvent{MessageID: "m2", Room: "random", Timestamp: now}, nil))
	require.NoError(t, m.handleMessagesDeleted(ctx, events.MessagesDeletedEvent{PerRoom: map[string]int{"random": 1}}, nil))
	require.NoError(t, m.handleUserDisconnected(ctx, events.UserDisconnectedEvent{ConnectionID: "c1", Timestamp: now}, nil))

	resp, err := m.handleRoomActivity(ctx, RoomActivityRequest{}, nil)
	require.NoError(t, err)
	require.Nil(t, resp.Fault)
	require.Len(t, resp.Rooms, 2)
	assert.Equal(t, "general", resp.Rooms[0].Room)
	assert.Equal(t, int64(1), resp.Rooms[0].Joins)
	assert.Equal(t, int64(1), resp.Rooms[0].Messages)
	assert.Equal(t, int64(0), resp.Rooms[1].Messages)
	assert.Equal(t, Totals{Connects: 1, Disconnects: 1, LastSeenAt: resp.Totals.LastSeenAt}, resp.Totals)

	one, err := m.handleRoomActivity(ctx, RoomActivityRequest{Room: "general"}, nil)
	require.NoError(t, err)
	require.Len(t, one.Rooms, 1)
	assert.Equal(t, int64(1), one.Rooms[0].Sent)

	health := m.Health(ctx)
	assert.True(t, health.Healthy)
}

func TestModule_StartWithoutPlugin(t *testing.T) {
	m := NewModule(&mockLogger{})
	assert.Error(t, m.Start(context.Background()))
	assert.False(t, m.Health(context.Background()).Healthy)
}

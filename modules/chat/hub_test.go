package chat

import (
	"sync"
	"testing"

	"github.com/example/chat-app/modules/presence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PushEncodesFrame(t *testing.T) {
	hub := NewHub(4, &mockLogger{})
	mb, err := hub.Open("c1")
	require.NoError(t, err)

	require.NoError(t, hub.Push("c1", presence.Event{
		Type:    presence.EventUserJoined,
		Payload: presence.UserPayload{User: presence.Member{ConnectionID: "c2", Username: "bob"}},
	}))

	frames := drain(t, mb)
	require.Len(t, frames, 1)
	assert.Equal(t, presence.EventUserJoined, frames[0].Type)
	payload := decode[presence.UserPayload](t, frames[0])
	assert.Equal(t, "bob", payload.User.Username)
}

func TestHub_OpenTwice(t *testing.T) {
	hub := NewHub(4, &mockLogger{})
	_, err := hub.Open("c1")
	require.NoError(t, err)

	_, err = hub.Open("c1")
	assert.ErrorIs(t, err, ErrMailboxExists)
}

func TestHub_UnknownConnection(t *testing.T) {
	hub := NewHub(4, &mockLogger{})
	err := hub.Push("ghost", presence.Event{Type: presence.EventPresenceSnapshot})
	assert.ErrorIs(t, err, ErrNoMailbox)
}

func TestHub_FullMailboxEvicts(t *testing.T) {
	hub := NewHub(2, &mockLogger{})
	slow, err := hub.Open("slow")
	require.NoError(t, err)
	fast, err := hub.Open("fast")
	require.NoError(t, err)

	ev := presence.Event{Type: presence.EventPresenceSnapshot, Payload: presence.SnapshotPayload{}}
	require.NoError(t, hub.Push("slow", ev))
	require.NoError(t, hub.Push("slow", ev))

	err = hub.Push("slow", ev)
	assert.ErrorIs(t, err, ErrSlowConsumer)

	select {
	case <-slow.Done():
	default:
		t.Fatal("evicted mailbox should be closed")
	}
	assert.ErrorIs(t, slow.Err(), ErrSlowConsumer)
	assert.Equal(t, 1, hub.Count())

	// others are unaffected
	require.NoError(t, hub.Push("fast", ev))
	assert.Len(t, drain(t, fast), 1)
	assert.ErrorIs(t, hub.Push("slow", ev), ErrNoMailbox)
}

func TestHub_CloseIsIdempotent(t *testing.T) {
	hub := NewHub(2, &mockLogger{})
	mb, err := hub.Open("c1")
	require.NoError(t, err)

	assert.NoError(t, mb.Err())
	hub.Close("c1")
	hub.Close("c1")

	assert.ErrorIs(t, mb.Err(), ErrMailboxClosed)
	assert.Equal(t, 0, hub.Count())
}

func TestHub_CloseAll(t *testing.T) {
	hub := NewHub(2, &mockLogger{})
	a, _ := hub.Open("a")
	b, _ := hub.Open("b")

	hub.CloseAll()

	assert.ErrorIs(t, a.Err(), ErrHubShuttingDown)
	assert.ErrorIs(t, b.Err(), ErrHubShuttingDown)
	assert.Equal(t, 0, hub.Count())
}

func TestHub_ConcurrentPushAndClose(t *testing.T) {
	hub := NewHub(1024, &mockLogger{})
	mb, err := hub.Open("c1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = hub.Push("c1", presence.Event{Type: presence.EventPresenceSnapshot})
			}
		}()
	}
	hub.Close("c1")
	wg.Wait()

	assert.Error(t, mb.Err())
}

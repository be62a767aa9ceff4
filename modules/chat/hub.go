package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/example/chat-app/modules/presence"
	"github.com/go-monolith/mono/pkg/types"
)

// DefaultMailboxSize is the number of frames queued per connection.
const DefaultMailboxSize = 256

var (
	ErrNoMailbox       = errors.New("no mailbox for connection")
	ErrMailboxExists   = errors.New("mailbox already open")
	ErrMailboxClosed   = errors.New("mailbox closed")
	ErrSlowConsumer    = errors.New("mailbox full, connection evicted")
	ErrHubShuttingDown = errors.New("hub shutting down")
)

// Mailbox is the bounded outbound queue of one connection. Frames are
// already encoded; the transport drains Outbound until Done is closed.
type Mailbox struct {
	id     string
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	reason error
}

func newMailbox(id string, size int) *Mailbox {
	return &Mailbox{
		id:   id,
		send: make(chan []byte, size),
		done: make(chan struct{}),
	}
}

// ID returns the connection id.
func (mb *Mailbox) ID() string { return mb.id }

// Outbound yields encoded frames in enqueue order.
func (mb *Mailbox) Outbound() <-chan []byte { return mb.send }

// Done is closed when the mailbox is closed.
func (mb *Mailbox) Done() <-chan struct{} { return mb.done }

// Err returns why the mailbox was closed, nil while open.
func (mb *Mailbox) Err() error {
	select {
	case <-mb.done:
		return mb.reason
	default:
		return nil
	}
}

func (mb *Mailbox) close(reason error) {
	mb.once.Do(func() {
		mb.reason = reason
		close(mb.done)
	})
}

// offer enqueues without blocking. send is never closed, so a send after
// close cannot panic.
func (mb *Mailbox) offer(data []byte) error {
	select {
	case <-mb.done:
		return ErrMailboxClosed
	default:
	}
	select {
	case mb.send <- data:
		return nil
	default:
		return ErrSlowConsumer
	}
}

// Hub owns the mailboxes of all live connections and implements
// presence.Pusher over them.
type Hub struct {
	mu        sync.RWMutex
	mailboxes map[string]*Mailbox
	size      int
	logger    types.Logger
}

var _ presence.Pusher = (*Hub)(nil)

// NewHub creates a Hub whose mailboxes hold size frames.
func NewHub(size int, logger types.Logger) *Hub {
	if size <= 0 {
		size = DefaultMailboxSize
	}
	return &Hub{
		mailboxes: make(map[string]*Mailbox),
		size:      size,
		logger:    logger,
	}
}

// Open creates the mailbox of a new connection.
func (h *Hub) Open(connID string) (*Mailbox, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.mailboxes[connID]; ok {
		return nil, ErrMailboxExists
	}
	mb := newMailbox(connID, h.size)
	h.mailboxes[connID] = mb
	return mb, nil
}

// Close removes and closes the mailbox of connID. Closing an unknown
// mailbox does nothing.
func (h *Hub) Close(connID string) {
	h.mu.Lock()
	mb, ok := h.mailboxes[connID]
	delete(h.mailboxes, connID)
	h.mu.Unlock()

	if ok {
		mb.close(ErrMailboxClosed)
	}
}

// CloseAll closes every mailbox.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	boxes := h.mailboxes
	h.mailboxes = make(map[string]*Mailbox)
	h.mu.Unlock()

	for _, mb := range boxes {
		mb.close(ErrHubShuttingDown)
	}
}

// Push encodes ev and enqueues it for connID.
func (h *Hub) Push(connID string, ev presence.Event) error {
	return h.Send(connID, Frame{Type: ev.Type, Payload: ev.Payload})
}

// Send encodes f and enqueues it for connID. A full mailbox evicts the
// connection: its mailbox is closed and the transport tears it down.
func (h *Hub) Send(connID string, f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to encode %s frame: %w", f.Type, err)
	}

	h.mu.RLock()
	mb, ok := h.mailboxes[connID]
	h.mu.RUnlock()
	if !ok {
		return ErrNoMailbox
	}

	err = mb.offer(data)
	if errors.Is(err, ErrSlowConsumer) {
		h.evict(mb)
	}
	return err
}

func (h *Hub) evict(mb *Mailbox) {
	h.mu.Lock()
	if h.mailboxes[mb.id] == mb {
		delete(h.mailboxes, mb.id)
	}
	h.mu.Unlock()

	mb.close(ErrSlowConsumer)
	h.logger.Warn("Evicted slow connection", "connectionID", mb.id, "queued", len(mb.send))
}

// Count returns the number of open mailboxes.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.mailboxes)
}

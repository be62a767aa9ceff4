package chat

import (
	"context"
	"fmt"

	"github.com/example/chat-app/events"
	"github.com/example/chat-app/modules/auth"
	"github.com/example/chat-app/modules/messages"
	"github.com/example/chat-app/modules/presence"
	"github.com/example/chat-app/modules/ratelimit"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

// Module hosts the live connection core: gate, presence, relay and hub.
type Module struct {
	logger       types.Logger
	authPort     auth.AuthPort
	messagesPort messages.MessagesPort
	limiter      ratelimit.RateLimitPort
	eventBus     mono.EventBus
	registry     *presence.Registry
	hub          *Hub
	gateway      *Gateway
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.DependentModule       = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
)

// NewModule creates the chat module with mailboxes of mailboxSize frames.
// The gateway exists from construction so it can be handed to the
// transport before Start; it accepts connections once Start has run.
func NewModule(mailboxSize int, logger types.Logger) *Module {
	hub := NewHub(mailboxSize, logger)
	registry := presence.NewRegistry()
	broadcaster := presence.NewBroadcaster(registry, hub, logger)
	return &Module{
		logger:   logger,
		registry: registry,
		hub:      hub,
		gateway:  NewGateway(nil, hub, broadcaster, nil, nil, logger),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "chat"
}

// Dependencies returns the list of module dependencies.
func (m *Module) Dependencies() []string {
	return []string{"auth", "messages", "ratelimit"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "auth":
		m.authPort = auth.NewAuthAdapter(container)
	case "messages":
		m.messagesPort = messages.NewMessagesAdapter(container)
	case "ratelimit":
		m.limiter = ratelimit.NewRateLimitAdapter(container)
	}
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.UserConnectedV1.ToBase(),
		events.UserDisconnectedV1.ToBase(),
		events.RoomJoinedV1.ToBase(),
	}
}

// Start builds the gateway.
func (m *Module) Start(_ context.Context) error {
	if m.authPort == nil {
		return fmt.Errorf("auth dependency not set")
	}
	if m.messagesPort == nil {
		return fmt.Errorf("messages dependency not set")
	}

	gate, err := NewGate(m.authPort)
	if err != nil {
		return err
	}

	var limiter Limiter
	if m.limiter != nil {
		limiter = m.limiter
	}

	m.gateway.gate = gate
	m.gateway.relay = NewRelay(m.registry, m.messagesPort, limiter, m.hub, m.logger)
	m.gateway.bus = m.eventBus

	m.logger.Info("Chat module started", "mailboxSize", m.hub.size)
	return nil
}

// Stop closes every mailbox so transports tear their connections down.
func (m *Module) Stop(_ context.Context) error {
	m.hub.CloseAll()
	m.logger.Info("Chat module stopped")
	return nil
}

// Health reports live connection counts.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if !m.gateway.Ready() {
		return mono.HealthStatus{Healthy: false, Message: "not started"}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connections": m.gateway.ConnectionCount(),
			"rooms":       len(m.gateway.RoomCounts()),
			"mailboxes":   m.hub.Count(),
		},
	}
}

// Gateway returns the live connection surface (wired into the api module
// from main.go).
func (m *Module) Gateway() *Gateway {
	return m.gateway
}

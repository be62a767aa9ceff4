package activity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/chat-app/domain/apperror"
	"github.com/example/chat-app/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	kvjetstream "github.com/go-monolith/mono/plugin/kv-jetstream"
)

// BucketName is the kv-jetstream bucket holding activity records.
const BucketName = "room-activity"

// Module consumes chat events and serves room activity.
type Module struct {
	kv     *kvjetstream.PluginModule
	store  *Store
	logger types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.UsePluginModule       = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new activity module.
func NewModule(logger types.Logger) *Module {
	return &Module{logger: logger}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "activity"
}

// SetPlugin receives the KV plugin from the framework.
func (m *Module) SetPlugin(alias string, plugin mono.PluginModule) {
	if alias == "kv" {
		kv, ok := plugin.(*kvjetstream.PluginModule)
		if !ok {
			m.logger.Error("Invalid plugin type for kv",
				"alias", alias,
				"expected", "*kvjetstream.PluginModule")
			return
		}
		m.kv = kv
	}
}

// Start resolves the activity bucket.
func (m *Module) Start(_ context.Context) error {
	if m.kv == nil {
		return fmt.Errorf("required plugin 'kv' not registered")
	}
	bucket := m.kv.Bucket(BucketName)
	if bucket == nil {
		return fmt.Errorf("bucket '%s' not found in KV plugin", BucketName)
	}
	m.store = NewStore(bucket)
	m.logger.Info("Activity module started", "bucket", BucketName)
	return nil
}

// Stop gracefully shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Activity module stopped")
	return nil
}

// Health reports whether the bucket answers.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if m.store == nil {
		return mono.HealthStatus{Healthy: false, Message: "not started"}
	}
	totals, err := m.store.Totals()
	if err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("bucket read failed: %v", err)}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"bucket":   BucketName,
			"connects": totals.Connects,
		},
	}
}

// Store returns the activity store.
func (m *Module) Store() *Store {
	return m.store
}

// RegisterEventConsumers subscribes to message and connection events.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(registry, events.MessageSentV1, m.handleMessageSent, m); err != nil {
		return fmt.Errorf("failed to register MessageSent consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.MessagesDeletedV1, m.handleMessagesDeleted, m); err != nil {
		return fmt.Errorf("failed to register MessagesDeleted consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.RoomJoinedV1, m.handleRoomJoined, m); err != nil {
		return fmt.Errorf("failed to register RoomJoined consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.UserConnectedV1, m.handleUserConnected, m); err != nil {
		return fmt.Errorf("failed to register UserConnected consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.UserDisconnectedV1, m.handleUserDisconnected, m); err != nil {
		return fmt.Errorf("failed to register UserDisconnected consumer: %w", err)
	}

	m.logger.Info("Registered event consumers",
		"events", []string{"MessageSent.v1", "MessagesDeleted.v1", "RoomJoined.v1", "UserConnected.v1", "UserDisconnected.v1"})
	return nil
}

func (m *Module) handleMessageSent(_ context.Context, ev events.MessageSentEvent, _ *mono.Msg) error {
	if err := m.store.RecordMessage(ev.Room, ev.Timestamp); err != nil {
		m.logger.Error("Failed to record message", "room", ev.Room, "messageID", ev.MessageID, "error", err)
		return err
	}
	return nil
}

func (m *Module) handleMessagesDeleted(_ context.Context, ev events.MessagesDeletedEvent, _ *mono.Msg) error {
	for room, n := range ev.PerRoom {
		if err := m.store.RecordDeleted(room, n); err != nil {
			m.logger.Error("Failed to record deletion", "room", room, "count", n, "error", err)
			return err
		}
	}
	return nil
}

func (m *Module) handleRoomJoined(_ context.Context, ev events.RoomJoinedEvent, _ *mono.Msg) error {
	if err := m.store.RecordJoin(ev.Room, ev.Timestamp); err != nil {
		m.logger.Error("Failed to record join", "room", ev.Room, "error", err)
		return err
	}
	return nil
}

func (m *Module) handleUserConnected(_ context.Context, ev events.UserConnectedEvent, _ *mono.Msg) error {
	if err := m.store.RecordConnect(ev.Timestamp); err != nil {
		m.logger.Error("Failed to record connect", "connectionID", ev.ConnectionID, "error", err)
		return err
	}
	return nil
}

func (m *Module) handleUserDisconnected(_ context.Context, ev events.UserDisconnectedEvent, _ *mono.Msg) error {
	if err := m.store.RecordDisconnect(ev.Timestamp); err != nil {
		m.logger.Error("Failed to record disconnect", "connectionID", ev.ConnectionID, "error", err)
		return err
	}
	return nil
}

// RegisterServices registers the room-activity service.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "room-activity", json.Unmarshal, json.Marshal, m.handleRoomActivity,
	); err != nil {
		return fmt.Errorf("failed to register room-activity service: %w", err)
	}
	m.logger.Info("Registered activity services", "services", []string{"room-activity"})
	return nil
}

func (m *Module) handleRoomActivity(_ context.Context, req RoomActivityRequest, _ *mono.Msg) (RoomActivityResponse, error) {
	resp, err := m.query(req.Room)
	if err != nil {
		return RoomActivityResponse{Fault: apperror.ToFault(
			apperror.Wrap(apperror.KindPersistence, apperror.CodeStorageFailed, "Failed to read room activity", err),
		)}, nil
	}
	return resp, nil
}

func (m *Module) query(room string) (RoomActivityResponse, error) {
	var resp RoomActivityResponse
	if room != "" {
		a, err := m.store.Room(room)
		if err != nil {
			return resp, err
		}
		resp.Rooms = []RoomActivity{a}
	} else {
		rooms, err := m.store.Rooms()
		if err != nil {
			return resp, err
		}
		resp.Rooms = rooms
	}

	totals, err := m.store.Totals()
	if err != nil {
		return resp, err
	}
	resp.Totals = totals
	return resp, nil
}

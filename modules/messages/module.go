package messages

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/example/chat-app/domain/apperror"
	domain "github.com/example/chat-app/domain/message"
	"github.com/example/chat-app/events"
	"github.com/example/chat-app/modules/auth"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MessagesModule stores chat history in SQLite via GORM.
type MessagesModule struct {
	dbPath   string
	db       *gorm.DB
	repo     *Repository
	service  *Service
	authPort auth.AuthPort
	eventBus mono.EventBus
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*MessagesModule)(nil)
	_ mono.ServiceProviderModule = (*MessagesModule)(nil)
	_ mono.DependentModule       = (*MessagesModule)(nil)
	_ mono.HealthCheckableModule = (*MessagesModule)(nil)
	_ mono.EventBusAwareModule   = (*MessagesModule)(nil)
	_ mono.EventEmitterModule    = (*MessagesModule)(nil)
)

// NewModule creates a new MessagesModule.
func NewModule(dbPath string) *MessagesModule {
	if dbPath == "" {
		dbPath = "chat_messages.db"
	}
	return &MessagesModule{dbPath: dbPath}
}

// Name returns the module name.
func (m *MessagesModule) Name() string {
	return "messages"
}

// Dependencies returns the list of module dependencies.
func (m *MessagesModule) Dependencies() []string {
	return []string{"auth"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *MessagesModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	if dependency == "auth" {
		m.authPort = auth.NewAuthAdapter(container)
	}
}

// SetEventBus receives the EventBus from the framework.
func (m *MessagesModule) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *MessagesModule) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.MessageSentV1.ToBase(),
		events.MessagesDeletedV1.ToBase(),
	}
}

// Start opens the database and runs migrations.
func (m *MessagesModule) Start(_ context.Context) error {
	if m.authPort == nil {
		return fmt.Errorf("auth dependency not set")
	}

	db, err := gorm.Open(sqlite.Open(m.dbPath), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.db = db

	if err := db.AutoMigrate(&domain.Message{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	m.repo = NewRepository(db)
	m.service = NewService(m.repo, m.authPort, m.eventBus)

	log.Printf("[messages] Module started (database: %s)", m.dbPath)
	return nil
}

// Stop closes the database connection.
func (m *MessagesModule) Stop(_ context.Context) error {
	if m.db == nil {
		return nil
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	log.Println("[messages] Module stopped")
	return nil
}

// Health performs a health check on the messages module.
func (m *MessagesModule) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get sql.DB: %v", err),
		}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	details := map[string]any{
		"driver": "sqlite",
		"path":   m.dbPath,
	}
	if count, err := m.repo.Count(); err == nil {
		details["messages"] = count
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: details,
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *MessagesModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "append-message", json.Unmarshal, json.Marshal, m.handleAppend,
	); err != nil {
		return fmt.Errorf("failed to register append-message service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "list-room-messages", json.Unmarshal, json.Marshal, m.handleListRoom,
	); err != nil {
		return fmt.Errorf("failed to register list-room-messages service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "delete-messages", json.Unmarshal, json.Marshal, m.handleDelete,
	); err != nil {
		return fmt.Errorf("failed to register delete-messages service: %w", err)
	}

	log.Printf("[messages] Registered services: append-message, list-room-messages, delete-messages")
	return nil
}

func (m *MessagesModule) handleAppend(ctx context.Context, req AppendMessageRequest, _ *mono.Msg) (MessageResponse, error) {
	view, err := m.service.Append(ctx, req.Draft)
	if err != nil {
		return MessageResponse{Fault: apperror.ToFault(err)}, nil
	}
	return MessageResponse{Message: view}, nil
}

func (m *MessagesModule) handleListRoom(ctx context.Context, req ListRoomMessagesRequest, _ *mono.Msg) (ListRoomMessagesResponse, error) {
	views, err := m.service.ListRoom(ctx, req.Room)
	if err != nil {
		return ListRoomMessagesResponse{Fault: apperror.ToFault(err)}, nil
	}
	return ListRoomMessagesResponse{Messages: views}, nil
}

func (m *MessagesModule) handleDelete(ctx context.Context, req DeleteMessagesRequest, _ *mono.Msg) (DeleteMessagesResponse, error) {
	n, err := m.service.DeleteMany(ctx, req.RequesterID, req.IDs)
	if err != nil {
		return DeleteMessagesResponse{Fault: apperror.ToFault(err)}, nil
	}
	return DeleteMessagesResponse{Deleted: n}, nil
}

package api

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/example/chat-app/modules/activity"
	"github.com/example/chat-app/modules/auth"
	"github.com/example/chat-app/modules/files"
	"github.com/example/chat-app/modules/messages"
	"github.com/example/chat-app/modules/ratelimit"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Config configures the HTTP server.
type Config struct {
	Port        int
	CORSOrigins string
	// BodyLimit caps request bodies, uploads included.
	BodyLimit int
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Port:        5000,
		CORSOrigins: "*",
		BodyLimit:   51 * 1024 * 1024,
	}
}

// APIModule serves the HTTP API and the websocket endpoint.
type APIModule struct {
	config       Config
	app          *fiber.App
	logger       types.Logger
	authPort     auth.AuthPort
	messagesPort messages.MessagesPort
	activityPort activity.ActivityPort
	limiter      ratelimit.RateLimitPort
	gateway      LiveGateway
	filesModule  *files.Module
}

// Compile-time interface checks
var (
	_ mono.Module                = (*APIModule)(nil)
	_ mono.DependentModule       = (*APIModule)(nil)
	_ mono.HealthCheckableModule = (*APIModule)(nil)
)

// NewModule creates a new APIModule.
func NewModule(config Config, logger types.Logger) *APIModule {
	defaults := DefaultConfig()
	if config.Port <= 0 {
		config.Port = defaults.Port
	}
	if config.CORSOrigins == "" {
		config.CORSOrigins = defaults.CORSOrigins
	}
	if config.BodyLimit <= 0 {
		config.BodyLimit = defaults.BodyLimit
	}
	return &APIModule{
		config: config,
		logger: logger,
	}
}

// Name returns the module name.
func (m *APIModule) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies. chat and files
// expose no services; they are listed so they start first.
func (m *APIModule) Dependencies() []string {
	return []string{"auth", "messages", "ratelimit", "activity", "chat", "files"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *APIModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "auth":
		m.authPort = auth.NewAuthAdapter(container)
	case "messages":
		m.messagesPort = messages.NewMessagesAdapter(container)
	case "ratelimit":
		m.limiter = ratelimit.NewRateLimitAdapter(container)
	case "activity":
		m.activityPort = activity.NewActivityAdapter(container)
	}
}

// SetGateway sets the live connection gateway (called from main.go).
func (m *APIModule) SetGateway(gateway LiveGateway) {
	m.gateway = gateway
}

// SetFiles sets the files module whose service backs uploads (called from main.go).
func (m *APIModule) SetFiles(module *files.Module) {
	m.filesModule = module
}

// Start builds the router and starts listening.
func (m *APIModule) Start(_ context.Context) error {
	if m.authPort == nil {
		return fmt.Errorf("auth adapter dependency not set")
	}
	if m.messagesPort == nil {
		return fmt.Errorf("messages adapter dependency not set")
	}
	if m.gateway == nil {
		return fmt.Errorf("chat gateway not set")
	}
	if m.filesModule == nil || m.filesModule.Service() == nil {
		return fmt.Errorf("files service not available")
	}

	handlers := NewHandlers(
		m.authPort,
		m.messagesPort,
		m.activityPort,
		m.limiter,
		m.filesModule.Service(),
		m.gateway,
		m.logger,
	)
	m.app = newApp(handlers, m.config, m.logger)

	addr := ":" + strconv.Itoa(m.config.Port)
	go func() {
		if err := m.app.Listen(addr); err != nil {
			m.logger.Error("HTTP server error", "error", err)
		}
	}()

	m.logger.Info("HTTP server started", "addr", addr)
	return nil
}

// Stop shuts down the HTTP server.
func (m *APIModule) Stop(_ context.Context) error {
	if m.app == nil {
		return nil
	}
	m.logger.Info("Shutting down HTTP server")
	return m.app.Shutdown()
}

// Health returns the health status.
func (m *APIModule) Health(_ context.Context) mono.HealthStatus {
	if m.app == nil {
		return mono.HealthStatus{Healthy: false, Message: "not started"}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"port":        m.config.Port,
			"connections": m.gateway.ConnectionCount(),
		},
	}
}

func newApp(h *Handlers, config Config, logger types.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(logger),
		BodyLimit:             config.BodyLimit,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           120 * time.Second,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: config.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))
	app.Use(requestLogger(logger))

	h.Routes(app)
	return app
}

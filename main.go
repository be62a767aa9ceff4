package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/example/chat-app/modules/activity"
	"github.com/example/chat-app/modules/api"
	"github.com/example/chat-app/modules/auth"
	"github.com/example/chat-app/modules/chat"
	"github.com/example/chat-app/modules/files"
	"github.com/example/chat-app/modules/messages"
	"github.com/example/chat-app/modules/ratelimit"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
	fsjetstream "github.com/go-monolith/mono/plugin/fs-jetstream"
	kvjetstream "github.com/go-monolith/mono/plugin/kv-jetstream"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg := loadConfig()

	log.Println("=== Chat App - Fiber + WebSocket + EventBus ===")
	log.Printf("HTTP Port: %d", cfg.HTTP.Port)
	log.Printf("Storage Path: %s", cfg.StoragePath)
	if cfg.RedisAddr == "" {
		log.Println("Redis: disabled (profile cache and rate limiting off)")
	} else {
		log.Printf("Redis: %s", cfg.RedisAddr)
	}

	// Create mono application with embedded NATS JetStream
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
		mono.WithJetStreamStorageDir(cfg.StoragePath),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	storagePlugin, err := fsjetstream.New(fsjetstream.Config{
		Buckets: []fsjetstream.BucketConfig{
			{
				Name:        files.BucketName,
				Description: "Chat attachments and profile pictures",
				MaxBytes:    1024 * 1024 * 1024,
				Storage:     fsjetstream.FileStorage,
				Compression: true,
			},
		},
	})
	if err != nil {
		log.Fatalf("Failed to create storage plugin: %v", err)
	}
	if err := app.RegisterPlugin(storagePlugin, "storage"); err != nil {
		log.Fatalf("Failed to register storage plugin: %v", err)
	}

	kvPlugin, err := kvjetstream.New(kvjetstream.Config{
		Buckets: []kvjetstream.BucketConfig{
			{
				Name:        activity.BucketName,
				Description: "Per-room activity counters",
				Storage:     kvjetstream.FileStorage,
			},
		},
	})
	if err != nil {
		log.Fatalf("Failed to create kv plugin: %v", err)
	}
	if err := app.RegisterPlugin(kvPlugin, "kv"); err != nil {
		log.Fatalf("Failed to register kv plugin: %v", err)
	}

	// Create modules
	authModule := auth.NewModule(cfg.Auth)
	messagesModule := messages.NewModule(cfg.MessagesDB)
	rateLimitModule := ratelimit.NewModule(cfg.RedisAddr, cfg.RateLimit)
	filesModule := files.NewModule(cfg.Limits, app.Logger())
	activityModule := activity.NewModule(app.Logger())
	chatModule := chat.NewModule(cfg.OutboxSize, app.Logger())
	apiModule := api.NewModule(cfg.HTTP, app.Logger())

	// The gateway and the blob service are not exposed via ServiceContainer
	apiModule.SetGateway(chatModule.Gateway())
	apiModule.SetFiles(filesModule)

	// Register modules with the framework.
	// - auth, messages, ratelimit: service providers
	// - files: blob storage on the "storage" plugin
	// - activity: event consumer on the "kv" plugin
	// - chat: live connections, depends on auth, messages and ratelimit
	// - api: Fiber HTTP/WebSocket server, depends on everything above
	app.Register(authModule)
	app.Register(messagesModule)
	app.Register(rateLimitModule)
	app.Register(filesModule)
	app.Register(activityModule)
	app.Register(chatModule)
	app.Register(apiModule)

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg.HTTP.Port)

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(port int) {
	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%d):", port)
	log.Println("  GET    /health                - Health check")
	log.Println("  POST   /api/auth/register     - Create an account")
	log.Println("  POST   /api/auth/login        - Log in")
	log.Println("  GET    /api/messages/:room    - Room history (auth)")
	log.Println("  POST   /api/messages          - Store a message (auth)")
	log.Println("  DELETE /api/messages          - Delete own messages (auth)")
	log.Println("  POST   /api/upload            - Upload a chat file (auth)")
	log.Println("  POST   /api/profile/avatar    - Upload a profile picture (auth)")
	log.Println("  GET    /uploads/*             - Download an upload")
	log.Println("  GET    /api/rooms             - Room activity and live counts")
	log.Println("  GET    /api/presence          - Everyone online")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%d/ws?token=<jwt>):", port)
	log.Println("  Client frames: joinRoom, sendMessage")
	log.Println("  Server frames: presenceSnapshot, roomRosterUpdate, userJoined, userLeft,")
	log.Println("                 newMessage, joined, messageAccepted, messageError")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}

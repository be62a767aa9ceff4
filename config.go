package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/example/chat-app/modules/api"
	"github.com/example/chat-app/modules/auth"
	"github.com/example/chat-app/modules/chat"
	"github.com/example/chat-app/modules/files"
	"github.com/example/chat-app/modules/ratelimit"
)

// Config is the application configuration read from the environment.
type Config struct {
	HTTP        api.Config
	Auth        auth.Config
	MessagesDB  string
	StoragePath string
	Limits      map[files.Kind]files.Limit
	RedisAddr   string
	RateLimit   ratelimit.Config
	OutboxSize  int
}

func loadConfig() Config {
	jwt := auth.DefaultJWTConfig()
	jwt.SecretKey = getEnv("JWT_SECRET_KEY", jwt.SecretKey)
	jwt.Issuer = getEnv("JWT_ISSUER", "chat-app")
	jwt.TokenDuration = getEnvDuration("JWT_TTL", time.Hour)

	limits := files.DefaultLimits()
	chatLimit := limits[files.KindChatFile]
	chatLimit.MaxBytes = getEnvInt64("MAX_CHAT_FILE_SIZE", chatLimit.MaxBytes)
	limits[files.KindChatFile] = chatLimit
	avatarLimit := limits[files.KindProfilePic]
	avatarLimit.MaxBytes = getEnvInt64("MAX_AVATAR_SIZE", avatarLimit.MaxBytes)
	limits[files.KindProfilePic] = avatarLimit

	// Multipart overhead on top of the largest upload.
	bodyLimit := max(chatLimit.MaxBytes, avatarLimit.MaxBytes) + 1<<20

	redisAddr := getEnv("REDIS_ADDR", "")
	rate := ratelimit.DefaultConfig()

	return Config{
		HTTP: api.Config{
			Port:        getEnvInt("HTTP_PORT", 5000),
			CORSOrigins: getEnv("CORS_ORIGINS", "*"),
			BodyLimit:   int(bodyLimit),
		},
		Auth: auth.Config{
			DBPath:    getEnv("AUTH_DB_PATH", "chat_users.db"),
			JWT:       jwt,
			RedisAddr: redisAddr,
			CacheTTL:  getEnvDuration("PROFILE_CACHE_TTL", 5*time.Minute),
		},
		MessagesDB:  getEnv("MESSAGES_DB_PATH", "chat_messages.db"),
		StoragePath: getEnv("STORAGE_PATH", "/tmp/chat-app"),
		Limits:      limits,
		RedisAddr:   redisAddr,
		RateLimit: ratelimit.Config{
			RequestsPerWindow: getEnvInt("MESSAGE_RATE_LIMIT", rate.RequestsPerWindow),
			WindowSize:        getEnvDuration("MESSAGE_RATE_WINDOW", rate.WindowSize),
		},
		OutboxSize: getEnvInt("OUTBOX_SIZE", chat.DefaultMailboxSize),
	}
}

// getEnv returns environment variable value or default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns environment variable as int or default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: invalid int value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvInt64 returns environment variable as int64 or default.
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
		log.Printf("Warning: invalid int64 value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvDuration returns environment variable as a duration ("90s", "1h") or default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
		log.Printf("Warning: invalid duration value for %s: %s, using default: %s", key, value, defaultValue)
	}
	return defaultValue
}

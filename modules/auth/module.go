package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/example/chat-app/domain/apperror"
	domain "github.com/example/chat-app/domain/user"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config configures the auth module.
type Config struct {
	DBPath string
	JWT    JWTConfig
	// RedisAddr enables the profile cache when set.
	RedisAddr string
	CacheTTL  time.Duration
}

// AuthModule provides authentication and profile services.
type AuthModule struct {
	config  Config
	db      *gorm.DB
	cache   *RedisProfileCache
	service *AuthService
}

// Compile-time interface checks.
var _ mono.Module = (*AuthModule)(nil)
var _ mono.ServiceProviderModule = (*AuthModule)(nil)
var _ mono.HealthCheckableModule = (*AuthModule)(nil)

// NewModule creates a new AuthModule.
func NewModule(config Config) *AuthModule {
	if config.DBPath == "" {
		config.DBPath = "chat_users.db"
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 5 * time.Minute
	}
	return &AuthModule{config: config}
}

// Name returns the module name.
func (m *AuthModule) Name() string {
	return "auth"
}

// Start opens the user database and the optional profile cache.
func (m *AuthModule) Start(ctx context.Context) error {
	db, err := gorm.Open(sqlite.Open(m.config.DBPath), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.db = db

	if err := db.AutoMigrate(&domain.User{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	var cache ProfileCache
	if m.config.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: m.config.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			log.Printf("[auth] Warning: Redis unavailable at %s, profile cache disabled: %v", m.config.RedisAddr, err)
			_ = client.Close()
		} else {
			m.cache = NewRedisProfileCache(client, "chat:profile:", m.config.CacheTTL)
			cache = m.cache
		}
	}

	m.service = NewAuthService(NewUserRepository(db), NewPasswordHasher(), NewJWTManager(m.config.JWT), cache)

	log.Printf("[auth] Module started (database: %s, profile cache: %t)", m.config.DBPath, m.cache != nil)
	return nil
}

// Stop closes the database and cache connections.
func (m *AuthModule) Stop(_ context.Context) error {
	if m.cache != nil {
		if err := m.cache.Close(); err != nil {
			log.Printf("[auth] Warning: failed to close cache: %v", err)
		}
	}
	if m.db != nil {
		sqlDB, err := m.db.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
	log.Println("[auth] Module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *AuthModule) Health(ctx context.Context) mono.HealthStatus {
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
			Message: fmt.Sprintf("failed to get database connection: %v", err),
		}
	}
	if err := sqlDB.Ping(); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	details := map[string]any{
		"database": m.config.DBPath,
	}
	if m.cache != nil {
		details["cache_stats"] = m.cache.Stats()
		if err := m.cache.Ping(ctx); err != nil {
			details["cache"] = fmt.Sprintf("unreachable: %v", err)
		} else {
			details["cache"] = "connected"
		}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: details,
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *AuthModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "register", json.Unmarshal, json.Marshal, m.handleRegister,
	); err != nil {
		return fmt.Errorf("failed to register register service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "login", json.Unmarshal, json.Marshal, m.handleLogin,
	); err != nil {
		return fmt.Errorf("failed to register login service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "verify-token", json.Unmarshal, json.Marshal, m.handleVerifyToken,
	); err != nil {
		return fmt.Errorf("failed to register verify-token service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "get-profile", json.Unmarshal, json.Marshal, m.handleGetProfile,
	); err != nil {
		return fmt.Errorf("failed to register get-profile service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "get-profiles", json.Unmarshal, json.Marshal, m.handleGetProfiles,
	); err != nil {
		return fmt.Errorf("failed to register get-profiles service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "update-avatar", json.Unmarshal, json.Marshal, m.handleUpdateAvatar,
	); err != nil {
		return fmt.Errorf("failed to register update-avatar service: %w", err)
	}

	log.Printf("[auth] Registered services: register, login, verify-token, get-profile, get-profiles, update-avatar")
	return nil
}

// Domain failures travel back as faults, not handler errors, so the
// caller keeps the reason code.

func (m *AuthModule) handleRegister(ctx context.Context, req RegisterRequest, _ *mono.Msg) (SessionResponse, error) {
	session, err := m.service.Register(ctx, req.Username, req.Password)
	if err != nil {
		return SessionResponse{Fault: apperror.ToFault(err)}, nil
	}
	return toSessionResponse(session), nil
}

func (m *AuthModule) handleLogin(ctx context.Context, req LoginRequest, _ *mono.Msg) (SessionResponse, error) {
	session, err := m.service.Login(ctx, req.Username, req.Password)
	if err != nil {
		return SessionResponse{Fault: apperror.ToFault(err)}, nil
	}
	return toSessionResponse(session), nil
}

func (m *AuthModule) handleVerifyToken(ctx context.Context, req VerifyTokenRequest, _ *mono.Msg) (VerifyTokenResponse, error) {
	claims, err := m.service.VerifyToken(ctx, req.Token)
	if err != nil {
		return VerifyTokenResponse{Fault: apperror.ToFault(err)}, nil
	}
	return VerifyTokenResponse{UserID: claims.UserID, Username: claims.Username}, nil
}

func (m *AuthModule) handleGetProfile(ctx context.Context, req GetProfileRequest, _ *mono.Msg) (GetProfileResponse, error) {
	profile, err := m.service.GetProfile(ctx, req.UserID)
	if err != nil {
		return GetProfileResponse{Fault: apperror.ToFault(err)}, nil
	}
	return GetProfileResponse{Profile: profile}, nil
}

func (m *AuthModule) handleGetProfiles(ctx context.Context, req GetProfilesRequest, _ *mono.Msg) (GetProfilesResponse, error) {
	profiles, err := m.service.GetProfiles(ctx, req.UserIDs)
	if err != nil {
		return GetProfilesResponse{Fault: apperror.ToFault(err)}, nil
	}
	return GetProfilesResponse{Profiles: profiles}, nil
}

func (m *AuthModule) handleUpdateAvatar(ctx context.Context, req UpdateAvatarRequest, _ *mono.Msg) (UpdateAvatarResponse, error) {
	previous, err := m.service.UpdateAvatar(ctx, req.UserID, req.AvatarURL)
	if err != nil {
		return UpdateAvatarResponse{Fault: apperror.ToFault(err)}, nil
	}
	return UpdateAvatarResponse{PreviousURL: previous}, nil
}

func toSessionResponse(s *Session) SessionResponse {
	return SessionResponse{
		User:      toUserResponse(s.User),
		Token:     s.Token,
		ExpiresIn: s.ExpiresIn,
	}
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/example/chat-app/domain/apperror"
	domain "github.com/example/chat-app/domain/user"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// MaxUsernameLength bounds usernames.
const MaxUsernameLength = 50

// AuthService handles authentication business logic.
type AuthService struct {
	repo    *UserRepository
	hasher  *PasswordHasher
	jwt     *JWTManager
	cache   ProfileCache
	sfGroup singleflight.Group
}

// NewAuthService creates a new AuthService. cache may be nil.
func NewAuthService(repo *UserRepository, hasher *PasswordHasher, jwt *JWTManager, cache ProfileCache) *AuthService {
	return &AuthService{
		repo:   repo,
		hasher: hasher,
		jwt:    jwt,
		cache:  cache,
	}
}

// Session is a user together with a freshly issued token.
type Session struct {
	User      *domain.User
	Token     string
	ExpiresIn int64
}

// Register creates a new user account and signs it in.
func (s *AuthService) Register(_ context.Context, username, password string) (*Session, error) {
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	exists, err := s.repo.UsernameExists(username)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindPersistence, apperror.CodePersistenceFailed, "Failed to check username", err)
	}
	if exists {
		return nil, apperror.New(apperror.KindConflict, apperror.CodeUserExists, "User already exists")
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &domain.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(user); err != nil {
		if errors.Is(err, ErrUserExists) {
			return nil, apperror.New(apperror.KindConflict, apperror.CodeUserExists, "User already exists")
		}
		return nil, apperror.Wrap(apperror.KindPersistence, apperror.CodePersistenceFailed, "Failed to create user", err)
	}

	return s.newSession(user)
}

// Login authenticates a user and returns a session token.
func (s *AuthService) Login(_ context.Context, username, password string) (*Session, error) {
	user, err := s.repo.FindByUsername(username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, errInvalidCredentials()
		}
		return nil, apperror.Wrap(apperror.KindPersistence, apperror.CodePersistenceFailed, "Failed to find user", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, errInvalidCredentials()
	}

	return s.newSession(user)
}

// VerifyToken validates a session token and returns its claims.
func (s *AuthService) VerifyToken(_ context.Context, token string) (*domain.Claims, error) {
	if token == "" {
		return nil, apperror.New(apperror.KindAuthFailure, apperror.CodeMissingToken, "No token provided")
	}

	claims, err := s.jwt.ValidateToken(token)
	if err != nil {
		if errors.Is(err, ErrExpiredToken) {
			return nil, apperror.New(apperror.KindAuthFailure, apperror.CodeExpiredToken, "Token expired")
		}
		return nil, apperror.New(apperror.KindAuthFailure, apperror.CodeInvalidToken, "Token invalid")
	}

	return &domain.Claims{
		UserID:   claims.UserID,
		Username: claims.Username,
	}, nil
}

// GetProfile returns the display profile of a user (cache-aside).
// Uses singleflight to collapse concurrent misses for the same user.
func (s *AuthService) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	if s.cache != nil {
		cached, found, err := s.cache.Get(ctx, userID)
		if err != nil {
			log.Printf("[auth] Cache error for user %s: %v", userID, err)
		}
		if found {
			return cached, nil
		}
	}

	val, err, _ := s.sfGroup.Do("profile:"+userID, func() (any, error) {
		return s.repo.FindByID(userID)
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperror.New(apperror.KindNotFound, apperror.CodeUserNotFound, "User not found")
		}
		return nil, apperror.Wrap(apperror.KindPersistence, apperror.CodePersistenceFailed, "Failed to load user", err)
	}

	user, ok := val.(*domain.User)
	if !ok || user == nil {
		return nil, apperror.New(apperror.KindNotFound, apperror.CodeUserNotFound, "User not found")
	}

	profile := user.Profile()
	s.cacheProfile(ctx, profile)
	return &profile, nil
}

// GetProfiles resolves many users at once. Unknown ids are omitted.
func (s *AuthService) GetProfiles(ctx context.Context, userIDs []string) ([]domain.Profile, error) {
	profiles := make([]domain.Profile, 0, len(userIDs))
	seen := make(map[string]bool, len(userIDs))
	var missing []string

	for _, id := range userIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		if s.cache != nil {
			cached, found, err := s.cache.Get(ctx, id)
			if err != nil {
				log.Printf("[auth] Cache error for user %s: %v", id, err)
			}
			if found {
				profiles = append(profiles, *cached)
				continue
			}
		}
		missing = append(missing, id)
	}

	if len(missing) == 0 {
		return profiles, nil
	}

	users, err := s.repo.FindByIDs(missing)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindPersistence, apperror.CodePersistenceFailed, "Failed to load users", err)
	}
	for i := range users {
		profile := users[i].Profile()
		s.cacheProfile(ctx, profile)
		profiles = append(profiles, profile)
	}
	return profiles, nil
}

// UpdateAvatar replaces the avatar of a user and returns the previous one.
func (s *AuthService) UpdateAvatar(ctx context.Context, userID, avatarURL string) (*string, error) {
	previous, err := s.repo.UpdateAvatar(userID, avatarURL)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperror.New(apperror.KindNotFound, apperror.CodeUserNotFound, "User not found")
		}
		return nil, apperror.Wrap(apperror.KindPersistence, apperror.CodePersistenceFailed, "Failed to update avatar", err)
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, userID); err != nil {
			log.Printf("[auth] Warning: failed to invalidate profile %s: %v", userID, err)
		}
	}
	return previous, nil
}

func (s *AuthService) cacheProfile(ctx context.Context, profile domain.Profile) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, profile); err != nil {
		log.Printf("[auth] Warning: failed to cache profile %s: %v", profile.ID, err)
	}
}

func (s *AuthService) newSession(user *domain.User) (*Session, error) {
	token, err := s.jwt.GenerateToken(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &Session{
		User:      user,
		Token:     token,
		ExpiresIn: s.jwt.TokenDuration(),
	}, nil
}

func errInvalidCredentials() error {
	return apperror.New(apperror.KindAuthFailure, apperror.CodeInvalidCredentials, "Invalid credentials")
}

func validateUsername(username string) error {
	switch {
	case username == "":
		return apperror.New(apperror.KindValidation, apperror.CodeInvalidUsername, "Username is required")
	case strings.TrimSpace(username) != username:
		return apperror.New(apperror.KindValidation, apperror.CodeInvalidUsername, "Username must not start or end with spaces")
	case !utf8.ValidString(username):
		return apperror.New(apperror.KindValidation, apperror.CodeInvalidUsername, "Username contains invalid characters")
	case utf8.RuneCountInString(username) > MaxUsernameLength:
		return apperror.New(apperror.KindValidation, apperror.CodeInvalidUsername, "Username exceeds maximum length")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return apperror.New(apperror.KindValidation, apperror.CodeInvalidPassword, "Password must be at least 8 characters")
	}
	if len(password) > MaxPasswordLength {
		return apperror.New(apperror.KindValidation, apperror.CodeInvalidPassword, "Password must be at most 72 characters")
	}
	return nil
}

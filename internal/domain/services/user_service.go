package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/veylhq/veyl/internal/auth"
	"github.com/veylhq/veyl/internal/domain/entities"
	"github.com/veylhq/veyl/internal/domain/repositories"
	"github.com/veylhq/veyl/internal/pkg/metrics"
)

var (
	// ErrInvalidCredentials is returned on a failed login
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrEmailTaken is returned when registering an email that is in use
	ErrEmailTaken = errors.New("email already registered")
)

// UserService provides local registration, login, and profile management
type UserService struct {
	userRepo   repositories.UserRepository
	jwtManager *auth.JWTManager
	log        *slog.Logger
}

// NewUserService creates a new user service
func NewUserService(userRepo repositories.UserRepository, jwtManager *auth.JWTManager) *UserService {
	return &UserService{
		userRepo:   userRepo,
		jwtManager: jwtManager,
		log:        slog.Default().With(slog.String("service", "user")),
	}
}

// SessionResult bundles a user with a freshly minted session token
type SessionResult struct {
	User      *entities.User
	Token     string
	ExpiresAt time.Time
}

// Register creates a local user with a password and mints a session
func (s *UserService) Register(ctx context.Context, email, name, password string) (*SessionResult, error) {
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	hashStr := string(passwordHash)

	user := &entities.User{
		Email:        email,
		DisplayName:  name,
		PasswordHash: &hashStr,
		Role:         entities.RoleUser,
		IsActive:     true,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	metrics.UsersCreated.WithLabelValues("local").Inc()
	s.log.Info("registered user", slog.String("user_id", user.ID))

	return s.mintSession(user)
}

// Login verifies credentials and mints a session
func (s *UserService) Login(ctx context.Context, email, password string) (*SessionResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.IsActive || !user.VerifyPassword(password) {
		return nil, ErrInvalidCredentials
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, time.Now()); err != nil {
		s.log.Warn("failed to update last login", slog.String("error", err.Error()))
	}

	return s.mintSession(user)
}

func (s *UserService) mintSession(user *entities.User) (*SessionResult, error) {
	token, expiresAt, err := s.jwtManager.GenerateToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("failed to mint session token: %w", err)
	}
	return &SessionResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// GetProfile returns a user's profile
func (s *UserService) GetProfile(ctx context.Context, userID string) (*entities.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// ProfileUpdate carries the caller-settable profile fields; nil means
// leave unchanged.
type ProfileUpdate struct {
	DisplayName *string
	AvatarURL   *string
	Timezone    *string
}

// UpdateProfile updates the mutable profile fields. Email and role are not
// touched here.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*entities.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if update.DisplayName != nil && *update.DisplayName != "" {
		user.DisplayName = *update.DisplayName
	}
	if update.AvatarURL != nil {
		user.AvatarURL = update.AvatarURL
	}
	if update.Timezone != nil {
		user.Timezone = update.Timezone
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// CreateAdmin provisions an admin user with a password. Used by the server's
// user-create command.
func (s *UserService) CreateAdmin(ctx context.Context, email, name, password string) (*entities.User, error) {
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	hashStr := string(passwordHash)

	user := &entities.User{
		Email:        email,
		DisplayName:  name,
		PasswordHash: &hashStr,
		Role:         entities.RoleAdmin,
		IsActive:     true,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create admin user: %w", err)
	}

	metrics.UsersCreated.WithLabelValues("local").Inc()
	return user, nil
}

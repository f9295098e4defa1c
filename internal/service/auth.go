package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/saturnino-fabrica-de-software/celebmatch/internal/audit"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/domain"
)

const (
	MinPasswordLength = 8
	// bcrypt ignores input past 72 bytes
	MaxPasswordLength = 72
)

// UserRepositoryInterface defines user persistence used by AuthService
type UserRepositoryInterface interface {
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// TokenIssuer signs access tokens for users
type TokenIssuer interface {
	Generate(user *domain.User) (string, time.Time, error)
}

// AuthResult is returned by a successful login
type AuthResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *domain.User `json:"user"`
}

type AuthService struct {
	users       UserRepositoryInterface
	tokens      TokenIssuer
	adminEmails map[string]bool
	cost        int
	audit       audit.Logger
	logger      *slog.Logger
}

func NewAuthService(users UserRepositoryInterface, tokens TokenIssuer, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		users:       users,
		tokens:      tokens,
		adminEmails: map[string]bool{},
		cost:        bcrypt.DefaultCost,
		audit:       &audit.NoOpLogger{},
		logger:      logger,
	}
}

// WithAdminEmails grants the admin role to these addresses on registration
func (s *AuthService) WithAdminEmails(emails []string) *AuthService {
	for _, e := range emails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			s.adminEmails[e] = true
		}
	}
	return s
}

func (s *AuthService) WithBcryptCost(cost int) *AuthService {
	s.cost = cost
	return s
}

func (s *AuthService) WithAudit(logger audit.Logger) *AuthService {
	if logger != nil {
		s.audit = logger
	}
	return s
}

// Register creates an account and returns a token for it
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*AuthResult, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return nil, domain.ErrValidationFailed.WithError(errors.New("invalid email address"))
	}
	if len(password) < MinPasswordLength || len(password) > MaxPasswordLength {
		return nil, domain.ErrValidationFailed.WithError(
			fmt.Errorf("password must be between %d and %d characters", MinPasswordLength, MaxPasswordLength),
		)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Email:        strings.ToLower(addr.Address),
		Name:         strings.TrimSpace(name),
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
	}
	if s.adminEmails[user.Email] {
		user.Role = domain.RoleAdmin
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", slog.String("user_id", user.ID.String()), slog.String("role", user.Role))
	s.record(ctx, audit.Event{
		EventType: audit.EventAccountCreated,
		UserID:    &user.ID,
		Success:   true,
		Metadata:  map[string]string{"role": user.Role},
	})

	return s.issue(user)
}

// Login checks credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.loginFailed(ctx, email, nil)
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.loginFailed(ctx, email, &user.ID)
		return nil, domain.ErrInvalidCredentials
	}

	s.record(ctx, audit.Event{EventType: audit.EventLoginSucceeded, UserID: &user.ID, Success: true})
	return s.issue(user)
}

func (s *AuthService) loginFailed(ctx context.Context, email string, userID *uuid.UUID) {
	s.record(ctx, audit.Event{
		EventType: audit.EventLoginFailed,
		UserID:    userID,
		Subject:   strings.ToLower(strings.TrimSpace(email)),
		Error:     domain.ErrInvalidCredentials.Message,
	})
}

func (s *AuthService) record(ctx context.Context, event audit.Event) {
	if err := s.audit.Log(ctx, event); err != nil {
		s.logger.Warn("audit event dropped", slog.String("event_type", string(event.EventType)), slog.Any("error", err))
	}
}

// Me returns the authenticated user's profile
func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *AuthService) issue(user *domain.User) (*AuthResult, error) {
	token, expiresAt, err := s.tokens.Generate(user)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &AuthResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

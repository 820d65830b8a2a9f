// Package service contains the business logic layer.
//
// Services orchestrate interactions between stores, external providers,
// and domain logic. They are responsible for:
// - Input validation
// - Business rule enforcement
// - Error translation (storage and provider errors -> domain errors)
package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/DukeRupert/resumezen/internal/domain"
	"github.com/DukeRupert/resumezen/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// =============================================================================
// Configuration Constants
// =============================================================================

const (
	// BcryptCost is the cost factor for bcrypt password hashing.
	// It is deliberately not configurable at runtime.
	BcryptCost = 12

	// SessionTokenBytes is the number of random bytes for session tokens.
	// The token is hex-encoded to 64 characters for transmission.
	SessionTokenBytes = 32

	// DefaultSessionDuration is how long a session remains valid when not configured.
	DefaultSessionDuration = 24 * time.Hour

	// MinSessionDuration and MaxSessionDuration bound the configured duration.
	MinSessionDuration = 15 * time.Minute
	MaxSessionDuration = 30 * 24 * time.Hour

	// MinPasswordLength is the minimum password length.
	MinPasswordLength = 8

	// MaxPasswordLength is bcrypt's input limit.
	MaxPasswordLength = 72
)

// Generic messages that do not reveal whether an account exists.
const (
	ErrMsgInvalidCredentials = "Invalid email or password"
	ErrMsgInvalidSession     = "Please sign in again"
)

// commonPasswords are rejected even when they pass the other rules.
var commonPasswords = map[string]bool{
	"password1":   true,
	"password12":  true,
	"password123": true,
	"qwerty123":   true,
	"letmein1":    true,
	"welcome1":    true,
	"welcome123":  true,
	"admin123":    true,
	"abc12345":    true,
	"iloveyou1":   true,
	"monkey123":   true,
	"dragon123":   true,
	"passw0rd":    true,
	"p@ssw0rd":    true,
	"trustno1":    true,
	"resume123":   true,
}

// =============================================================================
// Interface Definition
// =============================================================================

// UserService defines the interface for account and session operations.
type UserService interface {
	// Register creates a new user account.
	// Returns domain.ECONFLICT if email already exists.
	// Returns domain.EINVALID for validation errors.
	Register(ctx context.Context, params domain.RegisterParams) (*domain.User, error)

	// Login authenticates a user and creates a new session.
	// Returns domain.EUNAUTHORIZED for invalid credentials.
	Login(ctx context.Context, email, password string) (*domain.LoginResult, error)

	// Logout invalidates a session by its raw token. Idempotent.
	Logout(ctx context.Context, token string) error

	// GetByID retrieves a user by their ID.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetBySessionToken validates a session token and returns its user.
	// Returns domain.EUNAUTHORIZED if token is invalid or expired.
	GetBySessionToken(ctx context.Context, token string) (*domain.User, error)

	// DeleteExpiredSessions removes expired sessions and returns how many.
	DeleteExpiredSessions(ctx context.Context) (int64, error)

	// UpdateStripeCustomer saves the Stripe customer ID for a user.
	UpdateStripeCustomer(ctx context.Context, userID uuid.UUID, stripeCustomerID string) error

	// GetByStripeCustomerID retrieves a user by their Stripe customer ID.
	GetByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*domain.User, error)

	// SessionDuration returns how long new sessions last.
	SessionDuration() time.Duration
}

// UserServiceConfig configures the user service.
type UserServiceConfig struct {
	SessionDuration time.Duration
}

// =============================================================================
// Implementation
// =============================================================================

type userService struct {
	queries         *repository.Queries
	logger          *slog.Logger
	sessionDuration time.Duration
}

// NewUserService creates a new UserService instance.
func NewUserService(queries *repository.Queries, logger *slog.Logger, cfg UserServiceConfig) UserService {
	return &userService{
		queries:         queries,
		logger:          logger,
		sessionDuration: normalizeSessionDuration(cfg.SessionDuration),
	}
}

func (s *userService) SessionDuration() time.Duration {
	return s.sessionDuration
}

// Register creates a new user account.
//
// The password is hashed even when the email is taken so that response
// timing does not reveal registered addresses.
func (s *userService) Register(ctx context.Context, params domain.RegisterParams) (*domain.User, error) {
	const op = "UserService.Register"

	params.Email = strings.ToLower(strings.TrimSpace(params.Email))
	params.Name = strings.TrimSpace(params.Name)

	verr := &domain.ValidationError{Op: op, Fields: map[string]string{}}
	if err := validateEmail(params.Email); err != nil {
		verr.Fields["email"] = domain.ErrorMessage(err)
	}
	if params.Name == "" {
		verr.Fields["name"] = "Name is required"
	}
	if err := validatePassword(params.Password); err != nil {
		verr.Fields["password"] = domain.ErrorMessage(err)
	}
	if len(verr.Fields) > 0 {
		return nil, verr
	}

	_, err := s.queries.GetUserByEmail(ctx, params.Email)
	if err == nil {
		_, _ = bcrypt.GenerateFromPassword([]byte(params.Password), BcryptCost)
		return nil, domain.Conflict(op, "Email already registered")
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Internal(err, op, "Failed to check email availability")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(params.Password), BcryptCost)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to hash password")
	}

	repoUser, err := s.queries.CreateUser(ctx, repository.CreateUserParams{
		Email:        params.Email,
		PasswordHash: string(passwordHash),
		Name:         params.Name,
	})
	if err != nil {
		// Unique constraint violation from a concurrent registration
		if strings.Contains(err.Error(), "unique") || strings.Contains(err.Error(), "duplicate") {
			return nil, domain.Conflict(op, "Email already registered")
		}
		return nil, domain.Internal(err, op, "Failed to create user")
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""

	s.logger.Info("user registered", "user_id", user.ID)
	return user, nil
}

// Login authenticates a user and creates a new session.
//
// Only the SHA-256 hash of the session token is stored; the raw token is
// returned once.
func (s *userService) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	const op = "UserService.Login"

	email = strings.ToLower(strings.TrimSpace(email))

	repoUser, err := s.queries.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Compare against a dummy hash to keep timing constant
			dummyHash := "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			return nil, domain.Unauthorized(op, ErrMsgInvalidCredentials)
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(repoUser.PasswordHash), []byte(password)); err != nil {
		return nil, domain.Unauthorized(op, ErrMsgInvalidCredentials)
	}

	token, err := generateSessionToken()
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to generate session token")
	}

	_, err = s.queries.CreateSession(ctx, repository.CreateSessionParams{
		UserID:    repoUser.ID,
		TokenHash: hashSessionToken(token),
		ExpiresAt: time.Now().Add(s.sessionDuration),
	})
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to create session")
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""

	s.logger.Info("user logged in", "user_id", user.ID)

	return &domain.LoginResult{
		User:  user,
		Token: token,
	}, nil
}

// Logout invalidates a session.
func (s *userService) Logout(ctx context.Context, token string) error {
	if !validTokenFormat(token) {
		return nil
	}

	if err := s.queries.DeleteSession(ctx, hashSessionToken(token)); err != nil && !errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn("failed to delete session", "error", err)
	}

	s.logger.Debug("session invalidated")
	return nil
}

// GetByID retrieves a user by their ID.
func (s *userService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "UserService.GetByID"

	repoUser, err := s.queries.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "user", id.String())
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""
	return user, nil
}

// GetBySessionToken retrieves a user by their session token. The session
// query filters out expired rows.
func (s *userService) GetBySessionToken(ctx context.Context, token string) (*domain.User, error) {
	const op = "UserService.GetBySessionToken"

	if !validTokenFormat(token) {
		return nil, domain.Unauthorized(op, ErrMsgInvalidSession)
	}

	session, err := s.queries.GetSessionByTokenHash(ctx, hashSessionToken(token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Unauthorized(op, ErrMsgInvalidSession)
		}
		return nil, domain.Internal(err, op, "Failed to retrieve session")
	}

	repoUser, err := s.queries.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Unauthorized(op, ErrMsgInvalidSession)
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""
	return user, nil
}

// DeleteExpiredSessions removes all expired sessions.
func (s *userService) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	const op = "UserService.DeleteExpiredSessions"

	n, err := s.queries.DeleteExpiredSessions(ctx)
	if err != nil {
		return 0, domain.Internal(err, op, "Failed to delete expired sessions")
	}

	s.logger.Info("expired sessions cleaned up", "count", n)
	return n, nil
}

// UpdateStripeCustomer saves the Stripe customer ID for a user.
func (s *userService) UpdateStripeCustomer(ctx context.Context, userID uuid.UUID, stripeCustomerID string) error {
	const op = "UserService.UpdateStripeCustomer"

	err := s.queries.UpdateUserStripeCustomer(ctx, repository.UpdateUserStripeCustomerParams{
		ID:               userID,
		StripeCustomerID: domain.ToNullString(stripeCustomerID),
	})
	if err != nil {
		return domain.Internal(err, op, "Failed to save billing customer")
	}
	return nil
}

// GetByStripeCustomerID retrieves a user by their Stripe customer ID.
func (s *userService) GetByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*domain.User, error) {
	const op = "UserService.GetByStripeCustomerID"

	repoUser, err := s.queries.GetUserByStripeCustomerID(ctx, domain.ToNullString(stripeCustomerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "user", stripeCustomerID)
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""
	return user, nil
}

// =============================================================================
// Helper Functions
// =============================================================================

// normalizeSessionDuration applies the default and clamps to the allowed range.
func normalizeSessionDuration(d time.Duration) time.Duration {
	switch {
	case d == 0:
		return DefaultSessionDuration
	case d < MinSessionDuration:
		return MinSessionDuration
	case d > MaxSessionDuration:
		return MaxSessionDuration
	default:
		return d
	}
}

// generateSessionToken returns 32 random bytes, hex-encoded.
func generateSessionToken() (string, error) {
	b := make([]byte, SessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// hashSessionToken returns the hex SHA-256 of a session token. Tokens are
// high-entropy, so a fast hash is sufficient.
func hashSessionToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func validTokenFormat(token string) bool {
	if len(token) != SessionTokenBytes*2 {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}

func repoUserToDomain(u repository.User) *domain.User {
	return &domain.User{
		ID:               u.ID,
		Email:            u.Email,
		PasswordHash:     u.PasswordHash,
		Name:             u.Name,
		StripeCustomerID: domain.NullStringValue(u.StripeCustomerID),
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}

// validateEmail validates an email address format.
func validateEmail(email string) error {
	if email == "" {
		return domain.Invalid("", "Email is required")
	}
	if len(email) > 254 {
		return domain.Invalid("", "Email must be 254 characters or less")
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return domain.Invalid("", "Enter a valid email address")
	}

	at := strings.LastIndex(email, "@")
	if !strings.Contains(email[at+1:], ".") {
		return domain.Invalid("", "Email domain must contain a dot")
	}
	if strings.Contains(email, "..") {
		return domain.Invalid("", "Email cannot contain consecutive dots")
	}
	return nil
}

// validatePassword validates password strength requirements.
func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return domain.Invalid("", "Password must be at least 8 characters")
	}
	if len(password) > MaxPasswordLength {
		return domain.Invalid("", "Password must be 72 characters or less")
	}

	var hasLetter, hasNumber bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasNumber = true
		}
	}
	if !hasLetter {
		return domain.Invalid("", "Password must contain at least one letter")
	}
	if !hasNumber {
		return domain.Invalid("", "Password must contain at least one number")
	}
	if commonPasswords[strings.ToLower(password)] {
		return domain.Invalid("", "This password is too common. Choose something less predictable")
	}
	return nil
}

package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"

	"github.com/vidyasagar-vadla/vidyasagar-vadla-smart-feedback-analysis-system/internal/models"
)

type AuthStore interface {
	// FindUserByEmail returns nil, nil when no account uses the email.
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	AddUser(ctx context.Context, u *models.User) error
}

type TokenSigner func(uid string, role models.Role, username string, ttl time.Duration) (string, error)

type AuthService struct {
	store     AuthStore
	clock     clockwork.Clock
	idGen     func(prefix string, n int) string
	signToken TokenSigner
	tokenTTL  time.Duration
	cost      int
}

type AuthResult struct {
	Token    string      `json:"token"`
	Role     models.Role `json:"role"`
	Username string      `json:"username"`
	UserID   string      `json:"id"`
}

func NewAuthService(store AuthStore, signer TokenSigner, tokenTTL time.Duration) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 7 * 24 * time.Hour
	}
	return &AuthService{
		store:     store,
		clock:     clockwork.NewRealClock(),
		idGen:     func(prefix string, n int) string { return prefix + shortID(n) },
		signToken: signer,
		tokenTTL:  tokenTTL,
		cost:      bcrypt.DefaultCost,
	}
}

func shortID(n int) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if n > 0 && n < len(id) {
		return id[:n]
	}
	return id
}

// Register creates a regular user account and returns its id.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (string, error) {
	u, err := s.createUser(ctx, username, email, password, models.RoleUser)
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

// CreateAdmin creates an administrator account.
func (s *AuthService) CreateAdmin(ctx context.Context, username, email, password string) (*models.User, error) {
	return s.createUser(ctx, username, email, password, models.RoleAdmin)
}

func (s *AuthService) createUser(ctx context.Context, username, email, password string, role models.Role) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || email == "" || password == "" {
		return nil, NewInvalidError("Missing fields")
	}
	existing, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, NewInternalError("Server error", err)
	}
	if existing != nil {
		return nil, NewConflictError("Email already in use")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, NewInternalError("Server error", err)
	}
	u := &models.User{
		ID:        s.idGen("u", 10),
		Username:  username,
		Email:     email,
		PassHash:  hash,
		Role:      role,
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := s.store.AddUser(ctx, u); err != nil {
		return nil, NewInternalError("Server error", err)
	}
	slog.InfoContext(ctx, "User registered", "user_id", u.ID, "role", role)
	return u, nil
}

// Login verifies credentials and issues a signed token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, NewInvalidError("Missing fields")
	}
	u, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, NewInternalError("Server error", err)
	}
	if u == nil {
		return nil, NewNotFoundError("User not found")
	}
	if err := bcrypt.CompareHashAndPassword(u.PassHash, []byte(password)); err != nil {
		return nil, NewUnauthorizedError("Invalid credentials")
	}
	if s.signToken == nil {
		return nil, NewInternalError("Server error", nil)
	}
	token, err := s.signToken(u.ID, u.Role, u.Username, s.tokenTTL)
	if err != nil {
		return nil, NewInternalError("Server error", err)
	}
	return &AuthResult{Token: token, Role: u.Role, Username: u.Username, UserID: u.ID}, nil
}

func (s *AuthService) TokenTTL() time.Duration {
	return s.tokenTTL
}

// Package services – AuthService
//
// AuthService registers accounts and authenticates credentials. Passwords are
// hashed with bcrypt and successful calls return a signed session token.
package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/go-todo-backend/internal/apperr"
	"github.com/tbourn/go-todo-backend/internal/auth"
	"github.com/tbourn/go-todo-backend/internal/domain"
	"github.com/tbourn/go-todo-backend/internal/repo"
)

// UserRepo defines the repository contract required by AuthService.
type UserRepo interface {
	CreateUser(ctx context.Context, db *gorm.DB, email, passwordHash string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error)
	UserExists(ctx context.Context, db *gorm.DB, email string) (bool, error)
	CountUsers(ctx context.Context, db *gorm.DB) (int64, error)
}

// TokenIssuer signs session tokens. *auth.Manager satisfies it.
type TokenIssuer interface {
	Issue(userID uint, email string) (string, time.Time, error)
}

// AuthResult is returned by Signup and Login.
type AuthResult struct {
	Token     string
	Email     string
	UserID    uint
	ExpiresAt time.Time
}

// AuthService provides signup, login and password hashing.
type AuthService struct {
	DB     *gorm.DB
	Repo   UserRepo
	Tokens TokenIssuer

	// Hash and Verify default to bcrypt; tests may swap them for speed.
	Hash   func(plain string) (string, error)
	Verify func(hash, plain string) bool

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService constructs an AuthService using bcrypt hashing.
func NewAuthService(db *gorm.DB, r UserRepo, tokens TokenIssuer) *AuthService {
	return &AuthService{
		DB:     db,
		Repo:   r,
		Tokens: tokens,
		Hash:   auth.HashPassword,
		Verify: auth.VerifyPassword,
	}
}

// HashPassword hashes plain with the service's password hasher. It is used by
// signup and by the development seeder.
func (s *AuthService) HashPassword(plain string) (string, error) {
	return s.Hash(plain)
}

// Signup creates an account for email and returns a session token. An
// existing account with exactly the same email yields a Conflict.
func (s *AuthService) Signup(ctx context.Context, email, password string) (*AuthResult, error) {
	tr := otel.Tracer("services/AuthService")
	ctx, span := tr.Start(ctx, "Signup")
	defer span.End()

	exists, err := s.Repo.UserExists(ctx, s.DB, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.Conflict(MsgEmailTaken)
	}

	hash, err := s.Hash(password)
	if err != nil {
		return nil, err
	}
	// A concurrent signup that passes the check above fails on the unique
	// index and is reported as a persistence error.
	u, err := s.Repo.CreateUser(ctx, s.DB, email, hash)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("user.id", int64(u.ID)))
	return s.issue(u)
}

// Login verifies credentials and returns a session token. Unknown emails and
// wrong passwords fail with the same Unauthorized error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	tr := otel.Tracer("services/AuthService")
	ctx, span := tr.Start(ctx, "Login")
	defer span.End()

	u, err := s.Repo.GetUserByEmail(ctx, s.DB, email)
	if errors.Is(err, repo.ErrNotFound) {
		// Spend the same hashing work as a real check.
		s.Verify(s.placeholderHash(), password)
		return nil, apperr.Unauthorized(MsgBadCredentials)
	}
	if err != nil {
		return nil, err
	}
	if !s.Verify(u.PasswordHash, password) {
		return nil, apperr.Unauthorized(MsgBadCredentials)
	}
	span.SetAttributes(attribute.Int64("user.id", int64(u.ID)))
	return s.issue(u)
}

func (s *AuthService) issue(u *domain.User) (*AuthResult, error) {
	tok, exp, err := s.Tokens.Issue(u.ID, u.Email)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: tok, Email: u.Email, UserID: u.ID, ExpiresAt: exp}, nil
}

func (s *AuthService) placeholderHash() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.Hash("placeholder-password")
	})
	return s.dummyHash
}

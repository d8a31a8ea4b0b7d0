package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-todo-backend/internal/apperr"
	"github.com/tbourn/go-todo-backend/internal/auth"
	"github.com/tbourn/go-todo-backend/internal/config"
	"github.com/tbourn/go-todo-backend/internal/domain"
	"github.com/tbourn/go-todo-backend/internal/repo"
)

// ----- Fake repo -----

type fakeUserRepo struct {
	users     map[string]*domain.User
	nextID    uint
	existsErr error
	createErr error
	getErr    error
}

func newFakeUserRepo() *fakeUserRepo { return &fakeUserRepo{users: map[string]*domain.User{}} }

func (r *fakeUserRepo) CreateUser(_ context.Context, _ *gorm.DB, email, hash string) (*domain.User, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	r.nextID++
	u := &domain.User{ID: r.nextID, Email: email, PasswordHash: hash, CreatedAt: time.Now()}
	r.users[email] = u
	return u, nil
}

func (r *fakeUserRepo) GetUserByEmail(_ context.Context, _ *gorm.DB, email string) (*domain.User, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	if u, ok := r.users[email]; ok {
		return u, nil
	}
	return nil, repo.ErrNotFound
}

func (r *fakeUserRepo) UserExists(_ context.Context, _ *gorm.DB, email string) (bool, error) {
	if r.existsErr != nil {
		return false, r.existsErr
	}
	_, ok := r.users[email]
	return ok, nil
}

func (r *fakeUserRepo) CountUsers(context.Context, *gorm.DB) (int64, error) {
	return int64(len(r.users)), nil
}

func newFakeAuth() (*AuthService, *fakeUserRepo, *fakeIssuer) {
	r := newFakeUserRepo()
	iss := &fakeIssuer{}
	s := NewAuthService(nil, r, iss)
	s.Hash, s.Verify = fastHash, fastVerify
	return s, r, iss
}

func TestSignup_Success(t *testing.T) {
	s, r, iss := newFakeAuth()
	res, err := s.Signup(context.Background(), "u@example.com", "Secret123")
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if res.Token == "" || res.Email != "u@example.com" || res.UserID == 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if iss.calls != 1 {
		t.Fatalf("expected one token issued, got %d", iss.calls)
	}
	if r.users["u@example.com"].PasswordHash == "Secret123" {
		t.Fatalf("password stored in plain text")
	}
}

func TestSignup_DuplicateEmail_Conflict(t *testing.T) {
	s, _, _ := newFakeAuth()
	ctx := context.Background()
	if _, err := s.Signup(ctx, "u@example.com", "Secret123"); err != nil {
		t.Fatalf("first signup: %v", err)
	}
	_, err := s.Signup(ctx, "u@example.com", "Other123")
	ae, ok := apperr.As(err)
	if !ok || ae.Kind != apperr.KindConflict {
		t.Fatalf("expected Conflict, got %v", err)
	}
	if !strings.Contains(ae.Message, "already exists") {
		t.Fatalf("message = %q", ae.Message)
	}
}

func TestSignup_EmailIsCaseSensitive(t *testing.T) {
	s, _, _ := newFakeAuth()
	ctx := context.Background()
	if _, err := s.Signup(ctx, "u@example.com", "Secret123"); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, err := s.Signup(ctx, "U@example.com", "Secret123"); err != nil {
		t.Fatalf("differently cased email should be a new account: %v", err)
	}
}

func TestSignup_PropagatesErrors(t *testing.T) {
	boom := errors.New("boom")

	s, r, _ := newFakeAuth()
	r.existsErr = boom
	if _, err := s.Signup(context.Background(), "a@b.c", "pw1234"); !errors.Is(err, boom) {
		t.Fatalf("exists error: got %v", err)
	}

	s, r, _ = newFakeAuth()
	r.createErr = apperr.Persistence("create user", errors.New("UNIQUE constraint failed: users.email"))
	_, err := s.Signup(context.Background(), "a@b.c", "pw1234")
	var pe *apperr.PersistenceError
	if !errors.As(err, &pe) || !apperr.IsUniqueViolation(err) {
		t.Fatalf("racing duplicate should surface as persistence unique violation, got %v", err)
	}

	s, _, iss := newFakeAuth()
	iss.err = boom
	if _, err := s.Signup(context.Background(), "a@b.c", "pw1234"); !errors.Is(err, boom) {
		t.Fatalf("issuer error: got %v", err)
	}
}

func TestLogin_SameMessageForUnknownEmailAndWrongPassword(t *testing.T) {
	s, _, _ := newFakeAuth()
	ctx := context.Background()
	if _, err := s.Signup(ctx, "u@example.com", "Secret123"); err != nil {
		t.Fatalf("signup: %v", err)
	}

	_, errWrong := s.Login(ctx, "u@example.com", "wrong")
	_, errUnknown := s.Login(ctx, "nobody@example.com", "Secret123")
	for name, err := range map[string]error{"wrong password": errWrong, "unknown email": errUnknown} {
		ae, ok := apperr.As(err)
		if !ok || ae.Kind != apperr.KindUnauthorized || ae.Message != "Invalid email or password" {
			t.Fatalf("%s: expected Unauthorized(Invalid email or password), got %v", name, err)
		}
	}

	res, err := s.Login(ctx, "u@example.com", "Secret123")
	if err != nil || res.Token == "" || res.Email != "u@example.com" {
		t.Fatalf("Login: %+v %v", res, err)
	}
}

func TestLogin_RepoErrorPropagates(t *testing.T) {
	s, r, _ := newFakeAuth()
	boom := errors.New("db down")
	r.getErr = boom
	if _, err := s.Login(context.Background(), "a@b.c", "x"); !errors.Is(err, boom) {
		t.Fatalf("expected repo error, got %v", err)
	}
}

// Full stack: real repo, bcrypt and JWT.
func TestSignup_Login_WithRealStack(t *testing.T) {
	db := newTestDB(t, true)
	mgr := auth.NewManager(config.JWTConfig{
		Secret: "0123456789abcdef0123456789abcdef", Issuer: "todo-api", Audience: "todo-app", TTL: 24 * time.Hour,
	})
	s := NewAuthService(db, realUserRepo{}, mgr)
	ctx := context.Background()

	res, err := s.Signup(ctx, "u@example.com", "Secret123")
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if parts := strings.Split(res.Token, "."); len(parts) != 3 {
		t.Fatalf("token should have 3 parts: %q", res.Token)
	}
	claims, err := mgr.Parse(res.Token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if uid, _ := claims.UserID(); uid != res.UserID || claims.Email != "u@example.com" {
		t.Fatalf("claims mismatch: %+v", claims)
	}

	stored, err := repo.GetUserByEmail(ctx, db, "u@example.com")
	if err != nil || stored.PasswordHash == "Secret123" || !auth.VerifyPassword(stored.PasswordHash, "Secret123") {
		t.Fatalf("stored hash invalid: %+v %v", stored, err)
	}

	if _, err := s.Login(ctx, "u@example.com", "Secret123"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := s.Signup(ctx, "u@example.com", "x123456"); !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("duplicate signup should conflict, got %v", err)
	}
}

func TestHashPassword_UsesConfiguredHasher(t *testing.T) {
	s, _, _ := newFakeAuth()
	h, err := s.HashPassword("pw")
	if err != nil || h != "h:pw" {
		t.Fatalf("HashPassword = %q, %v", h, err)
	}
}

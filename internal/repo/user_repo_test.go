package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-todo-backend/internal/apperr"
)

func TestCreateUser_Error_NoTable(t *testing.T) {
	db := newTestDB(t /* no migrations */)
	u, err := CreateUser(context.Background(), db, "a@example.com", "h")
	if err == nil || u != nil {
		t.Fatalf("expected error creating without table, got u=%v err=%v", u, err)
	}
	var pe *apperr.PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *apperr.PersistenceError, got %T", err)
	}
}

func TestCreateUser_Success_AndDuplicate(t *testing.T) {
	db := newSchemaDB(t)
	ctx := context.Background()

	u, err := CreateUser(ctx, db, "a@example.com", "hash")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.ID == 0 || u.Email != "a@example.com" || u.PasswordHash != "hash" || u.CreatedAt.IsZero() {
		t.Fatalf("unexpected user: %+v", u)
	}

	_, err = CreateUser(ctx, db, "a@example.com", "hash2")
	var pe *apperr.PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *apperr.PersistenceError, got %T %v", err, err)
	}
	if !apperr.IsUniqueViolation(err) {
		t.Fatalf("duplicate email should be a unique violation: %v", err)
	}
}

func TestGetUserByEmail_And_Exists(t *testing.T) {
	db := newSchemaDB(t)
	ctx := context.Background()

	if _, err := GetUserByEmail(ctx, db, "missing@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := CreateUser(ctx, db, "b@example.com", "h"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	u, err := GetUserByEmail(ctx, db, "b@example.com")
	if err != nil || u.Email != "b@example.com" {
		t.Fatalf("GetUserByEmail: u=%v err=%v", u, err)
	}

	ok, err := UserExists(ctx, db, "b@example.com")
	if err != nil || !ok {
		t.Fatalf("UserExists exact: ok=%v err=%v", ok, err)
	}
	// Case-sensitive equality.
	ok, err = UserExists(ctx, db, "B@example.com")
	if err != nil || ok {
		t.Fatalf("UserExists different case: ok=%v err=%v", ok, err)
	}

	n, err := CountUsers(ctx, db)
	if err != nil || n != 1 {
		t.Fatalf("CountUsers = %d, %v", n, err)
	}
}

func TestUserQueries_Error_NoTable(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	if _, err := GetUserByEmail(ctx, db, "x"); err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected raw DB error, got %v", err)
	}
	if _, err := UserExists(ctx, db, "x"); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := CountUsers(ctx, db); err == nil {
		t.Fatalf("expected error")
	}
}

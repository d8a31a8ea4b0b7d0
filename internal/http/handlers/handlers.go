// Package handlers provides HTTP handler implementations for the public API.
//
// Handlers are transport-thin: they bind and validate input, resolve the
// caller's identity, call an application service and serialize the result.
// They never build error bodies. Failures are attached with c.Error and the
// chain is aborted; middleware.Errors turns them into responses.
package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-todo-backend/internal/apperr"
	"github.com/tbourn/go-todo-backend/internal/domain"
	"github.com/tbourn/go-todo-backend/internal/http/middleware"
	"github.com/tbourn/go-todo-backend/internal/repo"
	"github.com/tbourn/go-todo-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// AuthService registers and authenticates accounts.
type AuthService interface {
	Signup(ctx context.Context, email, password string) (*services.AuthResult, error)
	Login(ctx context.Context, email, password string) (*services.AuthResult, error)
}

// TodoService performs per-user todo operations. Every method is scoped by
// the caller's user id.
type TodoService interface {
	List(ctx context.Context, userID uint, f repo.TodoFilter) ([]domain.Todo, error)
	Get(ctx context.Context, userID, id uint) (*domain.Todo, error)
	CreateIdempotent(ctx context.Context, userID uint, key string, in services.TodoInput) (*domain.Todo, bool, error)
	Update(ctx context.Context, userID, id uint, in services.TodoInput) (*domain.Todo, error)
	Delete(ctx context.Context, userID, id uint) error
	Stats(ctx context.Context, userID uint) (int64, *time.Time, error)
}

//
// Handler wiring
//

// Handlers groups the auth and todo endpoints.
type Handlers struct {
	authSvc AuthService
	todoSvc TodoService
}

// New constructs a Handlers instance bound to the given services.
func New(authSvc AuthService, todoSvc TodoService) *Handlers {
	return &Handlers{authSvc: authSvc, todoSvc: todoSvc}
}

// currentUser returns the id set by middleware.Authenticate. A missing id
// aborts the request as access denied.
func currentUser(c *gin.Context) (uint, bool) {
	uid, ok := middleware.UserID(c)
	if !ok {
		fail(c, apperr.ErrAccessDenied)
		return 0, false
	}
	return uid, true
}

// Package services – TodoService
//
// TodoService owns the lifecycle of to-do items. Every method takes the
// caller's user id explicitly and passes it down to the repository, which
// filters on it inside each query. A todo owned by someone else is reported
// exactly like a missing one.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// the user id and, where applicable, the todo id.
package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-todo-backend/internal/apperr"
	"github.com/tbourn/go-todo-backend/internal/domain"
	"github.com/tbourn/go-todo-backend/internal/repo"
)

// ScopeTodoCreate namespaces idempotency keys used on todo creation.
const ScopeTodoCreate = "todo:create"

// TodoRepo defines the repository contract required by TodoService.
type TodoRepo interface {
	ListTodos(ctx context.Context, db *gorm.DB, userID uint, f repo.TodoFilter) ([]domain.Todo, error)
	GetTodo(ctx context.Context, db *gorm.DB, id, userID uint) (*domain.Todo, error)
	CreateTodo(ctx context.Context, db *gorm.DB, t *domain.Todo) error
	UpdateTodoFields(ctx context.Context, db *gorm.DB, t *domain.Todo) error
	ReplaceTodoTags(ctx context.Context, db *gorm.DB, todoID uint, tags []string) error
	DeleteTodo(ctx context.Context, db *gorm.DB, id, userID uint) error
	TodosStats(ctx context.Context, db *gorm.DB, userID uint) (int64, *time.Time, error)

	GetIdempotency(ctx context.Context, db *gorm.DB, userID uint, scope, key string, now time.Time) (*domain.Idempotency, error)
	CreateIdempotency(ctx context.Context, db *gorm.DB, userID uint, scope, key string, resourceID uint, status int, ttl time.Duration) (*domain.Idempotency, error)
}

// TodoInput carries the writable fields of a todo. Tags replace the existing
// set wholesale; nil and empty both mean "no tags".
type TodoInput struct {
	Name     string
	DueDate  time.Time
	Notes    *string
	Location *string
	Tags     []string
}

// TodoService provides per-user CRUD over todos.
type TodoService struct {
	DB   *gorm.DB
	Repo TodoRepo

	// IdempotencyTTL bounds how long a create can be replayed by key.
	IdempotencyTTL time.Duration
}

// NewTodoService constructs a TodoService with a 24h replay window.
func NewTodoService(db *gorm.DB, r TodoRepo) *TodoService {
	return &TodoService{DB: db, Repo: r, IdempotencyTTL: 24 * time.Hour}
}

func startSpan(ctx context.Context, name string, userID uint, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.Int64("user.id", int64(userID)))
	return otel.Tracer("services/TodoService").Start(ctx, name, trace.WithAttributes(attrs...))
}

func todoNotFound(err error, id uint) error {
	if errors.Is(err, repo.ErrNotFound) {
		return apperr.NotFound(ResourceTodo, id)
	}
	return err
}

// List returns the caller's todos matching f, each with its tags.
func (s *TodoService) List(ctx context.Context, userID uint, f repo.TodoFilter) ([]domain.Todo, error) {
	ctx, span := startSpan(ctx, "List", userID, attribute.String("filter.tag", f.Tag))
	defer span.End()

	if err := requireUser(userID); err != nil {
		return nil, err
	}
	return s.Repo.ListTodos(ctx, s.DB, userID, f)
}

// Get returns the todo if it exists and belongs to the caller.
func (s *TodoService) Get(ctx context.Context, userID, id uint) (*domain.Todo, error) {
	ctx, span := startSpan(ctx, "Get", userID, attribute.Int64("todo.id", int64(id)))
	defer span.End()

	if err := requireUser(userID); err != nil {
		return nil, err
	}
	t, err := s.Repo.GetTodo(ctx, s.DB, id, userID)
	if err != nil {
		return nil, todoNotFound(err, id)
	}
	return t, nil
}

// Create inserts a todo owned by the caller and returns it hydrated.
func (s *TodoService) Create(ctx context.Context, userID uint, in TodoInput) (*domain.Todo, error) {
	ctx, span := startSpan(ctx, "Create", userID)
	defer span.End()

	if err := requireUser(userID); err != nil {
		return nil, err
	}
	var created *domain.Todo
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := s.create(ctx, tx, userID, in)
		created = t
		return err
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("todo.id", int64(created.ID)))
	return created, nil
}

// CreateIdempotent behaves like Create, except that a repeated call with the
// same non-empty key inside the replay window returns the todo created by the
// first call. replayed reports whether that happened.
func (s *TodoService) CreateIdempotent(ctx context.Context, userID uint, key string, in TodoInput) (t *domain.Todo, replayed bool, err error) {
	if key == "" {
		t, err = s.Create(ctx, userID, in)
		return t, false, err
	}
	ctx, span := startSpan(ctx, "CreateIdempotent", userID)
	defer span.End()

	if err := requireUser(userID); err != nil {
		return nil, false, err
	}
	if prev, ok := s.replay(ctx, userID, key); ok {
		span.SetAttributes(attribute.Bool("idempotency.replayed", true))
		return prev, true, nil
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := s.create(ctx, tx, userID, in)
		if err != nil {
			return err
		}
		if _, err := s.Repo.CreateIdempotency(ctx, tx, userID, ScopeTodoCreate, key, created.ID, http.StatusCreated, s.ttl()); err != nil {
			return err
		}
		t = created
		return nil
	})
	if errors.Is(err, repo.ErrDuplicate) {
		// A concurrent request with the same key won; serve its result.
		if prev, ok := s.replay(ctx, userID, key); ok {
			return prev, true, nil
		}
	}
	if err != nil {
		return nil, false, err
	}
	return t, false, nil
}

func (s *TodoService) replay(ctx context.Context, userID uint, key string) (*domain.Todo, bool) {
	rec, err := s.Repo.GetIdempotency(ctx, s.DB, userID, ScopeTodoCreate, key, time.Now().UTC())
	if err != nil || rec == nil {
		return nil, false
	}
	prev, err := s.Repo.GetTodo(ctx, s.DB, rec.ResourceID, userID)
	if err != nil {
		return nil, false
	}
	return prev, true
}

func (s *TodoService) ttl() time.Duration {
	if s.IdempotencyTTL > 0 {
		return s.IdempotencyTTL
	}
	return 24 * time.Hour
}

func (s *TodoService) create(ctx context.Context, tx *gorm.DB, userID uint, in TodoInput) (*domain.Todo, error) {
	t := &domain.Todo{
		UserID:   userID,
		Name:     in.Name,
		DueDate:  in.DueDate,
		Notes:    in.Notes,
		Location: in.Location,
	}
	for _, tag := range in.Tags {
		t.Tags = append(t.Tags, domain.TodoTag{Tag: tag})
	}
	if err := s.Repo.CreateTodo(ctx, tx, t); err != nil {
		return nil, err
	}
	return s.Repo.GetTodo(ctx, tx, t.ID, userID)
}

// Update overwrites every scalar field of the caller's todo and replaces its
// tag set with in.Tags. Concurrent updates resolve as last write wins.
func (s *TodoService) Update(ctx context.Context, userID, id uint, in TodoInput) (*domain.Todo, error) {
	ctx, span := startSpan(ctx, "Update", userID, attribute.Int64("todo.id", int64(id)))
	defer span.End()

	if err := requireUser(userID); err != nil {
		return nil, err
	}
	var updated *domain.Todo
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.Repo.GetTodo(ctx, tx, id, userID); err != nil {
			return todoNotFound(err, id)
		}
		t := &domain.Todo{
			ID:       id,
			UserID:   userID,
			Name:     in.Name,
			DueDate:  in.DueDate,
			Notes:    in.Notes,
			Location: in.Location,
		}
		if err := s.Repo.UpdateTodoFields(ctx, tx, t); err != nil {
			return todoNotFound(err, id)
		}
		if err := s.Repo.ReplaceTodoTags(ctx, tx, id, in.Tags); err != nil {
			return err
		}
		reloaded, err := s.Repo.GetTodo(ctx, tx, id, userID)
		if err != nil {
			return todoNotFound(err, id)
		}
		updated = reloaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the caller's todo and its tags.
func (s *TodoService) Delete(ctx context.Context, userID, id uint) error {
	ctx, span := startSpan(ctx, "Delete", userID, attribute.Int64("todo.id", int64(id)))
	defer span.End()

	if err := requireUser(userID); err != nil {
		return err
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return todoNotFound(s.Repo.DeleteTodo(ctx, tx, id, userID), id)
	})
}

// Stats returns the caller's todo count and latest update time for ETags.
func (s *TodoService) Stats(ctx context.Context, userID uint) (int64, *time.Time, error) {
	if err := requireUser(userID); err != nil {
		return 0, nil, err
	}
	return s.Repo.TodosStats(ctx, s.DB, userID)
}

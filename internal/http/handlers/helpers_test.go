package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-todo-backend/internal/apperr"
	"github.com/tbourn/go-todo-backend/internal/domain"
	"github.com/tbourn/go-todo-backend/internal/http/middleware"
	"github.com/tbourn/go-todo-backend/internal/repo"
	"github.com/tbourn/go-todo-backend/internal/services"
	"github.com/tbourn/go-todo-backend/internal/validation"
)

// ----- Fake services -----

type fakeAuth struct {
	signup func(email, pw string) (*services.AuthResult, error)
	login  func(email, pw string) (*services.AuthResult, error)
}

func (f *fakeAuth) Signup(_ context.Context, email, pw string) (*services.AuthResult, error) {
	return f.signup(email, pw)
}
func (f *fakeAuth) Login(_ context.Context, email, pw string) (*services.AuthResult, error) {
	return f.login(email, pw)
}

// fakeTodos keeps todos in memory, keyed by id, honoring ownership.
type fakeTodos struct {
	todos      map[uint]*domain.Todo
	nextID     uint
	keys       map[string]uint
	statsErr   error
	listErr    error
	lastFilter repo.TodoFilter
	lastInput  services.TodoInput
}

func newFakeTodos() *fakeTodos {
	return &fakeTodos{todos: map[uint]*domain.Todo{}, keys: map[string]uint{}}
}

func (f *fakeTodos) put(userID uint, name string, tags ...string) *domain.Todo {
	f.nextID++
	t := &domain.Todo{
		ID: f.nextID, UserID: userID, Name: name,
		DueDate:     time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		CreatedDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, tag := range tags {
		t.Tags = append(t.Tags, domain.TodoTag{Tag: tag})
	}
	f.todos[t.ID] = t
	return t
}

func (f *fakeTodos) owned(userID, id uint) (*domain.Todo, error) {
	t, ok := f.todos[id]
	if !ok || t.UserID != userID {
		return nil, apperr.NotFound(services.ResourceTodo, id)
	}
	return t, nil
}

func (f *fakeTodos) List(_ context.Context, userID uint, flt repo.TodoFilter) ([]domain.Todo, error) {
	f.lastFilter = flt
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []domain.Todo{}
	for id := uint(1); id <= f.nextID; id++ {
		if t, ok := f.todos[id]; ok && t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTodos) Get(_ context.Context, userID, id uint) (*domain.Todo, error) {
	return f.owned(userID, id)
}

func (f *fakeTodos) CreateIdempotent(_ context.Context, userID uint, key string, in services.TodoInput) (*domain.Todo, bool, error) {
	f.lastInput = in
	if key != "" {
		if id, ok := f.keys[key]; ok {
			return f.todos[id], true, nil
		}
	}
	t := f.put(userID, in.Name, in.Tags...)
	t.DueDate, t.Notes, t.Location = in.DueDate, in.Notes, in.Location
	if key != "" {
		f.keys[key] = t.ID
	}
	return t, false, nil
}

func (f *fakeTodos) Update(_ context.Context, userID, id uint, in services.TodoInput) (*domain.Todo, error) {
	f.lastInput = in
	t, err := f.owned(userID, id)
	if err != nil {
		return nil, err
	}
	t.Name, t.DueDate, t.Notes, t.Location = in.Name, in.DueDate, in.Notes, in.Location
	t.Tags = nil
	for _, tag := range in.Tags {
		t.Tags = append(t.Tags, domain.TodoTag{Tag: tag})
	}
	return t, nil
}

func (f *fakeTodos) Delete(_ context.Context, userID, id uint) error {
	if _, err := f.owned(userID, id); err != nil {
		return err
	}
	delete(f.todos, id)
	return nil
}

func (f *fakeTodos) Stats(_ context.Context, userID uint) (int64, *time.Time, error) {
	if f.statsErr != nil {
		return 0, nil, f.statsErr
	}
	var n int64
	for _, t := range f.todos {
		if t.UserID == userID {
			n++
		}
	}
	ts := time.Unix(1700000000, 0).UTC()
	return n, &ts, nil
}

// ----- Router helpers -----

// newTestRouter mounts the handlers behind the error mapper. asUser, when
// non-zero, stands in for the authentication gate; extra runs after it.
func newTestRouter(h *Handlers, asUser uint, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	validation.Init()
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Errors(middleware.ErrorOptions{}))
	r.POST("/api/auth/signup", h.Signup)
	r.POST("/api/auth/login", h.Login)

	g := r.Group("/api")
	g.Use(func(c *gin.Context) {
		if asUser != 0 {
			c.Set("userID", asUser)
		}
		c.Next()
	})
	g.Use(extra...)
	for _, base := range []string{"/todo", "/todos"} {
		g.GET(base, h.ListTodos)
		g.POST(base, h.CreateTodo)
		g.GET(base+"/:id", h.GetTodo)
		g.PUT(base+"/:id", h.UpdateTodo)
		g.DELETE(base+"/:id", h.DeleteTodo)
	}
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponse {
	t.Helper()
	var e middleware.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return e
}

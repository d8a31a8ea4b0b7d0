package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-todo-backend/internal/domain"
	"github.com/tbourn/go-todo-backend/internal/repo"
)

// newTestDB opens a unique in-memory database per test. With migrate=true
// the full schema is created; otherwise it only backs transactions.
func newTestDB(t *testing.T, migrate bool) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if migrate {
		if err := repo.AutoMigrate(db); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

// realUserRepo and realTodoRepo forward to the repo package.
type realUserRepo struct{}

func (realUserRepo) CreateUser(ctx context.Context, db *gorm.DB, email, hash string) (*domain.User, error) {
	return repo.CreateUser(ctx, db, email, hash)
}
func (realUserRepo) GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	return repo.GetUserByEmail(ctx, db, email)
}
func (realUserRepo) UserExists(ctx context.Context, db *gorm.DB, email string) (bool, error) {
	return repo.UserExists(ctx, db, email)
}
func (realUserRepo) CountUsers(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.CountUsers(ctx, db)
}

type realTodoRepo struct{}

func (realTodoRepo) ListTodos(ctx context.Context, db *gorm.DB, userID uint, f repo.TodoFilter) ([]domain.Todo, error) {
	return repo.ListTodos(ctx, db, userID, f)
}
func (realTodoRepo) GetTodo(ctx context.Context, db *gorm.DB, id, userID uint) (*domain.Todo, error) {
	return repo.GetTodo(ctx, db, id, userID)
}
func (realTodoRepo) CreateTodo(ctx context.Context, db *gorm.DB, t *domain.Todo) error {
	return repo.CreateTodo(ctx, db, t)
}
func (realTodoRepo) UpdateTodoFields(ctx context.Context, db *gorm.DB, t *domain.Todo) error {
	return repo.UpdateTodoFields(ctx, db, t)
}
func (realTodoRepo) ReplaceTodoTags(ctx context.Context, db *gorm.DB, todoID uint, tags []string) error {
	return repo.ReplaceTodoTags(ctx, db, todoID, tags)
}
func (realTodoRepo) DeleteTodo(ctx context.Context, db *gorm.DB, id, userID uint) error {
	return repo.DeleteTodo(ctx, db, id, userID)
}
func (realTodoRepo) TodosStats(ctx context.Context, db *gorm.DB, userID uint) (int64, *time.Time, error) {
	return repo.TodosStats(ctx, db, userID)
}
func (realTodoRepo) GetIdempotency(ctx context.Context, db *gorm.DB, userID uint, scope, key string, now time.Time) (*domain.Idempotency, error) {
	return repo.GetIdempotency(ctx, db, userID, scope, key, now)
}
func (realTodoRepo) CreateIdempotency(ctx context.Context, db *gorm.DB, userID uint, scope, key string, resourceID uint, status int, ttl time.Duration) (*domain.Idempotency, error) {
	return repo.CreateIdempotency(ctx, db, userID, scope, key, resourceID, status, ttl)
}

// fastHash keeps tests quick; it is not a real hash.
func fastHash(plain string) (string, error) { return "h:" + plain, nil }
func fastVerify(hash, plain string) bool  { return hash == "h:"+plain }

type fakeIssuer struct {
	calls int
	err   error
}

func (f *fakeIssuer) Issue(userID uint, email string) (string, time.Time, error) {
	f.calls++
	if f.err != nil {
		return "", time.Time{}, f.err
	}
	return fmt.Sprintf("hdr.%d-%s.sig", userID, email), time.Now().Add(24 * time.Hour), nil
}

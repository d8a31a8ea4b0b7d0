// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Todo model
// and its tag sub-collection.
//
// Every read and write is scoped by the owning user id inside the query
// itself, so a todo that belongs to someone else is indistinguishable from a
// missing one. Writes that fail are returned as *apperr.PersistenceError;
// missing rows are reported as ErrNotFound.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/tbourn/go-todo-backend/internal/apperr"
	"github.com/tbourn/go-todo-backend/internal/domain"
)

// TodoFilter narrows a todo listing. Nil bounds and an empty tag are ignored;
// bounds are inclusive.
type TodoFilter struct {
	DueFrom     *time.Time
	DueTo       *time.Time
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Tag         string
}

// scopeOwner restricts a query on todos to rows owned by userID.
func scopeOwner(userID uint) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		return q.Where("todos.user_id = ?", userID)
	}
}

func (f TodoFilter) apply(q *gorm.DB) *gorm.DB {
	if f.DueFrom != nil {
		q = q.Where("todos.due_date >= ?", *f.DueFrom)
	}
	if f.DueTo != nil {
		q = q.Where("todos.due_date <= ?", *f.DueTo)
	}
	if f.CreatedFrom != nil {
		q = q.Where("todos.created_date >= ?", *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		q = q.Where("todos.created_date <= ?", *f.CreatedTo)
	}
	if tag := strings.TrimSpace(f.Tag); tag != "" {
		q = q.Where("EXISTS (SELECT 1 FROM todo_tags tt WHERE tt.todo_id = todos.id AND tt.tag = ?)", tag)
	}
	return q
}

func preloadTags(q *gorm.DB) *gorm.DB {
	return q.Preload("Tags", func(tx *gorm.DB) *gorm.DB { return tx.Order("todo_tags.id") })
}

// ListTodos returns the todos owned by userID that match f, with tags, in
// creation order. It returns an empty slice when nothing matches.
func ListTodos(ctx context.Context, db *gorm.DB, userID uint, f TodoFilter) ([]domain.Todo, error) {
	out := []domain.Todo{}
	err := db.WithContext(ctx).
		Model(&domain.Todo{}).
		Scopes(scopeOwner(userID), f.apply, preloadTags).
		Order("todos.id asc").
		Find(&out).Error
	if err != nil {
		return nil, pkgerrors.WithStack(err)
	}
	return out, nil
}

// GetTodo fetches a todo by id and owner, with tags, or returns ErrNotFound.
func GetTodo(ctx context.Context, db *gorm.DB, id, userID uint) (*domain.Todo, error) {
	var t domain.Todo
	err := db.WithContext(ctx).
		Scopes(scopeOwner(userID), preloadTags).
		Where("todos.id = ?", id).
		First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, pkgerrors.WithStack(err)
	}
	return &t, nil
}

// CreateTodo inserts t together with its tags. The caller sets UserID;
// ID, CreatedDate and UpdatedAt are filled in.
func CreateTodo(ctx context.Context, db *gorm.DB, t *domain.Todo) error {
	now := time.Now().UTC()
	t.CreatedDate = now
	t.UpdatedAt = now
	if err := db.WithContext(ctx).Omit("User").Create(t).Error; err != nil {
		return apperr.Persistence("create todo", err)
	}
	return nil
}

// UpdateTodoFields overwrites the mutable scalar columns of the todo
// identified by t.ID and t.UserID. CreatedDate is never touched. It returns
// ErrNotFound when no owned row matched.
func UpdateTodoFields(ctx context.Context, db *gorm.DB, t *domain.Todo) error {
	res := db.WithContext(ctx).
		Model(&domain.Todo{}).
		Where("id = ? AND user_id = ?", t.ID, t.UserID).
		Updates(map[string]any{
			"name":       t.Name,
			"due_date":   t.DueDate,
			"notes":      t.Notes,
			"location":   t.Location,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return apperr.Persistence("update todo", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceTodoTags deletes every tag of todoID and inserts tags in order.
// Run it inside the same transaction as the ownership check.
func ReplaceTodoTags(ctx context.Context, db *gorm.DB, todoID uint, tags []string) error {
	q := db.WithContext(ctx)
	if err := q.Where("todo_id = ?", todoID).Delete(&domain.TodoTag{}).Error; err != nil {
		return apperr.Persistence("delete todo tags", err)
	}
	if len(tags) == 0 {
		return nil
	}
	rows := make([]domain.TodoTag, 0, len(tags))
	for _, tag := range tags {
		rows = append(rows, domain.TodoTag{TodoID: todoID, Tag: tag})
	}
	if err := q.Create(&rows).Error; err != nil {
		return apperr.Persistence("insert todo tags", err)
	}
	return nil
}

// DeleteTodo removes the owned todo and its tags. Tags are deleted explicitly
// as well as by the FK cascade so stores without enforced foreign keys stay
// clean. It returns ErrNotFound when no owned row matched.
func DeleteTodo(ctx context.Context, db *gorm.DB, id, userID uint) error {
	q := db.WithContext(ctx)
	if err := q.Where("todo_id IN (?)",
		q.Model(&domain.Todo{}).Select("id").Where("id = ? AND user_id = ?", id, userID),
	).Delete(&domain.TodoTag{}).Error; err != nil {
		return apperr.Persistence("delete todo tags", err)
	}
	res := q.Where("id = ? AND user_id = ?", id, userID).Delete(&domain.Todo{})
	if res.Error != nil {
		return apperr.Persistence("delete todo", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

package domain

import (
	"testing"
	"time"

	"gorm.io/gorm"
)

func migrateAll(t *testing.T) *gorm.DB {
	t.Helper()
	db := newTestDB(t)
	if err := db.AutoMigrate(&User{}, &Todo{}, &TodoTag{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestTableNames(t *testing.T) {
	if (User{}).TableName() != "users" || (Todo{}).TableName() != "todos" || (TodoTag{}).TableName() != "todo_tags" {
		t.Fatalf("unexpected table names")
	}
	if (Idempotency{}).TableName() != "idempotency" {
		t.Fatalf("unexpected idempotency table name")
	}
}

func TestMigrate_CreatesTablesAndIndexes(t *testing.T) {
	db := migrateAll(t)
	m := db.Migrator()
	for _, model := range []any{&User{}, &Todo{}, &TodoTag{}} {
		if !m.HasTable(model) {
			t.Fatalf("missing table for %T", model)
		}
	}
	if !m.HasIndex(&User{}, "ux_users_email") {
		t.Fatalf("missing unique email index")
	}
	if !m.HasIndex(&Todo{}, "idx_todos_user") {
		t.Fatalf("missing todos user index")
	}
}

func TestUser_EmailUnique_CaseSensitive(t *testing.T) {
	db := migrateAll(t)
	if err := db.Create(&User{Email: "a@example.com", PasswordHash: "h"}).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := db.Create(&User{Email: "a@example.com", PasswordHash: "h"}).Error; err == nil {
		t.Fatalf("expected unique violation")
	}
	if err := db.Create(&User{Email: "A@example.com", PasswordHash: "h"}).Error; err != nil {
		t.Fatalf("differently cased email should be accepted: %v", err)
	}
}

func TestTodo_CascadeOnUserDelete(t *testing.T) {
	db := migrateAll(t)

	u := User{Email: "c@example.com", PasswordHash: "h"}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("user: %v", err)
	}
	now := time.Now().UTC()
	todo := Todo{
		UserID:      u.ID,
		Name:        "write report",
		DueDate:     now.Add(24 * time.Hour),
		CreatedDate: now,
		Tags:        []TodoTag{{Tag: "work"}, {Tag: "urgent"}},
	}
	if err := db.Omit("User").Create(&todo).Error; err != nil {
		t.Fatalf("todo: %v", err)
	}
	var tagCount int64
	db.Model(&TodoTag{}).Where("todo_id = ?", todo.ID).Count(&tagCount)
	if tagCount != 2 {
		t.Fatalf("tags = %d, want 2", tagCount)
	}

	if err := db.Delete(&User{}, u.ID).Error; err != nil {
		t.Fatalf("delete user: %v", err)
	}
	var todoCount int64
	db.Model(&Todo{}).Count(&todoCount)
	db.Model(&TodoTag{}).Count(&tagCount)
	if todoCount != 0 || tagCount != 0 {
		t.Fatalf("cascade failed: todos=%d tags=%d", todoCount, tagCount)
	}
}

func TestTodo_RequiresExistingUser(t *testing.T) {
	db := migrateAll(t)
	todo := Todo{UserID: 999, Name: "orphan", DueDate: time.Now(), CreatedDate: time.Now()}
	if err := db.Omit("User").Create(&todo).Error; err == nil {
		t.Fatalf("expected foreign key violation")
	}
}

func TestTagNames(t *testing.T) {
	if got := (Todo{}).TagNames(); got == nil || len(got) != 0 {
		t.Fatalf("empty todo should yield empty non-nil slice, got %#v", got)
	}
	td := Todo{Tags: []TodoTag{{Tag: "a"}, {Tag: "b"}}}
	got := td.TagNames()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("TagNames = %v", got)
	}
}

// Package domain defines the persistence models for users, to-do items, and
// their tags. These types are mapped with GORM and form the core data layer
// of the to-do application.
package domain

import "time"

// User is an account that owns to-do items.
//
// Fields:
//   - ID: auto-increment primary key.
//   - Email: unique login name (compared case-sensitively).
//   - PasswordHash: bcrypt hash; the plain password is never stored.
//   - CreatedAt: set once on signup.
type User struct {
	ID           uint      `gorm:"primaryKey"`
	Email        string    `gorm:"type:varchar(256);not null;uniqueIndex:ux_users_email"`
	PasswordHash string    `gorm:"type:text;not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Todo is a to-do item owned by exactly one user.
//
// Fields:
//   - ID: auto-increment primary key.
//   - UserID: owner; every query filters on it.
//   - Name / DueDate: required.
//   - Notes / Location: optional (NULL when absent).
//   - CreatedDate: set at creation and never changed.
//   - UpdatedAt: bumped by GORM on every save; feeds list ETags.
//   - Tags: full tag set, replaced wholesale on update.
//   - User: FK association; todos are cascade-deleted with their owner.
type Todo struct {
	ID          uint      `gorm:"primaryKey"`
	UserID      uint      `gorm:"not null;index:idx_todos_user"`
	Name        string    `gorm:"type:varchar(200);not null"`
	DueDate     time.Time `gorm:"not null;index"`
	Notes       *string   `gorm:"type:text"`
	Location    *string   `gorm:"type:varchar(255)"`
	CreatedDate time.Time `gorm:"not null;index"`
	UpdatedAt   time.Time

	Tags []TodoTag `gorm:"foreignKey:TodoID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	User User      `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Todo.
func (Todo) TableName() string { return "todos" }

// TagNames returns the tag strings in storage order. It never returns nil.
func (t Todo) TagNames() []string {
	out := make([]string, 0, len(t.Tags))
	for _, tg := range t.Tags {
		out = append(out, tg.Tag)
	}
	return out
}

// TodoTag is a single tag attached to a todo. It has no identity beyond
// the todo it belongs to.
type TodoTag struct {
	ID     uint   `gorm:"primaryKey"`
	TodoID uint   `gorm:"not null;index:idx_todo_tags_todo"`
	Tag    string `gorm:"type:varchar(100);not null;index:idx_todo_tags_tag"`
}

// TableName returns the database table name for TodoTag.
func (TodoTag) TableName() string { return "todo_tags" }

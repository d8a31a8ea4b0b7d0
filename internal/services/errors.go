// Package services defines the business logic for accounts and to-do items.
// This file centralizes the client-facing messages and sentinel errors the
// service layer returns so handlers and tests can refer to them by name.
//
// Expected failures are returned as *apperr.Error values; the HTTP error
// mapper turns them into responses.
package services

import "github.com/tbourn/go-todo-backend/internal/apperr"

// Client-facing messages.
const (
	// MsgEmailTaken is the Conflict message for a duplicate signup.
	MsgEmailTaken = "User with this email already exists"

	// MsgBadCredentials is the Unauthorized message for any failed login.
	// It is identical for unknown emails and wrong passwords.
	MsgBadCredentials = "Invalid email or password"

	// ResourceTodo names todos in NotFound messages.
	ResourceTodo = "Todo"
)

// ErrNoIdentity is returned when a per-user operation is called without a
// resolved user id. The authentication gate makes this unreachable in
// normal operation.
var ErrNoIdentity = apperr.BadInput("no authenticated user id")

func requireUser(userID uint) error {
	if userID == 0 {
		return ErrNoIdentity
	}
	return nil
}

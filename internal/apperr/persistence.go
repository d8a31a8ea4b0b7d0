package apperr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
)

// pgUniqueViolation is the SQLSTATE Postgres reports for unique index violations.
const pgUniqueViolation = "23505"

// PersistenceError reports that a write did not reach the store.
// The wrapped error carries a stack captured where the write failed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *PersistenceError) Unwrap() error { return e.Err }

// Persistence wraps a failed write. It returns nil when err is nil.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: pkgerrors.WithStack(err)}
}

// IsUniqueViolation reports whether err is a uniqueness-constraint failure.
//
// Structured classification is tried first (gorm's translated sentinel and the
// pgx SQLSTATE). The SQLite driver only exposes a message, so the last branch
// matches on its text; that branch breaks if the driver rewords the message.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "constraint failed: unique")
}

// StackTrace returns the formatted stack of the first error in err's chain
// that recorded one, or "" when none did.
func StackTrace(err error) string {
	type stackTracer interface {
		StackTrace() pkgerrors.StackTrace
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		if st, ok := e.(stackTracer); ok {
			return fmt.Sprintf("%s%+v", e.Error(), st.StackTrace())
		}
	}
	return ""
}

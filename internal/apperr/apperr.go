// Package apperr defines the closed set of application error kinds returned by
// the service layer and the helpers the HTTP error mapper uses to classify
// everything else.
//
// Services return *Error values for expected failures (not found, conflict,
// unauthorized, validation). Anything that is not an *Error is treated as
// unexpected by the mapper, with three narrow exceptions recognised by
// capability rather than by message: persistence write failures
// (*PersistenceError), the access-denied sentinel, and malformed input
// (ErrBadInput and the standard parse errors).
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind enumerates the expected application failure categories.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindUnauthorized
	KindConflict
	KindValidation
)

// Symbolic error codes written to the errorCode field of error responses.
const (
	CodeNotFound        = "NOT_FOUND"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeConflict        = "CONFLICT"
	CodeValidation      = "VALIDATION_ERROR"
	CodeBadRequest      = "BAD_REQUEST"
	CodeDatabase        = "DATABASE_ERROR"
	CodeInternal        = "INTERNAL_SERVER_ERROR"
	CodeTooManyRequests = "TOO_MANY_REQUESTS"
)

// Status returns the HTTP status associated with the kind.
func (k Kind) Status() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Code returns the symbolic error code associated with the kind.
func (k Kind) Code() string {
	switch k {
	case KindNotFound:
		return CodeNotFound
	case KindUnauthorized:
		return CodeUnauthorized
	case KindConflict:
		return CodeConflict
	case KindValidation:
		return CodeValidation
	default:
		return CodeInternal
	}
}

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Error is a known application error. Its message is safe to show to clients.
type Error struct {
	Kind    Kind
	Message string
	// Fields is populated only for KindValidation.
	Fields map[string][]string
}

func (e *Error) Error() string { return e.Message }

// Status returns the HTTP status declared by the error kind.
func (e *Error) Status() int { return e.Kind.Status() }

// Code returns the symbolic error code declared by the error kind.
func (e *Error) Code() string { return e.Kind.Code() }

// NotFound reports a missing resource, folding resource name and id into the
// message ("Todo with id 7 not found").
func NotFound(resource string, id any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s with id %v not found", resource, id)}
}

// Unauthorized reports failed authentication. An empty message defaults to
// "Unauthorized".
func Unauthorized(msg string) *Error {
	if msg == "" {
		msg = "Unauthorized"
	}
	return &Error{Kind: KindUnauthorized, Message: msg}
}

// Conflict reports a state conflict such as a duplicate resource.
func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

// Validation reports every invalid field at once.
func Validation(fields map[string][]string) *Error {
	return &Error{Kind: KindValidation, Message: "Validation failed", Fields: fields}
}

// As returns the application error in err's chain, if any.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsKind reports whether err carries an application error of kind k.
func IsKind(err error, k Kind) bool {
	ae, ok := As(err)
	return ok && ae.Kind == k
}

// ErrAccessDenied signals a request that reached a protected resource
// without a usable identity. It is distinct from Unauthorized, which services
// return for failed credential checks.
var ErrAccessDenied = errors.New("access denied")

// ErrBadInput marks malformed arguments or formats. The wrapped detail is
// logged but never echoed to the client.
var ErrBadInput = errors.New("bad input")

// BadInput wraps ErrBadInput with a formatted detail.
func BadInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadInput, fmt.Sprintf(format, args...))
}

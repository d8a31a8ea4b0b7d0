// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the error mapper: the single place where failures
// become HTTP responses. Handlers never write error bodies themselves; they
// attach the error with c.Error and abort. After the chain returns, Errors
// classifies the last attached error (or a recovered panic) and writes one
// ErrorResponse.
//
// Classification, first match wins:
//
//	*apperr.Error             status and code declared by its kind
//	*apperr.PersistenceError  409 CONFLICT on unique violations, else 500 DATABASE_ERROR
//	apperr.ErrAccessDenied    401 UNAUTHORIZED
//	malformed input           400 BAD_REQUEST
//	anything else             500 INTERNAL_SERVER_ERROR
//
// 4xx outcomes are logged at warn level, 5xx at error level. Details (error
// text and stack) are only included for 5xx responses in development.
package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-todo-backend/internal/apperr"
)

// Client-facing messages for errors that do not carry their own.
const (
	MsgDuplicateRecord = "A record with this information already exists"
	MsgDatabase        = "An error occurred while updating the database"
	MsgAccessDenied    = "You are not authorized to access this resource"
	MsgBadRequest      = "Invalid request format or parameters"
	MsgInternal        = "An unexpected error occurred"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	TraceID          string              `json:"traceId" example:"123e4567-e89b-12d3-a456-426614174000"`
	StatusCode       int                 `json:"statusCode" example:"404"`
	ErrorCode        string              `json:"errorCode" example:"NOT_FOUND"`
	Message          string              `json:"message" example:"Todo with id 7 not found"`
	Details          *string             `json:"details,omitempty"`
	ValidationErrors map[string][]string `json:"validationErrors,omitempty"`
	Timestamp        string              `json:"timestamp" example:"2025-01-02T15:04:05.000000000Z"`
}

// ErrorOptions configures Errors.
type ErrorOptions struct {
	// Development enables the details field on 5xx responses.
	Development bool
}

type mapped struct {
	status  int
	code    string
	message string
	fields  map[string][]string
}

// classify maps err onto a status, code and client-safe message.
func classify(err error) mapped {
	if ae, ok := apperr.As(err); ok {
		return mapped{status: ae.Status(), code: ae.Code(), message: ae.Message, fields: ae.Fields}
	}

	var pe *apperr.PersistenceError
	if errors.As(err, &pe) {
		if apperr.IsUniqueViolation(err) {
			return mapped{status: http.StatusConflict, code: apperr.CodeConflict, message: MsgDuplicateRecord}
		}
		return mapped{status: http.StatusInternalServerError, code: apperr.CodeDatabase, message: MsgDatabase}
	}

	if errors.Is(err, apperr.ErrAccessDenied) {
		return mapped{status: http.StatusUnauthorized, code: apperr.CodeUnauthorized, message: MsgAccessDenied}
	}

	if isMalformed(err) {
		return mapped{status: http.StatusBadRequest, code: apperr.CodeBadRequest, message: MsgBadRequest}
	}

	return mapped{status: http.StatusInternalServerError, code: apperr.CodeInternal, message: MsgInternal}
}

func isMalformed(err error) bool {
	if errors.Is(err, apperr.ErrBadInput) {
		return true
	}
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		numErr    *strconv.NumError
		timeErr   *time.ParseError
		sizeErr   *http.MaxBytesError
	)
	return errors.As(err, &syntaxErr) ||
		errors.As(err, &typeErr) ||
		errors.As(err, &numErr) ||
		errors.As(err, &timeErr) ||
		errors.As(err, &sizeErr)
}

// Errors returns the error-mapping middleware. Install it after RequestID and
// the access logger so the trace id and request logger are available.
func Errors(opts ErrorOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				// net/http relies on this panic to abort the response silently.
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				err, ok := rec.(error)
				if !ok {
					err = fmt.Errorf("panic: %v", rec)
				}
				respond(c, opts, err, string(debug.Stack()))
			}
		}()

		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		respond(c, opts, c.Errors.Last().Err, "")
	}
}

func respond(c *gin.Context, opts ErrorOptions, err error, stack string) {
	m := classify(err)

	lg := LoggerFrom(c)
	ev := lg.Warn()
	if m.status >= http.StatusInternalServerError {
		ev = lg.Error()
	}
	ev.Err(err).
		Str("traceId", TraceID(c)).
		Str("errorCode", m.code).
		Int("status", m.status).
		Str("path", c.Request.URL.Path).
		Msg("request failed")

	httpErrors.WithLabelValues(m.code, strconv.Itoa(m.status)).Inc()

	if c.Writer.Written() {
		// Headers are already on the wire; nothing sensible left to send.
		c.Abort()
		return
	}

	resp := newErrorResponse(c, m.status, m.code, m.message)
	resp.ValidationErrors = m.fields
	if opts.Development && m.status >= http.StatusInternalServerError {
		d := apperr.StackTrace(err)
		if d == "" {
			d = err.Error()
		}
		if stack != "" {
			d += "\n" + stack
		}
		resp.Details = &d
	}
	c.AbortWithStatusJSON(m.status, resp)
}

func newErrorResponse(c *gin.Context, status int, code, message string) ErrorResponse {
	return ErrorResponse{
		TraceID:    TraceID(c),
		StatusCode: status,
		ErrorCode:  code,
		Message:    message,
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// WriteError aborts with an ErrorResponse for failures raised by the
// transport itself (unknown route, rate limit) rather than by a handler.
func WriteError(c *gin.Context, status int, code, message string) {
	httpErrors.WithLabelValues(code, strconv.Itoa(status)).Inc()
	c.AbortWithStatusJSON(status, newErrorResponse(c, status, code, message))
}

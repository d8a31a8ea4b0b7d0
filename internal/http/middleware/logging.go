// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides the request correlation id and the request-scoped
// logger accessors:
//
//   - RequestID() reuses or mints an X-Request-ID per request. The same value
//     is reported as traceId in error responses.
//   - LoggerFrom() returns the zerolog.Logger attached by RedactingLogger,
//     falling back to the global logger.
//
// Ordering: RequestID, then RedactingLogger, then Errors.
package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// requestIDKey is the Gin context key under which the request ID is stored.
	requestIDKey = "requestID"
	// requestIDHeader is the HTTP header used to propagate the correlation ID.
	requestIDHeader = "X-Request-ID"
	// loggerKey holds the request-scoped *zerolog.Logger.
	loggerKey = "logger"
	// maxQueryLogLength caps the number of bytes of the raw query string logged.
	maxQueryLogLength = 2048
	// maxRequestIDLength bounds client-supplied correlation ids.
	maxRequestIDLength = 128
)

// RequestID attaches (or propagates) a correlation identifier per request.
// A client-supplied X-Request-ID is reused when it is non-empty and at most
// 128 bytes; otherwise a UUIDv4 is generated. The id is echoed in the
// response header and stored under "requestID".
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" || len(rid) > maxRequestIDLength {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// TraceID returns the correlation id of the request, or "" if RequestID did
// not run.
func TraceID(c *gin.Context) string {
	if v, ok := c.Get(requestIDKey); ok {
		return asString(v)
	}
	return c.Writer.Header().Get(requestIDHeader)
}

// LoggerFrom returns the request-scoped zerolog.Logger. Without one, a
// logger derived from the global logger is returned, so callers never need
// a nil check.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

// asString renders context values used in logs. Unsigned ids (the
// authenticated user) are formatted in base 10; other non-strings yield "".
func asString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	default:
		return ""
	}
}

// truncate returns s unchanged when within max bytes, otherwise it cuts s to
// max bytes and appends an ellipsis. A max <= 0 disables truncation.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

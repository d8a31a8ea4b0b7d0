// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file validates the Idempotency-Key request header on unsafe methods.
// A valid key is stashed for the handler (GetIdempotencyKey). When a lookup
// reports that the caller already completed a request with that key, the
// request is flagged as a replay so rate limiters let it through.
//
// The middleware never serves stored results; TodoService.CreateIdempotent
// does that. Persistence is reached through the narrow IdempotencyLookup.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-todo-backend/internal/apperr"
)

// HeaderIdempotencyKey is the request header carrying the idempotency key.
const HeaderIdempotencyKey = "Idempotency-Key"

// HeaderIdempotencyReplayed is set to "true" on responses served from a
// previous request with the same key.
const HeaderIdempotencyReplayed = "Idempotency-Replayed"

// MsgBadIdempotencyKey is the message of 400 responses for malformed keys.
const MsgBadIdempotencyKey = "Invalid Idempotency-Key header"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

var defaultKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// GetIdempotencyKey returns the validated key, if the request carried one.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether the lookup found a completed request for the key.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions configures IdempotencyValidator.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters; nil means ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
}

// IdempotencyLookup reports whether userID already completed a request with
// key that is still inside its replay window at now. Lookup errors are
// logged and treated as "not found".
type IdempotencyLookup func(ctx context.Context, userID uint, key string, now time.Time) (bool, error)

// IdempotencyValidator returns the middleware. It must run after
// Authenticate so the lookup is scoped to the caller.
//
//   - no header: no-op
//   - malformed header: 400 BAD_REQUEST
//   - lookup hit on POST: replay and rate-bypass flags set
//
// Keys sent with other methods are validated but never flag a replay.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultKeyPattern
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			WriteError(c, http.StatusBadRequest, apperr.CodeBadRequest, MsgBadIdempotencyKey)
			return
		}
		c.Set(ctxKeyIdemKey, key)

		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}
		if uid, ok := UserID(c); ok && lookup != nil {
			exists, err := lookup(c.Request.Context(), uid, key, time.Now().UTC())
			if err != nil {
				LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
			}
			if exists {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}
		c.Next()
	}
}

// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the authentication gate for protected routes. A
// request must carry "Authorization: Bearer <token>" with a token that
// verifies against the configured key, issuer, audience and expiry. On
// success the caller's numeric user id is stored under "userID"; on failure
// the request is aborted with apperr.ErrAccessDenied for the error mapper.
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-todo-backend/internal/apperr"
	"github.com/tbourn/go-todo-backend/internal/auth"
)

// userIDKey is the Gin context key holding the authenticated user id (uint).
const userIDKey = "userID"

// TokenVerifier validates a bearer token. *auth.Manager satisfies it.
type TokenVerifier interface {
	Parse(token string) (*auth.Claims, error)
}

// Authenticate returns the bearer-token gate.
func Authenticate(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			deny(c, "missing bearer token")
			return
		}
		claims, err := v.Parse(raw)
		if err != nil {
			deny(c, "invalid bearer token")
			return
		}
		uid, err := claims.UserID()
		if err != nil || uid == 0 {
			deny(c, "token subject is not a user id")
			return
		}
		c.Set(userIDKey, uid)
		c.Next()
	}
}

func deny(c *gin.Context, reason string) {
	LoggerFrom(c).Debug().Str("reason", reason).Msg("authentication failed")
	_ = c.Error(apperr.ErrAccessDenied)
	c.Abort()
}

// bearerToken extracts the token from an Authorization header value. The
// scheme is matched case-insensitively.
func bearerToken(h string) (string, bool) {
	scheme, tok, found := strings.Cut(strings.TrimSpace(h), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

// UserID returns the authenticated user id set by Authenticate.
func UserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok && id != 0
}

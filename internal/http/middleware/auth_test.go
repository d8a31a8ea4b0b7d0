package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tbourn/go-todo-backend/internal/auth"
	"github.com/tbourn/go-todo-backend/internal/config"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testManager() *auth.Manager {
	return auth.NewManager(config.JWTConfig{
		Secret: testSecret, Issuer: "todo-api", Audience: "todo-app", TTL: time.Hour,
	})
}

func newAuthRouter(v TokenVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Errors(ErrorOptions{}))
	r.GET("/me", Authenticate(v), func(c *gin.Context) {
		uid, ok := UserID(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		c.JSON(http.StatusOK, gin.H{"userId": uid})
	})
	return r
}

func TestAuthenticate_ValidToken(t *testing.T) {
	m := testManager()
	tok, _, err := m.Issue(42, "u@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	r := newAuthRouter(m)

	for _, scheme := range []string{"Bearer ", "bearer "} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", scheme+tok)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("%q: status = %d body=%s", scheme, w.Code, w.Body.String())
		}
		var body struct {
			UserID uint `json:"userId"`
		}
		_ = json.Unmarshal(w.Body.Bytes(), &body)
		if body.UserID != 42 {
			t.Fatalf("userId = %d", body.UserID)
		}
	}
}

func TestAuthenticate_Rejections(t *testing.T) {
	captureLogger(t)
	m := testManager()

	other := auth.NewManager(config.JWTConfig{
		Secret: "ffffffffffffffffffffffffffffffff", Issuer: "todo-api", Audience: "todo-app", TTL: time.Hour,
	})
	foreign, _, _ := other.Issue(1, "x@example.com")

	wrongAud := auth.NewManager(config.JWTConfig{
		Secret: testSecret, Issuer: "todo-api", Audience: "someone-else", TTL: time.Hour,
	})
	audTok, _, _ := wrongAud.Issue(1, "x@example.com")

	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "1",
		Issuer:    "todo-api",
		Audience:  jwt.ClaimStrings{"todo-app"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}).SignedString([]byte(testSecret))

	badSub, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "not-a-number",
		Issuer:    "todo-api",
		Audience:  jwt.ClaimStrings{"todo-app"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))

	cases := map[string]string{
		"missing header":  "",
		"wrong scheme":    "Basic dXNlcjpwYXNz",
		"empty token":     "Bearer   ",
		"garbage":         "Bearer not.a.jwt",
		"foreign key":     "Bearer " + foreign,
		"wrong audience":  "Bearer " + audTok,
		"expired":         "Bearer " + expired,
		"non-numeric sub": "Bearer " + badSub,
	}
	r := newAuthRouter(m)
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			r.ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d", w.Code)
			}
			var body ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.ErrorCode != "UNAUTHORIZED" || body.Message != MsgAccessDenied {
				t.Fatalf("body = %+v", body)
			}
		})
	}
}

func TestUserID_Helper(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if _, ok := UserID(c); ok {
		t.Fatalf("no user expected")
	}
	c.Set(userIDKey, uint(0))
	if _, ok := UserID(c); ok {
		t.Fatalf("zero id must not count as authenticated")
	}
	c.Set(userIDKey, "7")
	if _, ok := UserID(c); ok {
		t.Fatalf("string id must not count")
	}
	c.Set(userIDKey, uint(7))
	if id, ok := UserID(c); !ok || id != 7 {
		t.Fatalf("UserID = %d %v", id, ok)
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]struct {
		tok string
		ok  bool
	}{
		"Bearer abc":    {"abc", true},
		"  BEARER abc ": {"abc", true},
		"Bearer":        {"", false},
		"Token abc":     {"", false},
		"":              {"", false},
	}
	for in, want := range cases {
		tok, ok := bearerToken(in)
		if tok != want.tok || ok != want.ok {
			t.Errorf("%q: got %q %v", in, tok, ok)
		}
	}
}

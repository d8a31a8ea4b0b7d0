package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tbourn/go-todo-backend/internal/apperr"
)

func TestMetrics_CountersInflightAndUnmatchedLabel(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.GET("/todo/:id", func(c *gin.Context) { c.String(http.StatusOK, "hello") })
	r.GET("/statusonly", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	baseOK := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/todo/:id", "200"))
	base404 := testutil.ToFloat64(httpReqs.WithLabelValues("GET", unmatchedPath, "404"))

	for _, p := range []string{"/todo/1", "/todo/2", "/does-not-exist", "/statusonly"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, p, nil))
	}

	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/todo/:id", "200")); got != baseOK+2 {
		t.Fatalf("route counter = %v; want %v", got, baseOK+2)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", unmatchedPath, "404")); got != base404+1 {
		t.Fatalf("unmatched counter = %v; want %v", got, base404+1)
	}
	if inFlight := testutil.ToFloat64(httpInflight); inFlight != 0 {
		t.Fatalf("httpInflight = %v; want 0", inFlight)
	}
}

func TestMetrics_ErrorCounter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Errors(ErrorOptions{}))
	r.GET("/missing", func(c *gin.Context) {
		_ = c.Error(apperr.NotFound("Todo", 1))
		c.Abort()
	})
	r.GET("/boom", func(c *gin.Context) {
		_ = c.Error(errors.New("boom"))
	})

	base404 := testutil.ToFloat64(httpErrors.WithLabelValues(apperr.CodeNotFound, "404"))
	base500 := testutil.ToFloat64(httpErrors.WithLabelValues(apperr.CodeInternal, "500"))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	if got := testutil.ToFloat64(httpErrors.WithLabelValues(apperr.CodeNotFound, "404")); got != base404+1 {
		t.Fatalf("404 errors = %v want %v", got, base404+1)
	}
	if got := testutil.ToFloat64(httpErrors.WithLabelValues(apperr.CodeInternal, "500")); got != base500+1 {
		t.Fatalf("500 errors = %v want %v", got, base500+1)
	}
}

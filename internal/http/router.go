// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, error mapping, metrics,
// CORS, security headers, authentication, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - One place turns failures into responses (middleware.Errors)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Every /todo route sits behind the bearer-token gate
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-todo-backend/docs"
	"github.com/tbourn/go-todo-backend/internal/apperr"
	"github.com/tbourn/go-todo-backend/internal/auth"
	"github.com/tbourn/go-todo-backend/internal/config"
	"github.com/tbourn/go-todo-backend/internal/domain"
	"github.com/tbourn/go-todo-backend/internal/http/handlers"
	"github.com/tbourn/go-todo-backend/internal/http/middleware"
	"github.com/tbourn/go-todo-backend/internal/repo"
	"github.com/tbourn/go-todo-backend/internal/services"
)

// maxBodyBytes caps every request body.
const maxBodyBytes = 1 << 20

// userRepoShim adapts the repository free functions to services.UserRepo.
type userRepoShim struct{}

func (userRepoShim) CreateUser(ctx context.Context, db *gorm.DB, email, hash string) (*domain.User, error) {
	return repo.CreateUser(ctx, db, email, hash)
}

func (userRepoShim) GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	return repo.GetUserByEmail(ctx, db, email)
}

func (userRepoShim) UserExists(ctx context.Context, db *gorm.DB, email string) (bool, error) {
	return repo.UserExists(ctx, db, email)
}

func (userRepoShim) CountUsers(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.CountUsers(ctx, db)
}

// todoRepoShim adapts the repository free functions to services.TodoRepo.
type todoRepoShim struct{}

func (todoRepoShim) ListTodos(ctx context.Context, db *gorm.DB, userID uint, f repo.TodoFilter) ([]domain.Todo, error) {
	return repo.ListTodos(ctx, db, userID, f)
}

func (todoRepoShim) GetTodo(ctx context.Context, db *gorm.DB, id, userID uint) (*domain.Todo, error) {
	return repo.GetTodo(ctx, db, id, userID)
}

func (todoRepoShim) CreateTodo(ctx context.Context, db *gorm.DB, t *domain.Todo) error {
	return repo.CreateTodo(ctx, db, t)
}

func (todoRepoShim) UpdateTodoFields(ctx context.Context, db *gorm.DB, t *domain.Todo) error {
	return repo.UpdateTodoFields(ctx, db, t)
}

func (todoRepoShim) ReplaceTodoTags(ctx context.Context, db *gorm.DB, todoID uint, tags []string) error {
	return repo.ReplaceTodoTags(ctx, db, todoID, tags)
}

func (todoRepoShim) DeleteTodo(ctx context.Context, db *gorm.DB, id, userID uint) error {
	return repo.DeleteTodo(ctx, db, id, userID)
}

func (todoRepoShim) TodosStats(ctx context.Context, db *gorm.DB, userID uint) (int64, *time.Time, error) {
	return repo.TodosStats(ctx, db, userID)
}

func (todoRepoShim) GetIdempotency(ctx context.Context, db *gorm.DB, userID uint, scope, key string, now time.Time) (*domain.Idempotency, error) {
	return repo.GetIdempotency(ctx, db, userID, scope, key, now)
}

func (todoRepoShim) CreateIdempotency(ctx context.Context, db *gorm.DB, userID uint, scope, key string, resourceID uint, status int, ttl time.Duration) (*domain.Idempotency, error) {
	return repo.CreateIdempotency(ctx, db, userID, scope, key, resourceID, status, ttl)
}

// Services bundles the application services built on one store.
type Services struct {
	Auth   *services.AuthService
	Todos  *services.TodoService
	Tokens *auth.Manager
}

// NewServices builds the services over db using the signing and idempotency
// settings from cfg.
func NewServices(db *gorm.DB, cfg config.Config) *Services {
	tokens := auth.NewManager(cfg.JWT)
	todos := services.NewTodoService(db, todoRepoShim{})
	todos.IdempotencyTTL = cfg.IdempotencyTTL
	return &Services{
		Auth:   services.NewAuthService(db, userRepoShim{}, tokens),
		Todos:  todos,
		Tokens: tokens,
	}
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the public API under cfg.APIBasePath. rdb is optional;
// when nil the rate limiter keeps its buckets in process memory.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Metrics: observes the final status written by the error mapper
//  5. Gzip: wraps the writer the mapper responds through; 204 and 304
//     responses go out without a Content-Encoding
//  6. Errors: panics and c.Errors become the standard error body
//  7. CORS and security headers
//  8. Body size limiter
//
// Protected routes then add Authenticate and the rate limiter; creates also
// run the idempotency validator.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, rdb redis.UniversalClient, svc *Services, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))
	r.Use(middleware.Metrics())
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	r.Use(identityWhenBodiless())
	r.Use(middleware.Errors(middleware.ErrorOptions{Development: cfg.IsDevelopment()}))
	r.Use(corsMiddleware(cfg.CORS))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		Private:      true,
		EnablePolicy: true,
	}))
	r.Use(limitBody(maxBodyBytes))

	r.NoRoute(func(c *gin.Context) {
		middleware.WriteError(c, http.StatusNotFound, apperr.CodeNotFound, "Route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		middleware.WriteError(c, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", healthHandler(db))
	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(svc.Auth, svc.Todos)
	limit := rateLimiter(rdb, cfg)

	api := groupWithPrefix(r, cfg.APIBasePath)

	// Credential endpoints are limited per client IP.
	authGroup := api.Group("/auth", limit)
	{
		authGroup.POST("/signup", h.Signup)
		authGroup.POST("/login", h.Login)
	}

	// Only creates take an Idempotency-Key; the validator runs ahead of the
	// limiter so replays pass.
	idem := middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, idempotencyLookup(db))
	protected := api.Group("", middleware.Authenticate(svc.Tokens))
	for _, base := range []string{"/todo", "/todos"} {
		protected.GET(base, limit, h.ListTodos)
		protected.POST(base, idem, limit, h.CreateTodo)
		protected.GET(base+"/:id", limit, h.GetTodo)
		protected.PUT(base+"/:id", limit, h.UpdateTodo)
		protected.DELETE(base+"/:id", limit, h.DeleteTodo)
	}
}

// healthHandler reports liveness together with store reachability.
func healthHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := repo.Ping(c.Request.Context(), db); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("health: db ping failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "db": "down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "up"})
	}
}

// idempotencyLookup answers the validator from the todo-create records.
func idempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, userID uint, key string, now time.Time) (bool, error) {
		rec, err := repo.GetIdempotency(ctx, db, userID, services.ScopeTodoCreate, key, now)
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return rec != nil, nil
	}
}

// rateLimiter picks the shared Redis window when a client is configured and
// the in-process token bucket otherwise.
func rateLimiter(rdb redis.UniversalClient, cfg config.Config) gin.HandlerFunc {
	if rdb != nil {
		perMinute := int(cfg.RateRPS * 60)
		if perMinute < cfg.RateBurst {
			perMinute = cfg.RateBurst
		}
		return middleware.NewRedisRateLimiter(rdb, perMinute, time.Minute, middleware.KeyByUserOrIP()).Handler()
	}
	return middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP()).Handler()
}

// corsMiddleware allows the configured origins, or any origin without
// credentials when the list is empty.
func corsMiddleware(cc config.CORSConfig) gin.HandlerFunc {
	conf := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", middleware.HeaderIdempotencyKey},
		ExposeHeaders: []string{
			"X-Request-ID", "Content-Length", "ETag", "Location", "Retry-After",
			middleware.HeaderIdempotencyReplayed,
			"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset",
		},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(cc.AllowedOrigins) == 0 {
		conf.AllowAllOrigins = true
	} else {
		conf.AllowOrigins = cc.AllowedOrigins
	}
	return cors.New(conf)
}

// identityWhenBodiless drops the Content-Encoding set by gzip from 204 and
// 304 responses, which carry no body to encode. It must run inside gzip.
func identityWhenBodiless() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer = bodilessWriter{c.Writer}
		c.Next()
		if !c.Writer.Written() {
			stripEncoding(c.Writer)
		}
	}
}

// bodilessWriter catches headers flushed early, e.g. by AbortWithStatus.
type bodilessWriter struct {
	gin.ResponseWriter
}

func (w bodilessWriter) WriteHeaderNow() {
	if !w.Written() {
		stripEncoding(w.ResponseWriter)
	}
	w.ResponseWriter.WriteHeaderNow()
}

func stripEncoding(w gin.ResponseWriter) {
	switch w.Status() {
	case http.StatusNoContent, http.StatusNotModified:
		w.Header().Del("Content-Encoding")
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

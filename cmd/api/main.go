// Command api serves the todo REST API.
//
//	@title						Todo API
//	@version					1.0
//	@description				Multi-user todo backend with JWT authentication.
//	@BasePath					/api
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Type "Bearer" followed by a space and the JWT.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-todo-backend/internal/config"
	httpapi "github.com/tbourn/go-todo-backend/internal/http"
	"github.com/tbourn/go-todo-backend/internal/observability"
	"github.com/tbourn/go-todo-backend/internal/repo"
	"github.com/tbourn/go-todo-backend/internal/services"
	"github.com/tbourn/go-todo-backend/internal/sysutil"
	"github.com/tbourn/go-todo-backend/internal/validation"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	shutdownGrace = 10 * time.Second
	purgeInterval = 15 * time.Minute
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("reading .env")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	sysutil.ConfigureLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("api exited")
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appVersion := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)
	shutdownTracing, err := observability.Setup(ctx, cfg.OTEL, appVersion)
	if err != nil {
		return err
	}
	defer func() {
		if err := observability.Flush(shutdownTracing, 5*time.Second); err != nil {
			log.Warn().Err(err).Msg("tracer flush")
		}
	}()

	db, err := repo.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer func() {
		if err := repo.Close(db); err != nil {
			log.Warn().Err(err).Msg("closing database")
		}
	}()
	if cfg.OTEL.Enabled {
		if err := repo.Instrument(db); err != nil {
			return err
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}
	validation.Init()

	svc := httpapi.NewServices(db, cfg)
	if cfg.IsDevelopment() && cfg.SeedDevData {
		if err := services.SeedDevelopmentData(ctx, svc.Auth, svc.Todos); err != nil {
			return err
		}
	}

	var rdb redis.UniversalClient
	if cfg.RateRedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RateRedisAddr})
		defer rdb.Close()
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, rdb, svc, cfg)

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go purgeIdempotency(ctx, db, purgeInterval)

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("env", cfg.Env).
			Str("db", cfg.DB.Driver).
			Str("version", appVersion).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// purgeIdempotency deletes expired idempotency records every interval until
// ctx is cancelled.
func purgeIdempotency(ctx context.Context, db *gorm.DB, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeExpiredIdempotency(ctx, db, now.UTC())
			if err != nil {
				log.Warn().Err(err).Msg("purging idempotency records")
				continue
			}
			if n > 0 {
				log.Debug().Int64("deleted", n).Msg("purged idempotency records")
			}
		}
	}
}

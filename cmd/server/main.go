// Command server runs the movie rental HTTP API.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/filmbay/rental-service/internal/app"
	"github.com/filmbay/rental-service/internal/app/httpapi"
	"github.com/filmbay/rental-service/internal/app/storage/postgres"
	"github.com/filmbay/rental-service/internal/app/storage/rediscache"
	"github.com/filmbay/rental-service/internal/auth"
	"github.com/filmbay/rental-service/internal/config"
	"github.com/filmbay/rental-service/internal/middleware"
	"github.com/filmbay/rental-service/internal/platform/migrations"
	"github.com/filmbay/rental-service/pkg/logger"
)

func main() {
	// .env is optional; the compose descriptor injects everything in containers
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Service: "rental-service",
	})

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	db, err := openDatabase(cfg.Database, log)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := migrations.Apply(ctx, db); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	store := postgres.New(db)
	stores := app.Stores{
		Users:        store,
		Movies:       store,
		Orders:       store,
		Interactions: store,
	}

	opts := []app.Option{
		app.WithAdminAllowlist(splitCSV(os.Getenv("ADMIN_USERNAMES"))),
	}
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		opts = append(opts, app.WithMovieCache(rediscache.New(client, cfg.Redis.TTL, log)))
		log.Infof("movie cache enabled on %s", cfg.Redis.Addr)
	}

	application, err := app.New(stores, log, opts...)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer startCancel()
	if err := application.Start(startCtx); err != nil {
		return fmt.Errorf("start application: %w", err)
	}

	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	router := mux.NewRouter()
	handler := httpapi.NewHandler(application, issuer, log)
	handler.Register(router)

	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()

	rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitPerSec, cfg.HTTP.RateLimitBurst, log)
	rateLimiter.StartCleanup(serverCtx, 10*time.Minute)

	chain := middleware.NewCORSMiddleware(cfg.HTTP.AllowedOrigins).Handler(
		middleware.NewTracingMiddleware(log).Handler(
			middleware.NewAuthMiddleware(issuer, log, []string{"/metrics", "/v1/system/health"}).Handler(
				rateLimiter.Handler(router),
			),
		),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.RequestTimeoutSec) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Infof("received %s, shutting down", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http server shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("application shutdown")
	}

	log.Info("shutdown complete")
	return nil
}

func openDatabase(cfg config.DatabaseConfig, log *logger.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database at %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	log.Infof("connected to postgres at %s:%d", cfg.Host, cfg.Port)
	return db, nil
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/Ph4tZ4/social-main/internal/auth"
	"github.com/Ph4tZ4/social-main/internal/config"
	"github.com/Ph4tZ4/social-main/internal/database"
	"github.com/Ph4tZ4/social-main/internal/dispatch"
	"github.com/Ph4tZ4/social-main/internal/domain"
	"github.com/Ph4tZ4/social-main/internal/gateway"
	"github.com/Ph4tZ4/social-main/internal/logging"
	"github.com/Ph4tZ4/social-main/internal/redis"
	"github.com/Ph4tZ4/social-main/internal/registry"
	"github.com/Ph4tZ4/social-main/internal/server"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	return pool
}

func setupRedis(cfg *config.Config) *redis.Client {
	if cfg.RedisURL == "" {
		return nil
	}

	client, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to create Redis client", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func runGracefulShutdown(srv *server.Server, reg *registry.Registry) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		reg.Stop()
		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	pool := setupDB(cfg)
	defer pool.Close()

	redisClient := setupRedis(cfg)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	socialRepo := database.NewSocialRepo(pool)

	var followerCache *redis.FollowerCache
	var followers domain.FollowerDirectory = socialRepo
	if redisClient != nil {
		followerCache = redis.NewFollowerCache(redisClient.Underlying(), socialRepo)
		followers = followerCache
	}

	verifier := auth.NewVerifier(cfg.JWTSecret)
	reg := registry.NewRegistry(clock)
	gw := gateway.New(reg, verifier, clock)

	// The dispatcher is the contract the API layer calls after a domain write.
	dispatcher := dispatch.New(gw, socialRepo, followers)

	srv := server.NewServer(cfg, gw, dispatcher, pool, redisClient, followerCache)
	done := runGracefulShutdown(srv, reg)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/actuallystonmai/measurement-service/internal/cache"
	"github.com/actuallystonmai/measurement-service/internal/config"
	"github.com/actuallystonmai/measurement-service/internal/handler"
	"github.com/actuallystonmai/measurement-service/internal/logging"
	"github.com/actuallystonmai/measurement-service/internal/model"
	"github.com/actuallystonmai/measurement-service/internal/normalize"
	"github.com/actuallystonmai/measurement-service/internal/repository"
	"github.com/actuallystonmai/measurement-service/internal/router"
	"github.com/actuallystonmai/measurement-service/internal/service"
	"github.com/actuallystonmai/measurement-service/seeds"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	envFile := flag.String("env", "", "optional .env file to load before reading the environment")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*envFile)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logging.New(cfg.LogLevel)

	ctx := context.Background()

	// ------------ PostgreSQL ---------------
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		fatal("failed to parse database config", err)
	}
	poolConfig.MaxConns = int32(cfg.DBPoolSize)
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		fatal("failed to connect to database", err)
	}
	defer pool.Close()

	if err := waitForDB(ctx, pool); err != nil {
		fatal("database not ready", err)
	}
	slog.Info("connected to PostgreSQL")

	// ------------ Run Migrations ---------------
	// for migrate-down using CLI command
	if flag.Arg(0) == "migrate-down" {
		if err := runMigration(ctx, pool, cfg.MigrationsDir, "create_tables.down.sql"); err != nil {
			fatal("failed to migrate down", err)
		}
		slog.Info("migrations dropped")
		return
	}

	if err := runMigration(ctx, pool, cfg.MigrationsDir, "create_tables.up.sql"); err != nil {
		fatal("failed to migrate up", err)
	}

	// ------------ Setup Seed Data ---------------
	if err := checkSeed(ctx, pool); err != nil {
		fatal("failed to check seed", err)
	}

	// ---------------- Redis --------------------
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		fatal("failed to parse redis url", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		// the cache is optional; requests still succeed without it
		slog.Warn("redis unavailable, continuing without cache", "error", err)
	} else {
		slog.Info("connected to Redis")
	}

	// ---------------- Wiring --------------------
	svc := service.NewService(
		normalize.NewEngine(),
		repository.NewRepository(pool),
		cache.NewCache(redisClient, cfg.CacheTTL),
		model.NewClient(),
		service.Options{
			ReviewThreshold:  cfg.ReviewAccuracyThreshold,
			BatchConcurrency: cfg.BatchConcurrency,
		},
	)
	h := handler.NewHandler(svc)

	// ---------------- Server --------------------
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.Setup(h, cfg.APIKey),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server running", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("server failed", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}

func waitForDB(ctx context.Context, pool *pgxpool.Pool) error {
	for i := 0; i < 30; i++ {
		if err := pool.Ping(ctx); err == nil {
			return nil
		}
		slog.Info("waiting for database", "attempt", i+1, "max", 30)
		time.Sleep(1 * time.Second)
	}
	return fmt.Errorf("database connection timeout after 30s")
}

func runMigration(ctx context.Context, pool *pgxpool.Pool, dir, name string) error {
	sql, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("read migration file: %w", err)
	}
	if _, err := pool.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("execute migration %s: %w", name, err)
	}
	slog.Info("migration applied", "file", name)
	return nil
}

func checkSeed(ctx context.Context, pool *pgxpool.Pool) error {
	var count int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM landmark_sets").Scan(&count); err != nil {
		return fmt.Errorf("check landmark_sets count: %w", err)
	}
	if count > 0 {
		slog.Info("database already seeded, skipping", "landmark_sets", count)
		return nil
	}
	return seeds.Setup(ctx, pool)
}

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/mcoot/wordsync/internal/api"
	"github.com/mcoot/wordsync/internal/factory"
	"github.com/mcoot/wordsync/internal/progress"
	redisstorage "github.com/mcoot/wordsync/internal/storage/redis"
)

// hubCleanupInterval is how often event hubs without streams are dropped
const hubCleanupInterval = time.Minute

func main() {
	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(os.Getenv("WORDSYNC_LOG_LEVEL")),
	}))
	slog.SetDefault(logger)

	// Build factory config from environment
	progressCfg := progress.DefaultConfig()
	if raw := os.Getenv("WORDSYNC_DEBOUNCE"); raw != "" {
		window, err := time.ParseDuration(raw)
		if err != nil || window <= 0 {
			logger.Error("invalid WORDSYNC_DEBOUNCE", slog.String("value", raw))
			os.Exit(1)
		}
		progressCfg.DebounceWindow = window
	}

	cfg := factory.Config{
		ProgressionPath: os.Getenv("WORDSYNC_PROGRESSION"),
		Progress:        progressCfg,
		Logger:          logger,
		StorageType:     os.Getenv("STORAGE_TYPE"),
	}

	// Configure Redis if storage type is redis
	if cfg.StorageType == factory.StorageTypeRedis {
		redisURL := os.Getenv("REDIS_URL")
		if redisURL == "" {
			logger.Error("REDIS_URL required when STORAGE_TYPE=redis")
			os.Exit(1)
		}
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = redisURL
		cfg.RedisConfig = &redisCfg
	}

	app, err := factory.New(cfg)
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	router := api.NewRouter(api.RouterConfig{
		Logger:     logger,
		Engine:     app.Engine,
		HubManager: app.HubManager,
	})

	serverConfig := api.DefaultServerConfig()
	if raw := os.Getenv("WORDSYNC_PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			logger.Error("invalid WORDSYNC_PORT", slog.String("value", raw))
			os.Exit(1)
		}
		serverConfig.Port = port
	}
	server := api.NewServer(router, serverConfig, logger)
	// Open event streams would otherwise hold Shutdown until its timeout
	server.OnShutdown(app.HubManager.Close)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		ticker := time.NewTicker(hubCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				app.HubManager.CleanupEmptyHubs()
			case <-ctx.Done():
				return
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("server started",
		slog.String("addr", server.Addr()),
		slog.Int("progression_units", app.Order.Len()),
		slog.Duration("debounce", progressCfg.DebounceWindow))

	exitCode := 0
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			exitCode = 1
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
			exitCode = 1
		}
	}

	// Queued counters and in-flight batches are written before exit
	closeCtx, cancel := context.WithTimeout(context.Background(), progressCfg.WriteTimeout)
	defer cancel()
	if err := app.Close(closeCtx); err != nil {
		logger.Error("failed to flush progress", slog.String("error", err.Error()))
		exitCode = 1
	}

	logger.Info("server stopped")
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

func logLevel(raw string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return slog.LevelInfo
	}
	return level
}

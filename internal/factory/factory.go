package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mcoot/wordsync/internal/api/sse"
	"github.com/mcoot/wordsync/internal/dependencies/clock"
	"github.com/mcoot/wordsync/internal/dependencies/ids"
	"github.com/mcoot/wordsync/internal/progress"
	"github.com/mcoot/wordsync/internal/progression"
	"github.com/mcoot/wordsync/internal/storage"
	"github.com/mcoot/wordsync/internal/storage/memory"
	redisstorage "github.com/mcoot/wordsync/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// DefaultUnits is the length of the sequential progression used when no
// progression file is configured
const DefaultUnits = 100

// App contains all wired application components
type App struct {
	// Storage
	Gateway storage.Gateway

	// External dependencies
	Clock clock.Clock
	IDs   ids.Generator

	// Services
	Order       *progression.Order
	Engine      *progress.Engine
	HubManager  *sse.HubManager
	Broadcaster *sse.Broadcaster

	broadcastDone chan struct{}
	closer        io.Closer
}

// Config holds configuration for the application factory
type Config struct {
	// ProgressionPath is a YAML file listing content unit ids (optional)
	// If empty, units 1..DefaultUnits are used
	ProgressionPath string
	// Progress holds engine rewards and timings (optional)
	// If zero value, defaults to progress.DefaultConfig()
	Progress progress.Config
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	order := progression.Sequential(DefaultUnits)
	if cfg.ProgressionPath != "" {
		loaded, err := progression.LoadFile(cfg.ProgressionPath)
		if err != nil {
			return nil, err
		}
		order = loaded
	}

	clk := clock.New()
	gen := ids.New()

	var gateway storage.Gateway
	var closer io.Closer
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		gateway = memory.New(clk, gen)
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig, gen, logger)
		if err != nil {
			return nil, err
		}
		gateway = redisStore
		closer = redisStore
	default:
		return nil, fmt.Errorf("invalid StorageType %q: must be 'memory' or 'redis'", storageType)
	}

	progressCfg := cfg.Progress
	if progressCfg == (progress.Config{}) {
		progressCfg = progress.DefaultConfig()
	}

	app := newWithDependencies(gateway, clk, gen, order, progressCfg, logger)
	app.closer = closer
	return app, nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	gateway storage.Gateway,
	clk clock.Clock,
	gen ids.Generator,
	order *progression.Order,
	progressCfg progress.Config,
	logger *slog.Logger,
) *App {
	engine := progress.NewEngine(progressCfg, gateway, order, clk, logger)
	hubManager := sse.NewHubManager(logger)
	broadcaster := sse.NewBroadcaster(hubManager, logger)

	app := &App{
		Gateway:       gateway,
		Clock:         clk,
		IDs:           gen,
		Order:         order,
		Engine:        engine,
		HubManager:    hubManager,
		Broadcaster:   broadcaster,
		broadcastDone: make(chan struct{}),
	}

	// The engine closes this stream when it shuts down
	events, _ := engine.Subscribe()
	go func() {
		defer close(app.broadcastDone)
		broadcaster.Run(context.Background(), events)
	}()

	return app
}

// Close flushes queued writes, waits for in-flight batches and releases the
// storage connection
func (a *App) Close(ctx context.Context) error {
	err := a.Engine.Close(ctx)

	select {
	case <-a.broadcastDone:
	case <-ctx.Done():
	}
	a.HubManager.Close()

	if a.closer != nil {
		err = errors.Join(err, a.closer.Close())
	}
	return err
}

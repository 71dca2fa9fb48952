package factory

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/packsmith/launcher/internal/bus"
	"github.com/packsmith/launcher/internal/dependencies/clock"
	"github.com/packsmith/launcher/internal/dependencies/random"
	"github.com/packsmith/launcher/internal/dispatch"
	"github.com/packsmith/launcher/internal/identity"
	"github.com/packsmith/launcher/internal/identity/legacy"
	"github.com/packsmith/launcher/internal/identity/modern"
	"github.com/packsmith/launcher/internal/model"
	"github.com/packsmith/launcher/internal/roster"
	"github.com/packsmith/launcher/internal/roster/file"
	"github.com/packsmith/launcher/internal/roster/redisstore"
	"github.com/packsmith/launcher/internal/services/accounts"
	"github.com/packsmith/launcher/internal/tasks"
	"github.com/packsmith/launcher/internal/view"
)

// Storage type constants
const (
	StorageTypeFile  = "file"
	StorageTypeRedis = "redis"
)

// App contains all wired application components
type App struct {
	// Storage
	Store   *roster.Store
	Backend roster.Backend

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Infrastructure
	Queue  *dispatch.Queue
	Bus    *bus.Bus
	Runner *tasks.Runner

	// Identity clients
	Legacy identity.LegacyClient
	Modern identity.ModernClient

	// Coordinator
	Coordinator *accounts.Coordinator
}

// Config holds configuration for the application factory
type Config struct {
	// RosterPath is where the file backend keeps the roster
	// (required when StorageType is "file")
	RosterPath string
	// StorageType selects the roster backend ("file" or "redis")
	// If empty, defaults to "file"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstore.Config

	// LegacyConfig holds the legacy identity provider settings
	LegacyConfig legacy.Config
	// ModernConfig holds the modern identity provider settings
	ModernConfig modern.Config

	// View is the presentation surface the coordinator talks to (required)
	View view.View

	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
}

// New creates a new application with all dependencies wired. The roster is
// loaded from the backend; a malformed roster surfaces as a
// model.ErrRosterFormat-wrapped error so the caller can offer quarantine.
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.View == nil {
		return nil, errors.New("View is required")
	}

	var backend roster.Backend
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeFile
	}

	switch storageType {
	case StorageTypeFile:
		if cfg.RosterPath == "" {
			return nil, errors.New("RosterPath required when StorageType is file")
		}
		fileBackend, err := file.New(cfg.RosterPath, logger)
		if err != nil {
			return nil, err
		}
		backend = fileBackend
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisBackend, err := redisstore.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		backend = redisBackend
	default:
		return nil, errors.New("invalid StorageType: must be 'file' or 'redis'")
	}

	clk := clock.New()
	rnd := random.New()
	legacyClient := legacy.New(cfg.LegacyConfig, logger)
	modernClient := modern.New(cfg.ModernConfig, logger)

	app := newWithDependencies(backend, legacyClient, modernClient, cfg.View, clk, rnd, logger)

	if err := app.Store.Load(context.Background()); err != nil {
		if IsRosterFormatError(err) {
			// Hand back the wired app so the caller can quarantine the
			// broken roster and retry Load.
			return app, err
		}
		app.Shutdown()
		return nil, err
	}

	return app, nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(backend roster.Backend, legacyClient identity.LegacyClient, modernClient identity.ModernClient, v view.View, clk clock.Clock, rnd random.Random, logger *slog.Logger) *App {
	queue := dispatch.NewQueue(logger)
	changeBus := bus.New(queue, logger)
	runner := tasks.New(queue, v, logger)
	store := roster.New(backend, logger)

	coordinator := accounts.New(accounts.Config{
		Store:  store,
		Legacy: legacyClient,
		Modern: modernClient,
		Runner: runner,
		Queue:  queue,
		Bus:    changeBus,
		View:   v,
		Clock:  clk,
		Random: rnd,
		Logger: logger,
	})

	return &App{
		Store:       store,
		Backend:     backend,
		Clock:       clk,
		Random:      rnd,
		Queue:       queue,
		Bus:         changeBus,
		Runner:      runner,
		Legacy:      legacyClient,
		Modern:      modernClient,
		Coordinator: coordinator,
	}
}

// Shutdown stops the dispatch queue and releases the backend
func (a *App) Shutdown() {
	a.Queue.Close()
	if closer, ok := a.Backend.(io.Closer); ok {
		_ = closer.Close()
	}
}

// IsRosterFormatError reports whether the error from New means the roster
// file exists but could not be parsed
func IsRosterFormatError(err error) bool {
	return errors.Is(err, model.ErrRosterFormat)
}

// Package redisstore provides a Redis-backed roster backend for shared
// installs (gaming cafés, roaming profiles) where the roster must follow
// the user between machines. The whole document lives under a single key,
// so writes are atomic by construction.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/packsmith/launcher/internal/model"
	"github.com/packsmith/launcher/internal/roster"
)

// Config holds Redis connection settings
type Config struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379)
	URL string

	// Key is the key the roster document is stored under
	Key string

	// Pool settings
	PoolSize     int
	MinIdleConns int
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		URL:          "redis://localhost:6379",
		Key:          "launcher:roster",
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// Backend is a Redis-backed implementation of the roster backend
type Backend struct {
	client *redis.Client
	cfg    Config
}

// Ensure Backend implements the interface
var _ roster.Backend = (*Backend)(nil)

// New creates a Redis backend and verifies the connection
func New(cfg Config) (*Backend, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Backend{client: client, cfg: cfg}, nil
}

// NewWithClient creates a Redis backend with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Backend {
	if cfg.Key == "" {
		cfg.Key = DefaultConfig().Key
	}
	return &Backend{client: client, cfg: cfg}
}

// Close closes the Redis connection
func (b *Backend) Close() error {
	return b.client.Close()
}

func (b *Backend) Write(ctx context.Context, data []byte) error {
	return b.client.Set(ctx, b.cfg.Key, data, 0).Err()
}

func (b *Backend) Read(ctx context.Context) ([]byte, error) {
	data, err := b.client.Get(ctx, b.cfg.Key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrRosterNotFound
		}
		return nil, err
	}
	return data, nil
}

// Package file provides the standard roster backend: a single JSON document
// in the launcher's data directory, written atomically and guarded by an
// advisory lock so two launcher instances cannot clobber each other.
package file

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/packsmith/launcher/internal/model"
	"github.com/packsmith/launcher/internal/roster"
)

// Backend stores the roster document at a fixed path
type Backend struct {
	path   string
	lock   *flock.Flock
	logger *slog.Logger
}

// Ensure Backend implements the interface
var _ roster.Backend = (*Backend)(nil)

// New creates a file backend for the given path, creating the parent
// directory if needed and taking an advisory lock next to the roster file.
// It fails if another process holds the lock.
func New(path string, logger *slog.Logger) (*Backend, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking roster file: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("roster file %s is locked by another launcher instance", path)
	}

	return &Backend{
		path:   path,
		lock:   lock,
		logger: logger.With(slog.String("component", "roster-file")),
	}, nil
}

// Close releases the advisory lock
func (b *Backend) Close() error {
	return b.lock.Unlock()
}

// Write replaces the roster document atomically: write to a temp file in
// the same directory, fsync, then rename over the target.
func (b *Backend) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(b.path), filepath.Base(b.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp roster file: %w", err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("writing roster file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("syncing roster file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		cleanup()
		return fmt.Errorf("setting roster file mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing roster file: %w", err)
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing roster file: %w", err)
	}

	b.logger.Debug("roster written", slog.Int("bytes", len(data)))
	return nil
}

// Read returns the current roster document, or model.ErrRosterNotFound if
// no roster has been written yet
func (b *Backend) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.ErrRosterNotFound
		}
		return nil, fmt.Errorf("reading roster file: %w", err)
	}
	return data, nil
}

// Quarantine moves a malformed roster file aside so the launcher can start
// with an empty roster without destroying the damaged data. It returns the
// quarantine path.
func (b *Backend) Quarantine() (string, error) {
	quarantined := b.path + ".broken"
	if err := os.Rename(b.path, quarantined); err != nil {
		return "", fmt.Errorf("quarantining roster file: %w", err)
	}
	b.logger.Warn("malformed roster quarantined", slog.String("path", quarantined))
	return quarantined, nil
}

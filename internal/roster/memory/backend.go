// Package memory provides an in-memory roster backend. It exists for tests:
// it keeps the last written document in a byte slice and can be told to
// fail the next write, which is how persist-failure rollback is exercised.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/packsmith/launcher/internal/model"
	"github.com/packsmith/launcher/internal/roster"
)

// ErrWriteFailed is returned by a write armed with FailNextWrite
var ErrWriteFailed = errors.New("simulated write failure")

// Backend is an in-memory implementation of the roster backend
type Backend struct {
	mu            sync.Mutex
	data          []byte
	written       bool
	failNextWrite bool
	writes        int
}

// Ensure Backend implements the interface
var _ roster.Backend = (*Backend)(nil)

// New creates an empty in-memory backend
func New() *Backend {
	return &Backend{}
}

func (b *Backend) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failNextWrite {
		b.failNextWrite = false
		return ErrWriteFailed
	}

	b.data = make([]byte, len(data))
	copy(b.data, data)
	b.written = true
	b.writes++
	return nil
}

func (b *Backend) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.written {
		return nil, model.ErrRosterNotFound
	}
	data := make([]byte, len(b.data))
	copy(data, b.data)
	return data, nil
}

// FailNextWrite makes the next Write return ErrWriteFailed
func (b *Backend) FailNextWrite() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failNextWrite = true
}

// Writes returns the number of successful writes
func (b *Backend) Writes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes
}

// SetData seeds the backend with a document, as if it had been written
func (b *Backend) SetData(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = make([]byte, len(data))
	copy(b.data, data)
	b.written = true
}

package mocks

import (
	"fmt"

	"github.com/packsmith/launcher/internal/dependencies/random"
)

// MockRandom is a mock implementation of Random for testing.
// It hands out IDs from a script, falling back to a deterministic
// sequence once the script is exhausted.
type MockRandom struct {
	IDs  []string
	next int
}

// Ensure MockRandom implements Random
var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates a MockRandom that returns the given IDs in order
func NewMockRandom(ids ...string) *MockRandom {
	return &MockRandom{IDs: ids}
}

// ID returns the next scripted ID, or a padded sequential one
func (r *MockRandom) ID() string {
	defer func() { r.next++ }()
	if r.next < len(r.IDs) {
		return r.IDs[r.next]
	}
	return fmt.Sprintf("%032d", r.next)
}

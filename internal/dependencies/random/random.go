package random

import (
	"strings"

	"github.com/google/uuid"
)

// Random provides identifier generation that can be mocked for testing
type Random interface {
	// ID returns a fresh 32-hex-character identifier
	ID() string
}

// UUIDRandom implements Random using random (v4) UUIDs
type UUIDRandom struct{}

// New creates a new UUIDRandom
func New() *UUIDRandom {
	return &UUIDRandom{}
}

// ID returns a random UUID with the dashes stripped, giving the
// 32-hex form used for account IDs and legacy client tokens
func (r *UUIDRandom) ID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

package factory

import (
	"log/slog"

	"github.com/packsmith/launcher/internal/dependencies/clock"
	"github.com/packsmith/launcher/internal/dependencies/random"
	"github.com/packsmith/launcher/internal/identity"
	"github.com/packsmith/launcher/internal/roster"
	"github.com/packsmith/launcher/internal/view"
)

// NewForTesting wires an App from explicit dependencies, skipping backend
// construction and the initial roster load. Tests supply fake identity
// clients, a recording view and mock clock/random to get deterministic,
// isolated coordinator instances.
func NewForTesting(backend roster.Backend, legacyClient identity.LegacyClient, modernClient identity.ModernClient, v view.View, clk clock.Clock, rnd random.Random, logger *slog.Logger) *App {
	return newWithDependencies(backend, legacyClient, modernClient, v, clk, rnd, logger)
}

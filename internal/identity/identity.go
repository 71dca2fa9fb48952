// Package identity defines the clients that talk to the remote identity
// providers. Clients may block for seconds to minutes and are only ever
// invoked through the task runner; they never touch the roster.
//
// Error discipline: context cancellation (and only cancellation) surfaces
// as a non-nil error. Every other failure (transport errors, non-2xx
// responses, unparseable bodies) collapses into an AuthResult with
// OK=false and a human-readable message.
package identity

import (
	"context"
	"time"
)

// AuthResult is the outcome of a provider call
type AuthResult struct {
	OK           bool
	ErrorMessage string // provider's message, shown to the user verbatim

	DisplayName string // current in-game name
	UserID      string // provider-issued user id

	// Legacy family
	StoredAuthBlob string // opaque serialization of the successful authentication

	// Modern family
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// Failure builds a failed AuthResult with the given message
func Failure(message string) *AuthResult {
	return &AuthResult{OK: false, ErrorMessage: message}
}

// LegacyClient authenticates username/password accounts
type LegacyClient interface {
	// Authenticate performs a full username/password login
	Authenticate(ctx context.Context, username, password, clientToken string) (*AuthResult, error)
	// Validate checks whether a stored auth blob is still usable
	Validate(ctx context.Context, storedAuthBlob string) (bool, error)
	// ProfileName extracts the in-game name recorded in a stored auth
	// blob. No network call; ok is false when the blob carries none.
	ProfileName(storedAuthBlob string) (name string, ok bool)
}

// ModernClient authenticates OAuth-style token accounts
type ModernClient interface {
	// InteractiveLogin drives an out-of-band flow through the user's browser
	InteractiveLogin(ctx context.Context) (*AuthResult, error)
	// Refresh exchanges a refresh token for fresh tokens
	Refresh(ctx context.Context, refreshToken string) (*AuthResult, error)
	// Profile looks up the account profile for an access token
	Profile(ctx context.Context, accessToken string) (*AuthResult, error)
}

package model

import "time"

// AccountID uniquely identifies an account across the launcher
type AccountID string

// Family is the authentication scheme backing an account
type Family string

const (
	// FamilyLegacy is the username/password scheme
	FamilyLegacy Family = "legacy"
	// FamilyModern is the OAuth-style token scheme
	FamilyModern Family = "modern"
)

// Account represents a game account known to the launcher.
// The two families share the common fields; family-specific fields are
// populated according to the Family tag rather than via a type hierarchy.
type Account struct {
	ID          AccountID
	Family      Family
	DisplayName string // current in-game name reported by the provider
	Username    string // locally entered username/email
	MustRelogin bool   // refresh failed; interactive login required
	CreatedAt   time.Time

	// Legacy family
	ClientToken    string // 32-hex local identifier, stable for the account's lifetime
	StoredAuthBlob string // opaque serialization of the last successful authentication
	PasswordCache  string // held in memory only, never persisted

	// Modern family
	AccessToken       string
	RefreshToken      string
	AccessTokenExpiry time.Time
	UserID            string // provider-issued user id
}

// IsLegacy reports whether the account uses the username/password family
func (a *Account) IsLegacy() bool {
	return a.Family == FamilyLegacy
}

// IsModern reports whether the account uses the OAuth-style token family
func (a *Account) IsModern() bool {
	return a.Family == FamilyModern
}

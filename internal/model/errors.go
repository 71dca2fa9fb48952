package model

import "errors"

// Common errors used across the application
var (
	// Roster errors
	ErrAccountNotFound = errors.New("account not found")
	ErrUsernameExists  = errors.New("an account with this username already exists")
	ErrRosterNotFound  = errors.New("roster file not found")
	ErrRosterFormat    = errors.New("roster file is malformed")

	// Coordinator errors
	ErrBusy           = errors.New("another account operation is already in progress")
	ErrWrongFamily    = errors.New("operation does not apply to this account family")
	ErrNoRefreshToken = errors.New("account has no refresh token")
)

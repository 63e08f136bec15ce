package auth

import "errors"

// Sentinel errors for the account and session lifecycle. Callers classify
// with errors.Is; details are attached via fmt.Errorf("%w: ...", err).
var (
	ErrNotFound     = errors.New("auth: not found")
	ErrConflict     = errors.New("auth: already exists")
	ErrInvalidInput = errors.New("auth: invalid input")

	// ErrInvalidCredentials covers every failed login the same way, no matter
	// whether the email or the secret was wrong.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrUnknownToken and ErrExpiredToken are surfaced to clients with one
	// shared unauthorized message; the split exists for logging and tests.
	ErrUnknownToken = errors.New("auth: unknown token")
	ErrExpiredToken = errors.New("auth: expired token")

	ErrInactiveAccount  = errors.New("auth: inactive account")
	ErrInsufficientRole = errors.New("auth: insufficient role")
	ErrCrossTenant      = errors.New("auth: cross-tenant access denied")
)

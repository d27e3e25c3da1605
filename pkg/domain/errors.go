package domain

import "errors"

// Authentication errors. These are the only outcomes surfaced to callers.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionExpired     = errors.New("session expired")
	ErrInvalidCode        = errors.New("invalid code")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// Input shape errors, treated as verification failures.
var (
	ErrMalformedSecret = errors.New("malformed secret")
	ErrMalformedCode   = errors.New("malformed code")
)

// Internal errors. Never surfaced distinctly from the errors above.
var (
	ErrAccountNotFound            = errors.New("account not found")
	ErrUsernameTaken              = errors.New("username already taken")
	ErrPendingTokenNotFound       = errors.New("pending token not found")
	ErrPendingTokenExpired        = errors.New("pending token expired")
	ErrSessionNotFound            = errors.New("session not found")
	ErrSecondFactorAlreadyEnabled = errors.New("second factor already enabled")
)

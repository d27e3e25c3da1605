package domain

import "time"

// AttemptRecord is an anonymized login attempt handed to the audit sink.
type AttemptRecord struct {
	MaskedUsername      string
	MaskedSourceAddress string
	UserAgent           string
	Succeeded           bool
	FailureReason       string
	Timestamp           time.Time
}

// Failure reasons recorded on attempt records.
const (
	FailureInvalidCredentials = "invalid_credentials"
	FailureInvalidCode        = "invalid_code"
	FailureSessionExpired     = "session_expired"
	FailureServiceUnavailable = "service_unavailable"
)

package domain

// AuthState is a position in the login state machine.
type AuthState int

const (
	StateAnonymous AuthState = iota
	StatePasswordVerified
	StateSecondFactorPending
	StateSecondFactorVerified
	StateAuthenticated
)

func (s AuthState) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StatePasswordVerified:
		return "password_verified"
	case StateSecondFactorPending:
		return "second_factor_pending"
	case StateSecondFactorVerified:
		return "second_factor_verified"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

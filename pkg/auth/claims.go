package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tendant/secure-login/pkg/domain"
)

// ErrInvalidClaims is returned when a claims token fails validation.
var ErrInvalidClaims = errors.New("invalid claims token")

// SessionClaims is the signed view of a session handed to authorization
// collaborators.
type SessionClaims struct {
	jwt.RegisteredClaims
	Username             string `json:"username"`
	SecondFactorEnabled  bool   `json:"second_factor_enabled"`
	SecondFactorVerified bool   `json:"second_factor_verified"`
}

// ClaimsIssuer signs and parses HS256 session claims.
type ClaimsIssuer struct {
	key    []byte
	issuer string
	now    func() time.Time
}

// NewClaimsIssuer creates a claims issuer.
func NewClaimsIssuer(key []byte, issuer string) *ClaimsIssuer {
	return &ClaimsIssuer{key: key, issuer: issuer, now: time.Now}
}

// Issue signs claims describing session and account. The token expires with
// the session's current expiry.
func (c *ClaimsIssuer) Issue(session *domain.Session, account *domain.Account) (string, error) {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID.String(),
			ID:        session.ID.String(),
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(c.now()),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
		Username:             account.Username,
		SecondFactorEnabled:  account.TOTPEnabled,
		SecondFactorVerified: session.SecondFactorVerified,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.key)
}

// Parse validates a claims token and returns its claims.
func (c *ClaimsIssuer) Parse(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidClaims
		}
		return c.key, nil
	}, jwt.WithIssuer(c.issuer), jwt.WithTimeFunc(c.now))
	if err != nil {
		return nil, ErrInvalidClaims
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	return claims, nil
}

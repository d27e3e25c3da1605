package auth

import (
	"encoding/base32"
	"io"
	"strings"

	"github.com/tendant/secure-login/pkg/domain"
)

// MinSecretLength is the smallest TOTP secret generated (160 bits, RFC 4226).
const MinSecretLength = 20

var secretEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateSecret returns n cryptographically random bytes, at least MinSecretLength.
func GenerateSecret(r io.Reader, n int) ([]byte, error) {
	if n < MinSecretLength {
		n = MinSecretLength
	}
	b := make([]byte, n)
	if _, err := randomBytes(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// EncodeSecret returns the unpadded upper-case base32 form of a secret.
func EncodeSecret(secret []byte) string {
	return secretEncoding.EncodeToString(secret)
}

// DecodeSecret parses base32 text produced by EncodeSecret or an authenticator
// app. Case and embedded spaces are ignored; padding, when present, must be
// exactly what RFC 4648 requires.
func DecodeSecret(text string) ([]byte, error) {
	s := strings.ToUpper(strings.ReplaceAll(text, " ", ""))
	if s == "" {
		return nil, domain.ErrMalformedSecret
	}

	var (
		b   []byte
		err error
	)
	if strings.Contains(s, "=") {
		b, err = base32.StdEncoding.DecodeString(s)
	} else {
		b, err = secretEncoding.DecodeString(s)
	}
	if err != nil || len(b) == 0 {
		return nil, domain.ErrMalformedSecret
	}
	return b, nil
}

package auth

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Password hashing algorithms.
const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// Argon2 parameters (OWASP recommended)
const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4
	argon2KeyLen  = 32
	saltLen       = 16
)

// DefaultBcryptCost is the work factor used when none is configured.
const DefaultBcryptCost = 12

// PasswordConfig selects the algorithm and work factor for new hashes.
type PasswordConfig struct {
	Algorithm     string
	BcryptCost    int
	Argon2Time    uint32
	Argon2Memory  uint32
	Argon2Threads uint8
	Random        io.Reader
}

// PasswordHasher hashes and verifies passwords. Verification accepts both
// bcrypt and argon2id records regardless of the configured algorithm.
type PasswordHasher struct {
	config PasswordConfig
	dummy  string
}

// NewPasswordHasher creates a hasher and precomputes the dummy hash used to
// equalise timing for unknown accounts.
func NewPasswordHasher(config PasswordConfig) (*PasswordHasher, error) {
	if config.Algorithm == "" {
		config.Algorithm = AlgorithmBcrypt
	}
	if config.BcryptCost == 0 {
		config.BcryptCost = DefaultBcryptCost
	}
	if config.Argon2Time == 0 {
		config.Argon2Time = argon2Time
	}
	if config.Argon2Memory == 0 {
		config.Argon2Memory = argon2Memory
	}
	if config.Argon2Threads == 0 {
		config.Argon2Threads = argon2Threads
	}

	switch config.Algorithm {
	case AlgorithmBcrypt:
		if config.BcryptCost < bcrypt.MinCost || config.BcryptCost > bcrypt.MaxCost {
			return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", config.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
		}
	case AlgorithmArgon2id:
	default:
		return nil, fmt.Errorf("unknown password hash algorithm %q", config.Algorithm)
	}

	h := &PasswordHasher{config: config}

	dummyPassword, err := GenerateToken(config.Random, 16)
	if err != nil {
		return nil, err
	}
	h.dummy, err = h.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to compute dummy hash: %w", err)
	}
	return h, nil
}

// Hash derives a salted hash of password with the configured algorithm.
func (h *PasswordHasher) Hash(password string) (string, error) {
	if h.config.Algorithm == AlgorithmArgon2id {
		return h.hashArgon2(password)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.config.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func (h *PasswordHasher) hashArgon2(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := randomBytes(h.config.Random, salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, h.config.Argon2Time, h.config.Argon2Memory, h.config.Argon2Threads, argon2KeyLen)
	return encodeArgon2Hash(hash, salt, h.config.Argon2Time, h.config.Argon2Memory, h.config.Argon2Threads), nil
}

// Verify checks password against an encoded hash. Malformed records yield false.
func (h *PasswordHasher) Verify(password, encodedHash string) bool {
	switch {
	case strings.HasPrefix(encodedHash, "$argon2id$"):
		hash, salt, time, memory, threads, err := decodeArgon2Hash(encodedHash)
		if err != nil {
			return false
		}
		computed := argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(hash)))
		return constantTimeCompare(hash, computed)
	case strings.HasPrefix(encodedHash, "$2"):
		err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
		return err == nil
	default:
		return false
	}
}

// VerifyDummy burns the same work as a real verification and always fails.
func (h *PasswordHasher) VerifyDummy(password string) bool {
	h.Verify(password, h.dummy)
	return false
}

// VerifyStored is Verify for records loaded from an account. A failed check
// against a record weaker than the current parameters also burns a dummy
// verification, so it never answers faster than an unknown username.
func (h *PasswordHasher) VerifyStored(password, encodedHash string) bool {
	if h.Verify(password, encodedHash) {
		return true
	}
	if h.NeedsRehash(encodedHash) {
		h.VerifyDummy(password)
	}
	return false
}

// NeedsRehash reports whether encodedHash was produced with another algorithm
// or weaker parameters than currently configured.
func (h *PasswordHasher) NeedsRehash(encodedHash string) bool {
	if h.config.Algorithm == AlgorithmArgon2id {
		_, _, time, memory, threads, err := decodeArgon2Hash(encodedHash)
		if err != nil {
			return true
		}
		return time < h.config.Argon2Time || memory < h.config.Argon2Memory || threads < h.config.Argon2Threads
	}

	cost, err := bcrypt.Cost([]byte(encodedHash))
	if err != nil {
		return true
	}
	return cost < h.config.BcryptCost
}

package auth

import (
	"strings"
	"unicode"
)

// NormalizeUsername trims whitespace and strips control characters so that
// lookups and masking see the same value the account was created with.
func NormalizeUsername(username string) string {
	return strings.TrimSpace(removeControlChars(username))
}

// removeControlChars removes all control characters.
func removeControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

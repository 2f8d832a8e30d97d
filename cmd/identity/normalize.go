package identity

import (
	"net/mail"
	"strings"
)

// maxEmailLen follows the RFC 5321 path limit.
const maxEmailLen = 254

// NormalizeEmail trims surrounding whitespace. Case is preserved: addresses
// are stored and compared exactly as supplied.
func NormalizeEmail(s string) string {
	return strings.TrimSpace(s)
}

// ValidEmail reports whether s (already normalized) is a bare addr-spec.
func ValidEmail(s string) bool {
	if s == "" || len(s) > maxEmailLen {
		return false
	}
	a, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	// Reject display-name forms such as "Bob <bob@example.com>".
	return a.Address == s && a.Name == ""
}

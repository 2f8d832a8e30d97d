package password

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Validate checks the registration policy. It does not mutate input.
func (c Config) Validate(password string) error {
	if password == "" {
		return ErrPasswordEmpty
	}

	// Characters, not bytes.
	n := utf8.RuneCountInString(password)
	if n < c.Policy.MinLength {
		return ErrPasswordTooShort
	}
	if c.Policy.MaxLength > 0 && n > c.Policy.MaxLength {
		return ErrPasswordTooLong
	}
	if c.algorithm() == AlgorithmBcrypt && len(password) > bcryptMaxBytes {
		return ErrPasswordTooLong
	}

	if c.Policy.RejectVeryWeak && looksVeryWeak(password) {
		return ErrWeakPassword
	}
	return nil
}

// looksVeryWeak is a minimal pattern check, not a strength estimator.
func looksVeryWeak(pw string) bool {
	s := strings.TrimSpace(pw)
	if s == "" {
		return true
	}

	first, _ := utf8.DecodeRuneInString(s)
	if strings.Count(s, string(first)) == utf8.RuneCountInString(s) {
		return true
	}

	onlyDigits := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) }) < 0
	if onlyDigits && utf8.RuneCountInString(s) < 12 {
		return true
	}

	switch strings.ToLower(s) {
	case "password", "password1", "password123", "12345678", "123456789", "qwerty", "qwerty123", "letmein1", "iloveyou":
		return true
	}
	return false
}

package auth

import "errors"

// Validation errors. Callers can correct these; they are never logged as
// system failures.
var (
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrPasswordTooWeak  = errors.New("password too weak")
	ErrEmailTaken       = errors.New("email already registered")
	ErrInvalidEmail     = errors.New("invalid email")
)

// Authentication failures. Expected outcomes surfaced as "unauthenticated".
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrInvalidSignature   = errors.New("invalid token signature")
	ErrNoSession          = errors.New("no live session")
	ErrRefreshInvalid     = errors.New("refresh token invalid")
)

// ErrConfig is returned for invalid configuration.
var ErrConfig = errors.New("invalid auth config")

// IsValidation reports whether err is a caller-correctable validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrPasswordMismatch) ||
		errors.Is(err, ErrPasswordTooWeak) ||
		errors.Is(err, ErrEmailTaken) ||
		errors.Is(err, ErrInvalidEmail)
}

// IsUnauthenticated reports whether err is an authentication failure.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrInvalidSignature) ||
		errors.Is(err, ErrNoSession) ||
		errors.Is(err, ErrRefreshInvalid)
}

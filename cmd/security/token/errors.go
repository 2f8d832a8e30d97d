package token

import "errors"

// Public, stable errors for callers.
var (
	ErrHMACKeyMissing  = errors.New("token HMAC key missing")
	ErrHMACKeyTooShort = errors.New("token HMAC key too short")

	ErrMalformed        = errors.New("token malformed")
	ErrInvalidSignature = errors.New("token signature invalid")
	ErrExpired          = errors.New("token expired")

	ErrSecretMissing    = errors.New("token signing secret missing")
	ErrUnknownAlgorithm = errors.New("unknown token algorithm")
)

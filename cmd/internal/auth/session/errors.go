package session

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when no live session matches a token.
	ErrSessionNotFound = errors.New("session not found")

	// ErrTokenCollision is returned by Store.Insert when the token digest
	// already exists. Service.Create retries on it.
	ErrTokenCollision = errors.New("session token collision")

	// ErrTokenGenerationExhausted is returned when every attempt collided.
	ErrTokenGenerationExhausted = errors.New("session token generation exhausted")
)

// ExhaustedError carries attempt metadata for ErrTokenGenerationExhausted.
type ExhaustedError struct {
	UserID   string
	Attempts int
}

func (e ExhaustedError) Error() string {
	return fmt.Sprintf("%s: user %s after %d attempts", ErrTokenGenerationExhausted.Error(), e.UserID, e.Attempts)
}

func (e ExhaustedError) Unwrap() error { return ErrTokenGenerationExhausted }

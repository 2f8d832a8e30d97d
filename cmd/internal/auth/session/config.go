package session

import "time"

// MaxTokenAttempts bounds Create's retry-on-collision loop.
const MaxTokenAttempts = 5

// Config defines runtime configuration for the session subsystem.
type Config struct {
	// TTL is the session lifetime used when Create is called with ttl <= 0.
	TTL time.Duration
}

// DefaultConfig returns a 7-day session lifetime.
func DefaultConfig() Config {
	return Config{TTL: 7 * 24 * time.Hour}
}

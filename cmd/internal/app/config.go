package app

import (
	"time"

	"partsbin/cmd/internal/env"
	"partsbin/cmd/internal/storage"
)

// Config contains process-level runtime configuration loaded from environment
// variables. Auth and password settings load from their own packages; the
// session lifetime is derived from the auth settings.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	Storage storage.Config

	// Security policy:
	// If true, PARTSBIN_TOKEN_HMAC_KEY MUST be set (>= 32 bytes) and session
	// token digests are HMAC-based.
	RequireTokenHMAC bool

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  env.String("PARTSBIN_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  env.String("PARTSBIN_LOG_LEVEL", "info"),
		LogFormat: env.String("PARTSBIN_LOG_FORMAT", "json"),

		ReadHeaderTimeout: env.Duration("PARTSBIN_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       env.Duration("PARTSBIN_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      env.Duration("PARTSBIN_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       env.Duration("PARTSBIN_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: env.Int("PARTSBIN_HTTP_MAX_HEADER_BYTES", 1<<20),

		Storage: storage.Config{
			URL:         env.String("PARTSBIN_DATABASE_URL", ""),
			Schema:      env.String("PARTSBIN_DB_SCHEMA", ""),
			MaxConns:    env.Int32("PARTSBIN_DB_MAX_CONNS", 10),
			MinConns:    env.Int32("PARTSBIN_DB_MIN_CONNS", 0),
			AutoMigrate: env.Bool("PARTSBIN_DB_AUTO_MIGRATE", true),
		},

		RequireTokenHMAC: env.Bool("PARTSBIN_REQUIRE_TOKEN_HMAC", false),

		CORSAllowedOrigins:   env.List("PARTSBIN_CORS_ALLOWED_ORIGINS"),
		CORSAllowCredentials: env.Bool("PARTSBIN_CORS_ALLOW_CREDENTIALS", true),
		CORSMaxAgeSeconds:    env.Int("PARTSBIN_CORS_MAX_AGE_SECONDS", 600),
	}
}

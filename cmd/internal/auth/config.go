package auth

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"partsbin/cmd/security/token"
)

const (
	// EnvDevelopment is the only environment that accepts the placeholder secret.
	EnvDevelopment = "development"

	// MinSecretBytes is the minimum signing secret length outside development.
	MinSecretBytes = 32

	// #nosec G101 -- development placeholder, rejected outside development.
	devSecretPlaceholder = "partsbin-development-secret-do-not-use-in-prod"

	devAdminEmail    = "admin@partsbin.local"
	devAdminPassword = "partsbin-admin"
)

// Config is the immutable auth configuration, built once at startup.
type Config struct {
	Env string

	Secret   []byte
	TokenAlg string
	Issuer   string

	AccessTTL  time.Duration
	RefreshTTL time.Duration
	SessionTTL time.Duration

	// AdminEmail and AdminPassword seed EnsureDefaultAdmin. Either empty
	// disables the bootstrap.
	AdminEmail    string
	AdminPassword string
}

// DefaultConfig returns development defaults: HS256 over the placeholder
// secret, 1h access tokens, 7d refresh tokens and sessions.
func DefaultConfig() Config {
	return Config{
		Env:           EnvDevelopment,
		Secret:        []byte(devSecretPlaceholder),
		TokenAlg:      token.AlgHS256,
		Issuer:        "partsbin",
		AccessTTL:     time.Hour,
		RefreshTTL:    7 * 24 * time.Hour,
		SessionTTL:    7 * 24 * time.Hour,
		AdminEmail:    devAdminEmail,
		AdminPassword: devAdminPassword,
	}
}

// IsDevelopment reports whether the placeholder secret is acceptable.
func (c Config) IsDevelopment() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), EnvDevelopment)
}

// LoadConfigFromEnv loads auth configuration from environment variables.
//
// Env surface:
//   - PARTSBIN_ENV (development|anything else)
//   - PARTSBIN_AUTH_SECRET (required, >= 32 bytes outside development)
//   - PARTSBIN_AUTH_TOKEN_ALG (HS256|v4.public)
//   - PARTSBIN_AUTH_ISSUER
//   - PARTSBIN_AUTH_ACCESS_TTL_SECONDS (3600)
//   - PARTSBIN_AUTH_REFRESH_TTL_SECONDS (604800)
//   - PARTSBIN_AUTH_SESSION_TTL_SECONDS (defaults to the refresh TTL)
//   - PARTSBIN_ADMIN_EMAIL, PARTSBIN_ADMIN_PASSWORD
//
// Returns an error wrapping ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("PARTSBIN_ENV")); v != "" {
		cfg.Env = strings.ToLower(v)
	}

	secret := strings.TrimSpace(os.Getenv("PARTSBIN_AUTH_SECRET"))
	switch {
	case secret != "":
		cfg.Secret = []byte(secret)
	case !cfg.IsDevelopment():
		return Config{}, fmt.Errorf("%w: PARTSBIN_AUTH_SECRET is required when PARTSBIN_ENV=%s", ErrConfig, cfg.Env)
	}
	if !cfg.IsDevelopment() && len(cfg.Secret) < MinSecretBytes {
		return Config{}, fmt.Errorf("%w: PARTSBIN_AUTH_SECRET must be at least %d bytes", ErrConfig, MinSecretBytes)
	}

	if v := strings.TrimSpace(os.Getenv("PARTSBIN_AUTH_TOKEN_ALG")); v != "" {
		switch v {
		case token.AlgHS256, token.AlgPasetoV4Public:
			cfg.TokenAlg = v
		default:
			return Config{}, fmt.Errorf("%w: PARTSBIN_AUTH_TOKEN_ALG %q", ErrConfig, v)
		}
	}
	if v, ok := os.LookupEnv("PARTSBIN_AUTH_ISSUER"); ok {
		cfg.Issuer = strings.TrimSpace(v)
	}

	var err error
	if cfg.AccessTTL, err = envSeconds("PARTSBIN_AUTH_ACCESS_TTL_SECONDS", cfg.AccessTTL); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTTL, err = envSeconds("PARTSBIN_AUTH_REFRESH_TTL_SECONDS", cfg.RefreshTTL); err != nil {
		return Config{}, err
	}
	if cfg.SessionTTL, err = envSeconds("PARTSBIN_AUTH_SESSION_TTL_SECONDS", cfg.RefreshTTL); err != nil {
		return Config{}, err
	}
	if cfg.AccessTTL > cfg.RefreshTTL {
		return Config{}, fmt.Errorf("%w: access ttl exceeds refresh ttl", ErrConfig)
	}

	// Only development gets a well-known admin password.
	if !cfg.IsDevelopment() {
		cfg.AdminPassword = ""
	}
	if v, ok := os.LookupEnv("PARTSBIN_ADMIN_EMAIL"); ok {
		cfg.AdminEmail = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv("PARTSBIN_ADMIN_PASSWORD"); ok {
		cfg.AdminPassword = v
	}

	return cfg, nil
}

// NewCodec builds the token codec selected by the configuration.
func (c Config) NewCodec() (token.Codec, error) {
	codec, err := token.NewCodec(c.TokenAlg, c.Secret, c.Issuer)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return codec, nil
}

func envSeconds(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrConfig, key)
	}
	if n > math.MaxInt64/int64(time.Second) {
		return 0, fmt.Errorf("%w: %s out of range", ErrConfig, key)
	}
	return time.Duration(n) * time.Second, nil
}

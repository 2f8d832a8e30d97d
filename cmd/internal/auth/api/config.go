package authapi

import (
	"net/http"
	"strings"

	"partsbin/cmd/internal/env"
)

// Config controls auth HTTP behavior and cookie transport.
type Config struct {
	TrustProxy   bool
	MaxBodyBytes int64

	AccessCookieName  string
	RefreshCookieName string
	CookiePath        string
	CookieDomain      string
	CookieSecure      bool
	CookieSameSite    http.SameSite
}

// DefaultConfig returns secure cookie defaults.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:      1 << 20, // 1 MiB
		AccessCookieName:  "partsbin_access",
		RefreshCookieName: "partsbin_refresh",
		CookiePath:        "/",
		CookieSecure:      true,
		CookieSameSite:    http.SameSiteLaxMode,
	}
}

// LoadConfigFromEnv loads auth HTTP config from environment variables with safe defaults.
func LoadConfigFromEnv() Config {
	def := DefaultConfig()
	cfg := Config{
		TrustProxy:        env.Bool("PARTSBIN_AUTH_TRUST_PROXY", false),
		MaxBodyBytes:      env.Int64("PARTSBIN_AUTH_MAX_BODY_BYTES", def.MaxBodyBytes),
		AccessCookieName:  env.String("PARTSBIN_AUTH_ACCESS_COOKIE_NAME", def.AccessCookieName),
		RefreshCookieName: env.String("PARTSBIN_AUTH_REFRESH_COOKIE_NAME", def.RefreshCookieName),
		CookiePath:        env.String("PARTSBIN_AUTH_COOKIE_PATH", def.CookiePath),
		CookieDomain:      env.String("PARTSBIN_AUTH_COOKIE_DOMAIN", ""),
		CookieSecure:      env.Bool("PARTSBIN_AUTH_COOKIE_SECURE", def.CookieSecure),
		CookieSameSite:    parseSameSite(env.String("PARTSBIN_AUTH_COOKIE_SAMESITE", "lax")),
	}

	// The two cookies must not shadow each other.
	if cfg.AccessCookieName == cfg.RefreshCookieName {
		cfg.AccessCookieName = def.AccessCookieName
		cfg.RefreshCookieName = def.RefreshCookieName
	}
	// Browsers drop SameSite=None cookies without Secure.
	if cfg.CookieSameSite == http.SameSiteNoneMode {
		cfg.CookieSecure = true
	}

	return cfg
}

func parseSameSite(v string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	case "default":
		return http.SameSiteDefaultMode
	default:
		return http.SameSiteLaxMode
	}
}

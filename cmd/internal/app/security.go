package app

import (
	"errors"
	"fmt"

	"partsbin/cmd/internal/auth"
	"partsbin/cmd/security/token"
)

// minHMACKeyBytes is the minimum HMAC-SHA256 key length.
const minHMACKeyBytes = 32

// ValidateSecurityConfig enforces the startup security policy and returns the
// session token hasher to use. It fails fast rather than falling back to
// weaker settings outside development.
func ValidateSecurityConfig(cfg Config, authCfg auth.Config) (token.Hasher, error) {
	if !authCfg.IsDevelopment() && len(authCfg.Secret) < auth.MinSecretBytes {
		return token.Hasher{}, fmt.Errorf("security policy: PARTSBIN_AUTH_SECRET must be at least %d bytes outside development", auth.MinSecretBytes)
	}

	hasher, err := token.HasherFromEnv(cfg.RequireTokenHMAC, minHMACKeyBytes)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrHMACKeyMissing):
			return token.Hasher{}, errors.New("security policy: PARTSBIN_REQUIRE_TOKEN_HMAC=true but PARTSBIN_TOKEN_HMAC_KEY is missing")
		case errors.Is(err, token.ErrHMACKeyTooShort):
			return token.Hasher{}, fmt.Errorf("security policy: PARTSBIN_REQUIRE_TOKEN_HMAC=true but PARTSBIN_TOKEN_HMAC_KEY is too short (min %d bytes)", minHMACKeyBytes)
		default:
			return token.Hasher{}, err
		}
	}

	if cfg.RequireTokenHMAC && !hasher.HMAC() {
		return token.Hasher{}, errors.New("security policy: PARTSBIN_REQUIRE_TOKEN_HMAC=true but token hasher is not in HMAC mode")
	}
	return hasher, nil
}

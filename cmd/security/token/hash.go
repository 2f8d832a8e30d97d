package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"
)

const (
	// HMACEnvKey is the env var name for the token HMAC secret.
	// #nosec G101 -- not a credential; it's an environment variable name.
	HMACEnvKey = "PARTSBIN_TOKEN_HMAC_KEY"
)

// HashSHA256Hex returns a SHA-256 hex digest of s.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashHMACSHA256Hex returns an HMAC-SHA256 hex digest of s using key.
func HashHMACSHA256Hex(s string, key []byte) string {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(s))
	return hex.EncodeToString(m.Sum(nil))
}

// HMACKeyFromEnv returns the configured HMAC key bytes (trimmed), enforcing a minimum byte length.
// If the env var is missing/blank -> ErrHMACKeyMissing.
// If too short -> ErrHMACKeyTooShort.
func HMACKeyFromEnv(minBytes int) ([]byte, error) {
	raw := strings.TrimSpace(os.Getenv(HMACEnvKey))
	if raw == "" {
		return nil, ErrHMACKeyMissing
	}
	b := []byte(raw)
	if minBytes > 0 && len(b) < minBytes {
		return nil, ErrHMACKeyTooShort
	}
	return b, nil
}

// Hasher digests opaque tokens for storage. The zero value uses SHA-256.
// The key is fixed at construction so every lookup uses the same digest.
type Hasher struct {
	key []byte
}

// NewHasher returns a Hasher that uses HMAC-SHA256 when key is non-empty.
func NewHasher(key []byte) Hasher {
	if len(key) == 0 {
		return Hasher{}
	}
	k := make([]byte, len(key))
	copy(k, key)
	return Hasher{key: k}
}

// HasherFromEnv builds a Hasher from PARTSBIN_TOKEN_HMAC_KEY.
// With requireHMAC the key must be present and at least minBytes long.
func HasherFromEnv(requireHMAC bool, minBytes int) (Hasher, error) {
	if requireHMAC {
		key, err := HMACKeyFromEnv(minBytes)
		if err != nil {
			return Hasher{}, err
		}
		return NewHasher(key), nil
	}
	return NewHasher([]byte(strings.TrimSpace(os.Getenv(HMACEnvKey)))), nil
}

// Hex returns the 64-char hex digest of tok.
func (h Hasher) Hex(tok string) string {
	if len(h.key) == 0 {
		return HashSHA256Hex(tok)
	}
	return HashHMACSHA256Hex(tok, h.key)
}

// HMAC reports whether digests are keyed.
func (h Hasher) HMAC() bool { return len(h.key) > 0 }

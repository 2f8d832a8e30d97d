package token

import (
	"fmt"
	"strings"
	"time"
)

// Type distinguishes access from refresh tokens signed by the same codec.
type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
)

// Algorithm identifiers accepted by NewCodec.
const (
	AlgHS256          = "HS256"
	AlgPasetoV4Public = "v4.public"
)

// Claims is the identity envelope carried by signed tokens.
type Claims struct {
	Subject   string
	Email     string
	IsAdmin   bool
	Type      Type
	SessionID string
	ID        string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Codec signs and verifies claims. Implementations hold no store access and
// are safe for concurrent use.
type Codec interface {
	// Sign stamps issued-at, expiry, issuer and a fresh ID (when empty) onto c.
	Sign(c Claims, ttl time.Duration, now time.Time) (token string, exp time.Time, err error)
	// Verify checks signature then expiry. The returned claims are only
	// meaningful when err is nil or ErrExpired.
	Verify(token string, now time.Time) (Claims, error)
	// DecodeUnsafe parses claims without checking the signature. Diagnostics only.
	DecodeUnsafe(token string) (Claims, bool)
	Algorithm() string
}

// NewCodec builds the codec for alg keyed by secret.
func NewCodec(alg string, secret []byte, issuer string) (Codec, error) {
	if len(secret) == 0 {
		return nil, ErrSecretMissing
	}
	switch strings.TrimSpace(alg) {
	case "", AlgHS256:
		return NewJWTCodec(secret, issuer), nil
	case AlgPasetoV4Public:
		return NewPasetoV4PublicCodec(secret, issuer)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, alg)
	}
}

func expired(exp, now time.Time) bool {
	return !now.Before(exp)
}

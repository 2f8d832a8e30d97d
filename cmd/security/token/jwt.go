package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type jwtClaims struct {
	Email     string `json:"email,omitempty"`
	IsAdmin   bool   `json:"is_admin"`
	Type      Type   `json:"typ"`
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// JWTCodec signs HS256 JWTs.
type JWTCodec struct {
	secret []byte
	issuer string
}

// NewJWTCodec returns an HS256 codec. An empty issuer disables issuer checks.
func NewJWTCodec(secret []byte, issuer string) *JWTCodec {
	k := make([]byte, len(secret))
	copy(k, secret)
	return &JWTCodec{secret: k, issuer: issuer}
}

func (c *JWTCodec) Algorithm() string { return AlgHS256 }

func (c *JWTCodec) Sign(cl Claims, ttl time.Duration, now time.Time) (string, time.Time, error) {
	if cl.Subject == "" {
		return "", time.Time{}, fmt.Errorf("jwt sign: empty subject")
	}
	if cl.ID == "" {
		cl.ID = uuid.NewString()
	}
	exp := now.Add(ttl)

	claims := jwtClaims{
		Email:     cl.Email,
		IsAdmin:   cl.IsAdmin,
		Type:      cl.Type,
		SessionID: cl.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   cl.Subject,
			Issuer:    c.issuer,
			ID:        cl.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt sign: %w", err)
	}
	return signed, exp, nil
}

// Verify checks the signature with claim validation disabled, then applies
// expiry against now itself so an expired token is distinguishable from a
// forged one.
func (c *JWTCodec) Verify(tok string, now time.Time) (Claims, error) {
	var claims jwtClaims
	_, err := jwt.ParseWithClaims(tok, &claims,
		func(t *jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, mapJWTError(err)
	}

	out := fromJWTClaims(claims)
	if out.Subject == "" || out.ExpiresAt.IsZero() {
		return Claims{}, ErrMalformed
	}
	if c.issuer != "" && out.Issuer != c.issuer {
		return Claims{}, ErrInvalidSignature
	}
	if expired(out.ExpiresAt, now) {
		return out, ErrExpired
	}
	return out, nil
}

func (c *JWTCodec) DecodeUnsafe(tok string) (Claims, bool) {
	var claims jwtClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &claims); err != nil {
		return Claims{}, false
	}
	return fromJWTClaims(claims), true
}

func fromJWTClaims(c jwtClaims) Claims {
	out := Claims{
		Subject:   c.Subject,
		Email:     c.Email,
		IsAdmin:   c.IsAdmin,
		Type:      c.Type,
		SessionID: c.SessionID,
		ID:        c.ID,
		Issuer:    c.Issuer,
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return ErrInvalidSignature
	}
}

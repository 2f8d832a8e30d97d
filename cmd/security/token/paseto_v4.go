package token

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	paseto "aidanwoods.dev/go-paseto"
	"github.com/google/uuid"
)

const pasetoV4PublicPrefix = "v4.public."

// PasetoV4PublicCodec signs PASETO v4.public tokens with an Ed25519 key derived
// from the shared signing secret.
type PasetoV4PublicCodec struct {
	issuer string
	secret paseto.V4AsymmetricSecretKey
	public paseto.V4AsymmetricPublicKey
}

// NewPasetoV4PublicCodec derives the Ed25519 keypair as seed = SHA-256(secret),
// so every process configured with the same secret verifies the same tokens.
func NewPasetoV4PublicCodec(secret []byte, issuer string) (*PasetoV4PublicCodec, error) {
	seed := sha256.Sum256(secret)
	priv := ed25519.NewKeyFromSeed(seed[:])

	sk, err := paseto.NewV4AsymmetricSecretKeyFromHex(hex.EncodeToString(priv))
	if err != nil {
		return nil, fmt.Errorf("paseto key: %w", err)
	}

	return &PasetoV4PublicCodec{
		issuer: issuer,
		secret: sk,
		public: sk.Public(),
	}, nil
}

func (c *PasetoV4PublicCodec) Algorithm() string { return AlgPasetoV4Public }

// PublicKeyHex exposes the verification key for out-of-process verifiers.
func (c *PasetoV4PublicCodec) PublicKeyHex() string {
	return c.public.ExportHex()
}

func (c *PasetoV4PublicCodec) Sign(cl Claims, ttl time.Duration, now time.Time) (string, time.Time, error) {
	if cl.Subject == "" {
		return "", time.Time{}, fmt.Errorf("paseto sign: empty subject")
	}
	if cl.ID == "" {
		cl.ID = uuid.NewString()
	}
	exp := now.Add(ttl)

	tok := paseto.NewToken()
	tok.SetIssuer(c.issuer)
	tok.SetSubject(cl.Subject)
	tok.SetJti(cl.ID)
	tok.SetIssuedAt(now)
	tok.SetNotBefore(now)
	tok.SetExpiration(exp)
	tok.SetString("typ", string(cl.Type))
	if cl.Email != "" {
		tok.SetString("email", cl.Email)
	}
	if cl.SessionID != "" {
		tok.SetString("sid", cl.SessionID)
	}
	if err := tok.Set("is_admin", cl.IsAdmin); err != nil {
		return "", time.Time{}, fmt.Errorf("paseto sign: %w", err)
	}

	return tok.V4Sign(c.secret, nil), exp, nil
}

// Verify parses without the library expiry rule and applies expiry against now,
// keeping ErrExpired distinct from signature failures.
func (c *PasetoV4PublicCodec) Verify(tok string, now time.Time) (Claims, error) {
	if !strings.HasPrefix(tok, pasetoV4PublicPrefix) {
		return Claims{}, ErrMalformed
	}

	p := paseto.NewParserWithoutExpiryCheck()
	if c.issuer != "" {
		p.AddRule(paseto.IssuedBy(c.issuer))
	}

	parsed, err := p.ParseV4Public(c.public, tok, nil)
	if err != nil {
		return Claims{}, ErrInvalidSignature
	}

	out, ok := pasetoClaims(parsed)
	if !ok {
		return Claims{}, ErrMalformed
	}
	if expired(out.ExpiresAt, now) {
		return out, ErrExpired
	}
	return out, nil
}

// DecodeUnsafe reads the v4.public payload (message || 64-byte signature)
// without verifying it.
func (c *PasetoV4PublicCodec) DecodeUnsafe(tok string) (Claims, bool) {
	if !strings.HasPrefix(tok, pasetoV4PublicPrefix) {
		return Claims{}, false
	}
	body, _, _ := strings.Cut(strings.TrimPrefix(tok, pasetoV4PublicPrefix), ".")

	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil || len(raw) <= ed25519.SignatureSize {
		return Claims{}, false
	}

	var m struct {
		Sub     string `json:"sub"`
		Iss     string `json:"iss"`
		Jti     string `json:"jti"`
		Iat     string `json:"iat"`
		Exp     string `json:"exp"`
		Typ     string `json:"typ"`
		Email   string `json:"email"`
		Sid     string `json:"sid"`
		IsAdmin bool   `json:"is_admin"`
	}
	if err := json.Unmarshal(raw[:len(raw)-ed25519.SignatureSize], &m); err != nil {
		return Claims{}, false
	}

	out := Claims{
		Subject:   m.Sub,
		Email:     m.Email,
		IsAdmin:   m.IsAdmin,
		Type:      Type(m.Typ),
		SessionID: m.Sid,
		ID:        m.Jti,
		Issuer:    m.Iss,
	}
	out.IssuedAt, _ = time.Parse(time.RFC3339, m.Iat)
	out.ExpiresAt, _ = time.Parse(time.RFC3339, m.Exp)
	return out, true
}

func pasetoClaims(t *paseto.Token) (Claims, bool) {
	sub, err := t.GetSubject()
	if err != nil || sub == "" {
		return Claims{}, false
	}
	exp, err := t.GetExpiration()
	if err != nil {
		return Claims{}, false
	}

	out := Claims{Subject: sub, ExpiresAt: exp}
	out.Issuer, _ = t.GetIssuer()
	out.ID, _ = t.GetJti()
	out.IssuedAt, _ = t.GetIssuedAt()
	out.Email, _ = t.GetString("email")
	out.SessionID, _ = t.GetString("sid")
	if typ, err := t.GetString("typ"); err == nil {
		out.Type = Type(typ)
	}
	_ = t.Get("is_admin", &out.IsAdmin)
	return out, true
}

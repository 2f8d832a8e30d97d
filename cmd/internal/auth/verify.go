package auth

import (
	"context"
	"errors"
	"time"

	"partsbin/cmd/identity"
	"partsbin/cmd/internal/auth/session"
	"partsbin/cmd/internal/storage"
	"partsbin/cmd/security/token"
)

// Via names the verifier that accepted a credential.
type Via string

const (
	ViaNone    Via = ""
	ViaToken   Via = "token"
	ViaSession Via = "session"
)

// Outcome is the result of Validate. A zero Via means no user; Reason then
// says why.
type Outcome struct {
	User      identity.User
	Via       Via
	SessionID string
	Reason    error
}

// Authenticated reports whether a verifier accepted the credential.
func (o Outcome) Authenticated() bool { return o.Via != ViaNone }

// verdict is one verifier's answer. A nil reason with ok=false means the
// credential is not of this verifier's kind.
type verdict struct {
	ok        bool
	user      identity.User
	sessionID string
	reason    error
}

type verifier interface {
	via() Via
	verify(ctx context.Context, raw string, now time.Time) (verdict, error)
}

// tokenVerifier accepts signed access tokens without touching the store.
type tokenVerifier struct {
	codec token.Codec
}

func (tokenVerifier) via() Via { return ViaToken }

func (v tokenVerifier) verify(_ context.Context, raw string, now time.Time) (verdict, error) {
	c, err := v.codec.Verify(raw, now)
	switch {
	case err == nil:
	case errors.Is(err, token.ErrExpired):
		return verdict{reason: ErrTokenExpired}, nil
	case errors.Is(err, token.ErrInvalidSignature):
		return verdict{reason: ErrInvalidSignature}, nil
	default:
		return verdict{}, nil
	}

	if c.Type != token.TypeAccess || c.Subject == "" {
		return verdict{reason: ErrInvalidSignature}, nil
	}
	return verdict{
		ok: true,
		user: identity.User{
			ID:      c.Subject,
			Email:   c.Email,
			IsAdmin: c.IsAdmin,
		},
		sessionID: c.SessionID,
	}, nil
}

// sessionVerifier accepts opaque session tokens with a live row.
type sessionVerifier struct {
	db       storage.Database
	sessions *session.Service
}

func (sessionVerifier) via() Via { return ViaSession }

func (v sessionVerifier) verify(ctx context.Context, raw string, now time.Time) (verdict, error) {
	st := v.db.Stores()

	s, err := v.sessions.FindLive(ctx, st.Sessions, raw, now)
	if errors.Is(err, session.ErrSessionNotFound) {
		return verdict{reason: ErrNoSession}, nil
	}
	if err != nil {
		return verdict{}, err
	}

	u, err := st.Users.UserByID(ctx, s.UserID)
	if identity.IsNotFound(err) {
		return verdict{reason: ErrNoSession}, nil
	}
	if err != nil {
		return verdict{}, err
	}
	return verdict{ok: true, user: u, sessionID: s.ID}, nil
}

// reasonRank orders failure reasons; the gate only refreshes on expiry, so
// expiry outranks everything.
func reasonRank(err error) int {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return 3
	case errors.Is(err, ErrInvalidSignature):
		return 2
	case err != nil:
		return 1
	default:
		return 0
	}
}

package authapi

import (
	"context"
	"errors"
	"net/http"

	"partsbin/cmd/identity"
	"partsbin/cmd/internal/auth"
)

// Principal is the authenticated caller stored in the request context.
type Principal struct {
	User      identity.User
	Via       auth.Via
	SessionID string
	// Refreshed is set when the gate minted a new pair for this request.
	Refreshed bool
}

type principalKey struct{}

// WithPrincipal returns ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal set by the gate.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// UserFromContext returns the authenticated user set by the gate.
func UserFromContext(ctx context.Context) (identity.User, bool) {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return identity.User{}, false
	}
	return p.User, true
}

// Gate is net/http middleware that resolves the request credential through
// the auth service. An expired access token is refreshed transparently from
// the refresh cookie.
type Gate struct {
	h *Handler
}

// Require rejects requests without a valid credential with 401.
func (g *Gate) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := g.authenticate(w, r)
		if !ok {
			return
		}
		if p == nil {
			writeAuthRequired(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), *p)))
	})
}

// Optional attaches the principal when present and continues either way.
func (g *Gate) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := g.authenticate(w, r)
		if !ok {
			return
		}
		if p != nil {
			r = r.WithContext(WithPrincipal(r.Context(), *p))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin is Require plus the admin flag; non-admins get 403.
func (g *Gate) RequireAdmin(next http.Handler) http.Handler {
	return g.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, _ := UserFromContext(r.Context())
		if !u.IsAdmin {
			writeError(w, http.StatusForbidden, "forbidden", "admin required")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// authenticate returns (nil, true) for an anonymous request and (_, false)
// when it already wrote a response.
func (g *Gate) authenticate(w http.ResponseWriter, r *http.Request) (*Principal, bool) {
	h := g.h
	ctx := r.Context()

	raw := h.credential(r)
	if raw == "" {
		return nil, true
	}

	out, err := h.svc.Validate(ctx, raw)
	if err != nil {
		h.log.ErrorContext(ctx, "auth.gate.validate.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return nil, false
	}
	if out.Authenticated() {
		return &Principal{User: out.User, Via: out.Via, SessionID: out.SessionID}, true
	}
	if !errors.Is(out.Reason, auth.ErrTokenExpired) {
		return nil, true
	}

	refreshToken, ok := h.refreshTokenFromCookie(r)
	if !ok {
		h.clearAuthCookies(w)
		writeAuthRequired(w)
		return nil, false
	}

	res, err := h.svc.Refresh(ctx, refreshToken)
	if err != nil {
		if auth.IsUnauthenticated(err) {
			h.clearAuthCookies(w)
			writeAuthRequired(w)
			return nil, false
		}
		h.log.ErrorContext(ctx, "auth.gate.refresh.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return nil, false
	}

	h.setAuthCookies(w, res)
	h.auditRefreshSuccess(ctx, res.User.ID, res.Session.ID, clientIP(r, h.cfg.TrustProxy), r.UserAgent())
	return &Principal{User: res.User, Via: auth.ViaToken, SessionID: res.Session.ID, Refreshed: true}, true
}

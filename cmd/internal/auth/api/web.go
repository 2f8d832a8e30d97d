package authapi

import (
	"net/http"
	"strings"
	"time"

	"partsbin/cmd/internal/auth"
)

// setAuthCookies stores the signed pair. Max-Age follows the configured
// token lifetimes.
func (h *Handler) setAuthCookies(w http.ResponseWriter, res auth.Result) {
	if h == nil || w == nil {
		return
	}
	acfg := h.svc.Config()
	h.setCookie(w, h.cfg.AccessCookieName, res.AccessToken, res.AccessExpiresAt, acfg.AccessTTL)
	h.setCookie(w, h.cfg.RefreshCookieName, res.RefreshToken, res.RefreshExpiresAt, acfg.RefreshTTL)
}

func (h *Handler) clearAuthCookies(w http.ResponseWriter) {
	if h == nil || w == nil {
		return
	}
	h.expireCookie(w, h.cfg.AccessCookieName)
	h.expireCookie(w, h.cfg.RefreshCookieName)
}

// credential returns the access credential: the access cookie first, then
// the Authorization bearer header.
func (h *Handler) credential(r *http.Request) string {
	if v, ok := h.cookieValue(r, h.cfg.AccessCookieName); ok {
		return v
	}
	return bearerToken(r)
}

func (h *Handler) refreshTokenFromCookie(r *http.Request) (string, bool) {
	return h.cookieValue(r, h.cfg.RefreshCookieName)
}

func (h *Handler) cookieValue(r *http.Request, name string) (string, bool) {
	if h == nil || r == nil || name == "" {
		return "", false
	}
	c, err := r.Cookie(name)
	if err != nil {
		return "", false
	}
	v := strings.TrimSpace(c.Value)
	if v == "" {
		return "", false
	}
	return v, true
}

func (h *Handler) setCookie(w http.ResponseWriter, name, value string, exp time.Time, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     h.cfg.CookiePath,
		Domain:   h.cfg.CookieDomain,
		Expires:  exp,
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	})
}

func (h *Handler) expireCookie(w http.ResponseWriter, name string) {
	if strings.TrimSpace(name) == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     h.cfg.CookiePath,
		Domain:   h.cfg.CookieDomain,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	})
}

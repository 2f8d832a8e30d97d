package authapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testCookieHandler() *Handler {
	return &Handler{cfg: Config{
		AccessCookieName:  "partsbin_access",
		RefreshCookieName: "partsbin_refresh",
		CookiePath:        "/",
		CookieSecure:      true,
		CookieSameSite:    http.SameSiteLaxMode,
	}}
}

func TestCredential_CookieBeforeBearer(t *testing.T) {
	h := testCookieHandler()

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer from-header")
	if got := h.credential(req); got != "from-header" {
		t.Fatalf("expected bearer credential, got %q", got)
	}

	req.AddCookie(&http.Cookie{Name: "partsbin_access", Value: "from-cookie"})
	if got := h.credential(req); got != "from-cookie" {
		t.Fatalf("expected cookie credential, got %q", got)
	}
}

func TestCredential_BlankCookieFallsBack(t *testing.T) {
	h := testCookieHandler()

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "partsbin_access", Value: " "})
	req.Header.Set("Authorization", "bearer tok")
	if got := h.credential(req); got != "tok" {
		t.Fatalf("expected bearer fallback, got %q", got)
	}
}

func TestExpireCookie(t *testing.T) {
	h := testCookieHandler()

	rr := httptest.NewRecorder()
	h.clearAuthCookies(rr)

	cookies := rr.Result().Cookies()
	if len(cookies) != 2 {
		t.Fatalf("expected 2 cookies, got %d", len(cookies))
	}
	for _, c := range cookies {
		if c.MaxAge >= 0 {
			t.Fatalf("cookie %s: expected negative max-age, got %d", c.Name, c.MaxAge)
		}
		if !c.HttpOnly || !c.Secure {
			t.Fatalf("cookie %s: expected HttpOnly and Secure", c.Name)
		}
		if c.Expires.After(time.Unix(1, 0)) {
			t.Fatalf("cookie %s: expected epoch expiry, got %v", c.Name, c.Expires)
		}
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"":                "",
		"Bearer":          "",
		"Basic abc":       "",
		"Bearer abc":      "abc",
		"BEARER  abc  ":   "abc",
		"  bearer x.y.z ": "x.y.z",
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		if got := bearerToken(req); got != want {
			t.Fatalf("bearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:4321"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	if got := clientIP(req, false); got.String() != "10.0.0.5" {
		t.Fatalf("untrusted proxy: got %v", got)
	}
	if got := clientIP(req, true); got.String() != "203.0.113.9" {
		t.Fatalf("trusted proxy: got %v", got)
	}
}

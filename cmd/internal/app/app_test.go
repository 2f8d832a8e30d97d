package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"partsbin/cmd/internal/auth"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	t.Setenv("PARTSBIN_ENV", "development")
	t.Setenv("PARTSBIN_BCRYPT_COST", "4")
	t.Setenv("PARTSBIN_ADMIN_EMAIL", "root@example.com")
	t.Setenv("PARTSBIN_ADMIN_PASSWORD", "root-password-1")
	t.Setenv("PARTSBIN_AUTH_COOKIE_SECURE", "false")

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := New(context.Background(), Config{}, log)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestApp_HealthAndReadiness(t *testing.T) {
	a := newTestApp(t)

	if rr := get(t, a.Handler(), "/healthz"); rr.Code != http.StatusOK {
		t.Fatalf("healthz status=%d", rr.Code)
	}
	rr := get(t, a.Handler(), "/readyz")
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz status=%d body=%q", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("security headers missing: %q", got)
	}
}

func TestApp_ReadinessFailsAfterClose(t *testing.T) {
	a := newTestApp(t)
	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if rr := get(t, a.Handler(), "/readyz"); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz after close status=%d", rr.Code)
	}
}

func TestApp_AdminBootstrapAndMetrics(t *testing.T) {
	a := newTestApp(t)

	body := strings.NewReader(`{"email":"root@example.com","password":"root-password-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", body)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("admin login status=%d body=%q", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"is_admin":true`) {
		t.Fatalf("expected admin user, got %q", rr.Body.String())
	}

	m := get(t, a.Handler(), "/metrics")
	if m.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", m.Code)
	}
	out := m.Body.String()
	if !strings.Contains(out, `partsbin_auth_operations_total{op="login",outcome="ok"} 1`) {
		t.Fatalf("login counter missing from metrics output")
	}
	if !strings.Contains(out, "go_goroutines") {
		t.Fatalf("runtime collectors missing from metrics output")
	}
}

func TestNew_RejectsProductionWithoutSecret(t *testing.T) {
	t.Setenv("PARTSBIN_ENV", "production")
	t.Setenv("PARTSBIN_AUTH_SECRET", "")

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	if _, err := New(context.Background(), Config{}, log); err == nil {
		t.Fatalf("expected error without a signing secret in production")
	}
}

func TestSessionConfig_FollowsAuthSessionTTL(t *testing.T) {
	cases := []struct {
		name    string
		session string
		refresh string
		want    time.Duration
	}{
		{name: "explicit session ttl", session: "7200", refresh: "86400", want: 2 * time.Hour},
		{name: "falls back to refresh ttl", session: "", refresh: "86400", want: 24 * time.Hour},
		{name: "defaults", session: "", refresh: "", want: 7 * 24 * time.Hour},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("PARTSBIN_ENV", "development")
			t.Setenv("PARTSBIN_AUTH_ACCESS_TTL_SECONDS", "")
			t.Setenv("PARTSBIN_AUTH_SESSION_TTL_SECONDS", tc.session)
			t.Setenv("PARTSBIN_AUTH_REFRESH_TTL_SECONDS", tc.refresh)

			authCfg, err := auth.LoadConfigFromEnv()
			if err != nil {
				t.Fatalf("LoadConfigFromEnv: %v", err)
			}
			if got := sessionConfig(authCfg).TTL; got != tc.want {
				t.Fatalf("session ttl = %v, want %v", got, tc.want)
			}
		})
	}
}

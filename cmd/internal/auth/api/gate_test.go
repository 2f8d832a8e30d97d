package authapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func principalEcho(seen *Principal, called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		if p, ok := PrincipalFromContext(r.Context()); ok {
			*seen = p
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func serveWith(h http.Handler, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestGateRequire_Anonymous(t *testing.T) {
	f := newAPIFixture(t)
	var p Principal
	called := false

	rr := serveWith(f.h.Gate().Require(principalEcho(&p, &called)))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, called)
}

func TestGateRequire_ForgedToken(t *testing.T) {
	f := newAPIFixture(t)
	var p Principal
	called := false

	rr := serveWith(f.h.Gate().Require(principalEcho(&p, &called)),
		&http.Cookie{Name: "partsbin_access", Value: "eyJhbGciOiJIUzI1NiJ9.e30.forged"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, called)
}

func TestGateRequire_ExpiredAccessIsRefreshedFromCookie(t *testing.T) {
	f := newAPIFixture(t)
	resp, cookies := f.register(t, "jack@example.com", "correct horse")
	access := findCookie(cookies, "partsbin_access")
	refresh := findCookie(cookies, "partsbin_refresh")

	f.clock.Advance(2 * time.Hour)

	var p Principal
	called := false
	rr := serveWith(f.h.Gate().Require(principalEcho(&p, &called)), access, refresh)

	require.Equal(t, http.StatusNoContent, rr.Code)
	require.True(t, called)
	assert.True(t, p.Refreshed)
	assert.Equal(t, resp.User.ID, p.User.ID)
	assert.Equal(t, resp.Session.SessionID, p.SessionID)

	fresh := findCookie(rr.Result().Cookies(), "partsbin_access")
	require.NotNil(t, fresh)
	assert.NotEqual(t, access.Value, fresh.Value)
	assert.Equal(t, 3600, fresh.MaxAge)
	assert.True(t, fresh.HttpOnly)

	reissued := findCookie(rr.Result().Cookies(), "partsbin_refresh")
	require.NotNil(t, reissued)
	assert.NotEmpty(t, reissued.Value)
	assert.Equal(t, 604800, reissued.MaxAge)
	assert.True(t, reissued.HttpOnly)

	out, err := f.svc.Validate(context.Background(), fresh.Value)
	require.NoError(t, err)
	assert.True(t, out.Authenticated())
}

func TestGateRequire_ExpiredAccessWithoutRefreshCookie(t *testing.T) {
	f := newAPIFixture(t)
	_, cookies := f.register(t, "kate@example.com", "correct horse")
	f.clock.Advance(2 * time.Hour)

	var p Principal
	called := false
	rr := serveWith(f.h.Gate().Require(principalEcho(&p, &called)), findCookie(cookies, "partsbin_access"))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, called)
	cleared := findCookie(rr.Result().Cookies(), "partsbin_access")
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge)
}

func TestGateRequire_ExpiredAccessWithInvalidRefresh(t *testing.T) {
	f := newAPIFixture(t)
	_, cookies := f.register(t, "liam@example.com", "correct horse")
	f.clock.Advance(2 * time.Hour)

	var p Principal
	called := false
	rr := serveWith(f.h.Gate().Require(principalEcho(&p, &called)),
		findCookie(cookies, "partsbin_access"),
		&http.Cookie{Name: "partsbin_refresh", Value: "not-a-refresh-token"},
	)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, called)
	cleared := findCookie(rr.Result().Cookies(), "partsbin_refresh")
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge)
}

func TestGateRequire_LoggedOutSessionCannotRefresh(t *testing.T) {
	f := newAPIFixture(t)
	resp, cookies := f.register(t, "mona@example.com", "correct horse")

	ok, err := f.svc.Logout(context.Background(), resp.Session.SessionToken)
	require.NoError(t, err)
	require.True(t, ok)

	f.clock.Advance(2 * time.Hour)

	var p Principal
	called := false
	rr := serveWith(f.h.Gate().Require(principalEcho(&p, &called)),
		findCookie(cookies, "partsbin_access"),
		findCookie(cookies, "partsbin_refresh"),
	)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, called)
}

func TestGateOptional(t *testing.T) {
	f := newAPIFixture(t)
	resp, cookies := f.register(t, "nora@example.com", "correct horse")

	var p Principal
	called := false
	rr := serveWith(f.h.Gate().Optional(principalEcho(&p, &called)))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.True(t, called)
	assert.Empty(t, p.User.ID)

	called = false
	rr = serveWith(f.h.Gate().Optional(principalEcho(&p, &called)),
		&http.Cookie{Name: "partsbin_access", Value: "garbage"})
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.True(t, called)
	assert.Empty(t, p.User.ID)

	called = false
	rr = serveWith(f.h.Gate().Optional(principalEcho(&p, &called)), findCookie(cookies, "partsbin_access"))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.True(t, called)
	assert.Equal(t, resp.User.ID, p.User.ID)
}

func TestGateRequireAdmin(t *testing.T) {
	f := newAPIFixture(t)
	_, cookies := f.register(t, "olga@example.com", "correct horse")

	var p Principal
	called := false
	rr := serveWith(f.h.Gate().RequireAdmin(principalEcho(&p, &called)), findCookie(cookies, "partsbin_access"))
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.False(t, called)

	created, err := f.svc.EnsureDefaultAdmin(context.Background())
	require.NoError(t, err)
	require.True(t, created)

	login := f.do(t, http.MethodPost, "/auth/login", loginRequest{Email: "admin@example.com", Password: "admin-password-1"})
	require.Equal(t, http.StatusOK, login.Code, login.Body.String())

	rr = serveWith(f.h.Gate().RequireAdmin(principalEcho(&p, &called)), findCookie(login.Result().Cookies(), "partsbin_access"))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.True(t, called)
	assert.True(t, p.User.IsAdmin)
}

func TestUserFromContext_Empty(t *testing.T) {
	_, ok := UserFromContext(context.Background())
	assert.False(t, ok)
}

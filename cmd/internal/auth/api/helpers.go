package authapi

import (
	"net"
	"net/http"
	"strings"
	"time"

	"partsbin/cmd/identity"
	"partsbin/cmd/internal/auth"
)

func toUserResponse(u identity.User) userResponse {
	return userResponse{
		ID:              u.ID,
		Email:           u.Email,
		IsAdmin:         u.IsAdmin,
		CreatedAt:       timePtr(u.CreatedAt),
		EmailVerifiedAt: u.EmailVerifiedAt,
		LastSignInAt:    u.LastSignInAt,
	}
}

func toSessionResponse(res auth.Result) sessionResponse {
	return sessionResponse{
		SessionID:        res.Session.ID,
		SessionToken:     res.Session.Token,
		SessionExpiresAt: timePtr(res.Session.ExpiresAt),
		AccessToken:      res.AccessToken,
		AccessExpiresAt:  res.AccessExpiresAt,
		RefreshToken:     res.RefreshToken,
		RefreshExpiresAt: res.RefreshExpiresAt,
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	for _, p := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}

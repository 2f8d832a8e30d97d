package authapi

import (
	"context"
	"log/slog"
	"net"
	"strings"
)

// Audit events go to the structured log under the "auth.audit" message.

func (h *Handler) auditRegister(ctx context.Context, userID, sessionID string, ip net.IP, ua string) {
	h.audit(ctx, "auth.register", ip, ua,
		slog.String("user_id", userID),
		slog.String("session_id", sessionID),
	)
}

func (h *Handler) auditLoginFailed(ctx context.Context, ip net.IP, ua, identifier, reason string) {
	h.audit(ctx, "auth.login.failed", ip, ua,
		slog.String("identifier", identifier),
		slog.String("reason", reason),
	)
}

func (h *Handler) auditLoginSuccess(ctx context.Context, userID, sessionID string, ip net.IP, ua string) {
	h.audit(ctx, "auth.login.success", ip, ua,
		slog.String("user_id", userID),
		slog.String("session_id", sessionID),
	)
}

func (h *Handler) auditRefreshSuccess(ctx context.Context, userID, sessionID string, ip net.IP, ua string) {
	h.audit(ctx, "auth.refresh.success", ip, ua,
		slog.String("user_id", userID),
		slog.String("session_id", sessionID),
	)
}

func (h *Handler) auditLogout(ctx context.Context, revoked bool, ip net.IP, ua string) {
	h.audit(ctx, "auth.logout", ip, ua, slog.Bool("revoked", revoked))
}

func (h *Handler) auditLogoutAll(ctx context.Context, userID string, n int64, ip net.IP, ua string) {
	h.audit(ctx, "auth.logout_all", ip, ua,
		slog.String("user_id", userID),
		slog.Int64("revoked", n),
	)
}

func (h *Handler) audit(ctx context.Context, action string, ip net.IP, ua string, attrs ...slog.Attr) {
	if h == nil || h.log == nil {
		return
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return
	}

	all := make([]slog.Attr, 0, len(attrs)+3)
	all = append(all, slog.String("action", action))
	if ip != nil {
		all = append(all, slog.String("ip", ip.String()))
	}
	if ua = strings.TrimSpace(ua); ua != "" {
		all = append(all, slog.String("user_agent", ua))
	}
	all = append(all, attrs...)

	h.log.LogAttrs(ctx, slog.LevelInfo, "auth.audit", all...)
}

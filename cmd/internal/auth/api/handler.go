package authapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"partsbin/cmd/identity"
	"partsbin/cmd/internal/auth"
)

// Handler wires HTTP auth endpoints to the auth service.
type Handler struct {
	log  *slog.Logger
	cfg  Config
	svc  *auth.Service
	gate *Gate
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, svc *auth.Service, cfg Config) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if svc == nil {
		return nil, errors.New("authapi: nil auth service")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}

	h := &Handler{log: log, cfg: cfg, svc: svc}
	h.gate = &Gate{h: h}
	return h, nil
}

// Gate returns the request gate sharing this handler's cookie settings.
func (h *Handler) Gate() *Gate {
	if h == nil {
		return nil
	}
	return h.gate
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/auth/register", h.handleRegister)
	mux.HandleFunc("/auth/login", h.handleLogin)
	mux.HandleFunc("/auth/refresh", h.handleRefresh)
	mux.HandleFunc("/auth/logout", h.handleLogout)
	mux.Handle("/auth/logout_all", h.gate.Require(http.HandlerFunc(h.handleLogoutAll)))
	mux.Handle("/auth/me", h.gate.Require(http.HandlerFunc(h.handleMe)))
	mux.Handle("/auth/sessions", h.gate.Require(http.HandlerFunc(h.handleSessions)))
}

// ---- handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	ctx := r.Context()
	res, err := h.svc.Register(ctx, auth.RegisterInput{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		writeServiceError(w, h.log, r, "auth.register.fail", err)
		return
	}

	h.auditRegister(ctx, res.User.ID, res.Session.ID, clientIP(r, h.cfg.TrustProxy), r.UserAgent())
	h.setAuthCookies(w, res)
	writeJSON(w, http.StatusCreated, authResponse{
		User:    toUserResponse(res.User),
		Session: toSessionResponse(res),
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	ctx := r.Context()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := r.UserAgent()
	identifier := identity.NormalizeEmail(req.Email)

	res, err := h.svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.auditLoginFailed(ctx, ip, ua, identifier, "invalid_credentials")
		}
		writeServiceError(w, h.log, r, "auth.login.fail", err)
		return
	}

	h.auditLoginSuccess(ctx, res.User.ID, res.Session.ID, ip, ua)
	h.setAuthCookies(w, res)
	writeJSON(w, http.StatusOK, authResponse{
		User:    toUserResponse(res.User),
		Session: toSessionResponse(res),
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req refreshRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
			return
		}
	}
	refreshToken := strings.TrimSpace(req.RefreshToken)
	fromCookie := false
	if refreshToken == "" {
		refreshToken, fromCookie = h.refreshTokenFromCookie(r)
	}
	if refreshToken == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}

	ctx := r.Context()
	res, err := h.svc.Refresh(ctx, refreshToken)
	if err != nil {
		if fromCookie && auth.IsUnauthenticated(err) {
			h.clearAuthCookies(w)
		}
		writeServiceError(w, h.log, r, "auth.refresh.fail", err)
		return
	}

	h.auditRefreshSuccess(ctx, res.User.ID, res.Session.ID, clientIP(r, h.cfg.TrustProxy), r.UserAgent())
	h.setAuthCookies(w, res)
	writeJSON(w, http.StatusOK, authResponse{
		User:    toUserResponse(res.User),
		Session: toSessionResponse(res),
	})
}

// handleLogout revokes whatever session the request can name: the body token,
// the access credential or the refresh cookie. It always clears the cookies.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req logoutRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
			return
		}
	}

	candidates := []string{strings.TrimSpace(req.Token), h.credential(r)}
	if v, ok := h.refreshTokenFromCookie(r); ok {
		candidates = append(candidates, v)
	}

	ctx := r.Context()
	revoked := false
	for _, raw := range candidates {
		if raw == "" {
			continue
		}
		ok, err := h.svc.Logout(ctx, raw)
		if err != nil {
			writeServiceError(w, h.log, r, "auth.logout.fail", err)
			return
		}
		if ok {
			revoked = true
			break
		}
	}

	h.auditLogout(ctx, revoked, clientIP(r, h.cfg.TrustProxy), r.UserAgent())
	h.clearAuthCookies(w)
	writeJSON(w, http.StatusOK, logoutResponse{Revoked: revoked})
}

func (h *Handler) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	u, _ := UserFromContext(ctx)
	n, err := h.svc.LogoutAll(ctx, u.ID)
	if err != nil {
		writeServiceError(w, h.log, r, "auth.logout_all.fail", err)
		return
	}

	h.auditLogoutAll(ctx, u.ID, n, clientIP(r, h.cfg.TrustProxy), r.UserAgent())
	h.clearAuthCookies(w)
	writeJSON(w, http.StatusOK, logoutAllResponse{Revoked: n})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	p, _ := PrincipalFromContext(ctx)

	// Token claims carry only id, email and admin; load the full row.
	u, err := h.svc.User(ctx, p.User.ID)
	if err != nil {
		if identity.IsNotFound(err) {
			writeAuthRequired(w)
			return
		}
		writeServiceError(w, h.log, r, "auth.me.fail", err)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{User: toUserResponse(u), Via: string(p.Via)})
}

func (h *Handler) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	u, _ := UserFromContext(ctx)
	n, err := h.svc.LiveSessions(ctx, u.ID)
	if err != nil {
		writeServiceError(w, h.log, r, "auth.sessions.fail", err)
		return
	}
	writeJSON(w, http.StatusOK, sessionsResponse{Live: n})
}

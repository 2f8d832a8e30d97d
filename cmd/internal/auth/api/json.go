package authapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"partsbin/cmd/internal/auth"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: apiError{Code: code, Message: msg}})
}

func writeAuthRequired(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="partsbin"`)
	writeError(w, http.StatusUnauthorized, "authentication_required", "authentication required")
}

// writeServiceError maps auth service errors to stable codes. Anything
// unrecognized is a system failure: logged, never echoed.
func writeServiceError(w http.ResponseWriter, log *slog.Logger, r *http.Request, event string, err error) {
	switch {
	case errors.Is(err, auth.ErrPasswordMismatch):
		writeError(w, http.StatusBadRequest, "password_mismatch", "passwords do not match")
	case errors.Is(err, auth.ErrPasswordTooWeak):
		writeError(w, http.StatusBadRequest, "password_too_weak", "password does not meet the policy")
	case errors.Is(err, auth.ErrInvalidEmail):
		writeError(w, http.StatusBadRequest, "invalid_email", "invalid email address")
	case errors.Is(err, auth.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email_taken", "email already registered")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
	case auth.IsUnauthenticated(err):
		writeAuthRequired(w)
	default:
		log.ErrorContext(r.Context(), event, "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer func() { _ = r.Body.Close() }()

	body := http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	// Ensure there is no extra data after the first JSON value.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("extra data after JSON object")
	}
	return nil
}

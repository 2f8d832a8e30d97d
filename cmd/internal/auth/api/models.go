package authapi

import "time"

type registerRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	Token string `json:"token"`
}

type userResponse struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	IsAdmin         bool       `json:"is_admin"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	LastSignInAt    *time.Time `json:"last_sign_in_at,omitempty"`
}

type sessionResponse struct {
	SessionID        string     `json:"session_id,omitempty"`
	SessionToken     string     `json:"session_token,omitempty"`
	SessionExpiresAt *time.Time `json:"session_expires_at,omitempty"`
	AccessToken      string     `json:"access_token"`
	AccessExpiresAt  time.Time  `json:"access_expires_at"`
	RefreshToken     string     `json:"refresh_token"`
	RefreshExpiresAt time.Time  `json:"refresh_expires_at"`
}

type authResponse struct {
	User    userResponse    `json:"user"`
	Session sessionResponse `json:"session"`
}

type meResponse struct {
	User userResponse `json:"user"`
	Via  string       `json:"via"`
}

type logoutResponse struct {
	Revoked bool `json:"revoked"`
}

type logoutAllResponse struct {
	Revoked int64 `json:"revoked"`
}

type sessionsResponse struct {
	Live int64 `json:"live"`
}

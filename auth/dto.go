package auth

import (
	"time"

	"github.com/user/blog-go/models"
)

// RegisterRequest represents the registration request payload.
// `validate` tags are checked by httpx.DecodeJSON before the service is called.
type RegisterRequest struct {
	Username string `json:"username" validate:"notblank,max=50" example:"newuser"`
	Email    string `json:"email" validate:"required,email" example:"user@example.com"`
	Password string `json:"password" validate:"required,min=6,max=72" example:"strongpassword123"`
	Avatar   string `json:"avatar,omitempty" validate:"omitempty,max=512" example:"/uploads/avatars/avatars-1f0c.png"`
}

// LoginRequest represents the login request payload.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email" example:"user@example.com"`
	Password string `json:"password" validate:"required" example:"strongpassword123"`
}

// ForgotPasswordRequest asks for a reset link to be sent to Email.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email" example:"user@example.com"`
}

// ResetPasswordRequest carries the new password; the token travels in the URL.
type ResetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=6,max=72" example:"newpassword123"`
}

// RegisterResponse is returned after a successful registration.
type RegisterResponse struct {
	Message string       `json:"message" example:"User registered successfully!"`
	User    *models.User `json:"user"`
}

// AuthResponse represents the authentication response: the public user view plus a bearer token.
type AuthResponse struct {
	*models.User
	Token     string    `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	TokenType string    `json:"token_type" example:"Bearer"`
	ExpiresAt time.Time `json:"expires_at"`
}

// MessageResponse is a generic acknowledgement.
type MessageResponse struct {
	Message string `json:"message" example:"Token sent to email!"`
}

func newAuthResponse(s *Session) AuthResponse {
	return AuthResponse{User: s.User, Token: s.Token, TokenType: "Bearer", ExpiresAt: s.ExpiresAt}
}

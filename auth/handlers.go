// This file is the HTTP ("controller") side of the auth module.
// Every handler decodes a tagged request struct, calls AuthService and writes JSON.
package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/user/blog-go/httpx"
)

// Handlers wraps the AuthService to provide HTTP handlers.
type Handlers struct {
	service *AuthService
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *AuthService) *Handlers {
	return &Handlers{service: service}
}

// HandleRegister godoc
// @Summary User Registration
// @Description Registers a new user. The email must not be registered yet.
// @Tags Users
// @Accept json
// @Produce json
// @Param registerBody body auth.RegisterRequest true "User registration details"
// @Success 201 {object} auth.RegisterResponse "User created successfully"
// @Failure 400 {object} apperror.ErrorResponse "Validation failed"
// @Failure 409 {object} apperror.ErrorResponse "Email already registered"
// @Failure 500 {object} apperror.ErrorResponse "Internal Server Error"
// @Router /users/register [post]
func (h *Handlers) HandleRegister() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.WriteError(w, r, err)
			return
		}

		user, err := h.service.Register(r.Context(), req)
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, RegisterResponse{Message: "User registered successfully!", User: user})
	}
}

// HandleLogin godoc
// @Summary User Login
// @Description Logs in with email and password and returns the user with a 30-day bearer token.
// @Tags Users
// @Accept json
// @Produce json
// @Param loginBody body auth.LoginRequest true "User login credentials"
// @Success 200 {object} auth.AuthResponse "Login successful"
// @Failure 400 {object} apperror.ErrorResponse "Validation failed"
// @Failure 401 {object} apperror.ErrorResponse "Invalid credentials"
// @Failure 500 {object} apperror.ErrorResponse "Internal Server Error"
// @Router /users/login [post]
func (h *Handlers) HandleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.WriteError(w, r, err)
			return
		}

		session, err := h.service.Login(r.Context(), req)
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, newAuthResponse(session))
	}
}

// HandleForgotPassword godoc
// @Summary Request a password reset
// @Description Emails a single-use reset link valid for 10 minutes. The response is the same whether or not the email is registered.
// @Tags Users
// @Accept json
// @Produce json
// @Param forgotBody body auth.ForgotPasswordRequest true "Account email"
// @Success 200 {object} auth.MessageResponse "Request accepted"
// @Failure 400 {object} apperror.ErrorResponse "Validation failed"
// @Failure 502 {object} apperror.ErrorResponse "The reset email could not be sent"
// @Router /users/forgot-password [post]
func (h *Handlers) HandleForgotPassword() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ForgotPasswordRequest
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.WriteError(w, r, err)
			return
		}

		if err := h.service.RequestPasswordReset(r.Context(), req.Email); err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, MessageResponse{
			Message: "If an account with that email exists, a password reset link has been sent.",
		})
	}
}

// HandleResetPassword godoc
// @Summary Reset password
// @Description Consumes a reset token, sets the new password and returns a fresh bearer token.
// @Tags Users
// @Accept json
// @Produce json
// @Param token path string true "Raw reset token from the email link"
// @Param resetBody body auth.ResetPasswordRequest true "New password"
// @Success 200 {object} auth.AuthResponse "Password changed and user logged in"
// @Failure 400 {object} apperror.ErrorResponse "Validation failed or token invalid/expired"
// @Failure 500 {object} apperror.ErrorResponse "Internal Server Error"
// @Router /users/reset-password/{token} [patch]
func (h *Handlers) HandleResetPassword() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ResetPasswordRequest
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.WriteError(w, r, err)
			return
		}

		session, err := h.service.ResetPassword(r.Context(), chi.URLParam(r, "token"), req.Password)
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, newAuthResponse(session))
	}
}

// Package auth is responsible for authentication: registration, login, bearer-token
// issuing and verification, and the password-reset flow.
// The HTTP side lives in handlers.go and middleware.go; everything here is transport-agnostic
// and returns apperror values the handlers translate into status codes.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"

	// Library for password hashing using bcrypt.
	"golang.org/x/crypto/bcrypt"

	"github.com/user/blog-go/apperror"
	"github.com/user/blog-go/clock"
	"github.com/user/blog-go/config"
	"github.com/user/blog-go/mail"
	"github.com/user/blog-go/models"
	"github.com/user/blog-go/store"
)

const (
	// MinPasswordLength applies to registration and password reset.
	MinPasswordLength = 6
	// MaxPasswordBytes is bcrypt's input limit, counted in bytes rather than characters.
	MaxPasswordBytes = 72
	// resetTokenBytes is the amount of randomness in a raw reset token.
	resetTokenBytes = 32
)

// AuthService provides authentication-related services.
// Dependencies are injected through NewAuthService; nothing here is global state.
type AuthService struct {
	users       store.UserStore
	mailer      mail.Mailer
	clock       clock.Clock
	authConfig  *config.AuthConfig
	frontendURL string
	// dummyHash is compared against when an email is unknown, so a failed login
	// costs one bcrypt comparison whichever way it fails.
	dummyHash []byte
}

// NewAuthService creates a new AuthService.
func NewAuthService(users store.UserStore, mailer mail.Mailer, clk clock.Clock, authConfig *config.AuthConfig, frontendURL string) *AuthService {
	cost := authConfig.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cost)
	if err != nil {
		// Only possible for an invalid cost, which was ruled out above.
		panic(fmt.Sprintf("auth: generating dummy hash: %v", err))
	}
	return &AuthService{
		users:       users,
		mailer:      mailer,
		clock:       clk,
		authConfig:  authConfig,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		dummyHash:   dummy,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) hashPassword(password string) (string, error) {
	cost := s.authConfig.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", apperror.NewInternalError("failed to hash password", err)
	}
	return string(hashed), nil
}

func checkPassword(password string) error {
	if len(password) < MinPasswordLength {
		return apperror.NewValidationError("password is too short", apperror.FieldError{
			Field:   "password",
			Message: fmt.Sprintf("must be at least %d characters long", MinPasswordLength),
		})
	}
	if len(password) > MaxPasswordBytes {
		return apperror.NewValidationError("password is too long", apperror.FieldError{
			Field:   "password",
			Message: fmt.Sprintf("must be at most %d bytes long", MaxPasswordBytes),
		})
	}
	return nil
}

// Register creates a new user. The plaintext password is hashed with bcrypt and never stored.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	if err := checkPassword(req.Password); err != nil {
		return nil, err
	}
	email := normalizeEmail(req.Email)

	// The unique index is the real guard; this lookup only gives the common case a clean error.
	if _, err := s.users.FindUserByEmail(ctx, email); err == nil {
		return nil, apperror.NewDuplicateEmailError(email)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, apperror.NewDatabaseError("failed to look up user", err)
	}

	hashed, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.users.InsertUser(ctx, &models.User{
		Username:       strings.TrimSpace(req.Username),
		Email:          email,
		HashedPassword: hashed,
		Avatar:         req.Avatar,
		CreatedAt:      s.clock.Now(),
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperror.NewDuplicateEmailError(email)
		}
		return nil, apperror.NewDatabaseError("failed to create user", err)
	}
	return user, nil
}

// Login authenticates a user and issues a bearer token.
// An unknown email and a wrong password produce the same InvalidCredentials error.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	user, err := s.users.FindUserByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(req.Password))
			return nil, apperror.NewInvalidCredentialsError()
		}
		log.Printf("Database error in Login when looking up user: %v", err)
		return nil, apperror.NewDatabaseError("failed to get user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)); err != nil {
		return nil, apperror.NewInvalidCredentialsError()
	}

	return s.newSession(user)
}

// RequestPasswordReset emails a reset link when the account exists. The result is the same
// whether or not it does; only the mail send (and a store failure) can make it fail.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.FindUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return apperror.NewDatabaseError("failed to look up user", err)
	}

	rawToken, tokenHash, err := newResetToken()
	if err != nil {
		return apperror.NewInternalError("failed to generate reset token", err)
	}
	expiresAt := s.clock.Now().Add(s.authConfig.PasswordResetDuration)

	if _, err := s.users.UpdateUser(ctx, user.ID, models.UserPatch{
		ResetTokenHash:      &tokenHash,
		ResetTokenExpiresAt: &expiresAt,
	}); err != nil {
		return apperror.NewDatabaseError("failed to store reset token", err)
	}

	resetURL := fmt.Sprintf("%s/reset-password/%s", s.frontendURL, rawToken)
	body := fmt.Sprintf("You are receiving this email because a password reset was requested for your account.\n\n"+
		"Open the link below to choose a new password:\n\n%s\n\n"+
		"The link expires in %s. If you did not request a reset, you can ignore this email.",
		resetURL, s.authConfig.PasswordResetDuration)

	if err := s.mailer.Send(ctx, user.Email, "Password reset request", body); err != nil {
		// The user was never told about this token, so it must not stay usable.
		// A fresh context: the request context may be the reason the send failed.
		clearCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resetRollbackTimeout)
		defer cancel()
		if _, clearErr := s.users.UpdateUser(clearCtx, user.ID, models.UserPatch{ClearResetToken: true}); clearErr != nil {
			log.Printf("Error clearing reset token for user %s after mail failure: %v", user.ID, clearErr)
		}
		return apperror.NewUpstreamFailureError("there was an error sending the email, try again later", err)
	}
	return nil
}

// ResetPassword consumes a reset token, replaces the password and logs the user in.
func (s *AuthService) ResetPassword(ctx context.Context, rawToken, newPassword string) (*Session, error) {
	if err := checkPassword(newPassword); err != nil {
		return nil, err
	}

	tokenHash := hashResetToken(rawToken)
	user, err := s.users.FindUserByResetToken(ctx, tokenHash, s.clock.Now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperror.NewInvalidOrExpiredTokenError()
		}
		return nil, apperror.NewDatabaseError("failed to look up reset token", err)
	}
	if user.ResetTokenHash == nil ||
		subtle.ConstantTimeCompare([]byte(*user.ResetTokenHash), []byte(tokenHash)) != 1 {
		return nil, apperror.NewInvalidOrExpiredTokenError()
	}

	hashed, err := s.hashPassword(newPassword)
	if err != nil {
		return nil, err
	}
	updated, err := s.users.UpdateUser(ctx, user.ID, models.UserPatch{
		HashedPassword:  &hashed,
		ClearResetToken: true,
	})
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to update password", err)
	}
	return s.newSession(updated)
}

func (s *AuthService) newSession(user *models.User) (*Session, error) {
	token, expiresAt, err := s.IssueToken(user.ID)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// newResetToken returns a random raw token (sent to the user) and its SHA-256 hex digest (stored).
func newResetToken() (raw, hash string, err error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	raw = hex.EncodeToString(buf)
	return raw, hashResetToken(raw), nil
}

func hashResetToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

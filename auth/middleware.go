// This file defines the HTTP middleware that guards routes. They follow the standard
// `func(next http.Handler) http.Handler` shape so chi can mount them per route group.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/user/blog-go/apperror"
	"github.com/user/blog-go/httpx"
	"github.com/user/blog-go/models"
	"github.com/user/blog-go/store"
)

// bearerToken extracts the token from an `Authorization: Bearer <token>` header.
func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", apperror.NewUnauthorizedError("Not authorized, no token", nil)
	}
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", apperror.NewUnauthorizedError("Authorization header format must be Bearer {token}", nil)
	}
	return parts[1], nil
}

// Authenticate rejects requests without a valid bearer token and stores the user id in the context.
func (s *AuthService) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		userID, err := s.VerifyToken(token)
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(NewContextWithUserID(r.Context(), userID)))
	})
}

// OptionalAuthenticate attaches the identity when a valid bearer token is present and
// otherwise lets the request through anonymously. It never fails the request.
func (s *AuthService) OptionalAuthenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token, err := bearerToken(r); err == nil {
			if userID, err := s.VerifyToken(token); err == nil {
				r = r.WithContext(NewContextWithUserID(r.Context(), userID))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin must run after Authenticate. The role is read from the stored user on every
// request, so nothing the client sends can grant it.
func (s *AuthService) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := s.CurrentUser(r.Context())
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		if !user.IsAdmin {
			httpx.WriteError(w, r, apperror.NewForbiddenError("Not authorized as an admin"))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userContextKey, user)))
	})
}

// CurrentUser loads the authenticated user named by the request context.
// A token for a user that no longer exists is treated as Unauthorized.
func (s *AuthService) CurrentUser(ctx context.Context) (*models.User, error) {
	if user, ok := ctx.Value(userContextKey).(*models.User); ok {
		return user, nil
	}
	userID, ok := UserIDFromContext(ctx)
	if !ok {
		return nil, apperror.NewUnauthorizedError("Not authorized, no token", nil)
	}
	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperror.NewUnauthorizedError("Not authorized, user not found", err)
		}
		return nil, apperror.NewDatabaseError("failed to load current user", err)
	}
	return user, nil
}

// IsAdmin reports whether the request's identity is an administrator. Anonymous callers are not.
func (s *AuthService) IsAdmin(ctx context.Context) bool {
	user, err := s.CurrentUser(ctx)
	return err == nil && user.IsAdmin
}

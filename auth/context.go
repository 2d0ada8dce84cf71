// This file carries the authenticated identity through the request's context.Context.
// Identity is request-scoped; handlers read it with UserIDFromContext instead of any global "current user".
package auth

import (
	"context"
)

// `contextKey` is a custom type for context keys. Using a custom type prevents collisions
// with context keys defined in other packages.
type contextKey string

const (
	userIDContextKey contextKey = "auth_user_id"
	userContextKey   contextKey = "auth_user"
)

// NewContextWithUserID returns a child context carrying the authenticated user id.
func NewContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// UserIDFromContext extracts the user id stored by Authenticate or OptionalAuthenticate.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	return userID, ok && userID != ""
}

package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusCodes(t *testing.T) {
	cases := []struct {
		err    *AppError
		status int
		code   string
	}{
		{NewValidationError("bad"), http.StatusBadRequest, "validation_error"},
		{NewDuplicateEmailError("a@b.c"), http.StatusConflict, "duplicate_email"},
		{NewInvalidCredentialsError(), http.StatusUnauthorized, "invalid_credentials"},
		{NewUnauthorizedError("no token", nil), http.StatusUnauthorized, "unauthorized"},
		{NewForbiddenError("admins only"), http.StatusForbidden, "forbidden"},
		{NewNotFoundError("missing", nil), http.StatusNotFound, "not_found"},
		{NewInvalidOrExpiredTokenError(), http.StatusBadRequest, "invalid_or_expired_token"},
		{NewUpstreamFailureError("smtp down", nil), http.StatusBadGateway, "upstream_failure"},
		{NewDatabaseError("db", nil), http.StatusInternalServerError, "database_error"},
	}
	for _, c := range cases {
		require.Equal(t, c.status, c.err.StatusCode(), c.err.Message)
		require.Equal(t, c.code, c.err.ToResponse().Code)
	}
}

func TestFromErrorLooksThroughWrapping(t *testing.T) {
	inner := NewNotFoundError("post not found", nil)
	wrapped := fmt.Errorf("loading post: %w", inner)

	ae, ok := FromError(wrapped)
	require.True(t, ok)
	require.Same(t, inner, ae)
	require.True(t, IsNotFound(wrapped))

	_, ok = FromError(errors.New("plain"))
	require.False(t, ok)
}

func TestResponseHidesUnderlyingError(t *testing.T) {
	err := NewDatabaseError("failed to load user", errors.New("connection refused on 10.0.0.3"))
	resp := err.ToResponse()
	require.Equal(t, "failed to load user", resp.Error)
	require.Contains(t, err.Error(), "connection refused")
}

func TestValidationErrorCarriesFields(t *testing.T) {
	err := NewValidationError("invalid request", FieldError{Field: "email", Message: "is required"})
	require.Len(t, err.ToResponse().Fields, 1)
	require.Equal(t, "email", err.ToResponse().Fields[0].Field)
}

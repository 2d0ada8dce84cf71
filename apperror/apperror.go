// Package apperror defines a centralized system for application-specific errors.
// Components return these typed failures; only the HTTP boundary turns them into
// status codes and JSON bodies, so no service decides transport semantics itself.
package apperror

import (
	"errors"
	"fmt"
	// `net/http` is used for HTTP status codes.
	"net/http"
)

// ErrorType is an enumeration (using `iota`) for the categories of application errors.
type ErrorType int

const (
	// UnknownError is for unspecified errors
	UnknownError ErrorType = iota
	// DatabaseError represents an error originating from the persistent store
	DatabaseError
	// ConfigError represents an error related to application configuration
	ConfigError
	// InvalidCredentialsError is returned by login, whether the email or the password was wrong
	InvalidCredentialsError
	// UnauthorizedError represents a missing, malformed or expired bearer token
	UnauthorizedError
	// ForbiddenError represents an authenticated caller without the required role or ownership
	ForbiddenError
	// NotFoundError represents a resource not found error
	NotFoundError
	// ValidationError represents an input validation error (with field details)
	ValidationError
	// BadRequestError represents a generic bad request (e.g. undecodable JSON)
	BadRequestError
	// InternalError represents a generic internal server error
	InternalError
	// UpstreamFailureError represents a failure of an external collaborator (mail, store)
	UpstreamFailureError
	// ConflictError represents a conflict, e.g., a category name that already exists
	ConflictError
	// DuplicateEmailError is returned by registration when the email is already taken
	DuplicateEmailError
	// InvalidOrExpiredTokenError is returned when a password-reset token does not resolve
	InvalidOrExpiredTokenError
)

// codes holds the stable machine-readable code of each error type.
// Clients may switch on these; changing one is a breaking API change.
var codes = map[ErrorType]string{
	UnknownError:               "unknown_error",
	DatabaseError:              "database_error",
	ConfigError:                "config_error",
	InvalidCredentialsError:    "invalid_credentials",
	UnauthorizedError:          "unauthorized",
	ForbiddenError:             "forbidden",
	NotFoundError:              "not_found",
	ValidationError:            "validation_error",
	BadRequestError:            "bad_request",
	InternalError:              "internal_error",
	UpstreamFailureError:       "upstream_failure",
	ConflictError:              "conflict",
	DuplicateEmailError:        "duplicate_email",
	InvalidOrExpiredTokenError: "invalid_or_expired_token",
}

// FieldError describes one invalid field of a request body.
type FieldError struct {
	Field   string `json:"field" example:"email"`
	Message string `json:"message" example:"must be a valid email address"`
}

// AppError is a custom error type for the application.
// It allows wrapping an underlying error (`Err`) for more detailed debugging;
// the wrapped error is never sent to clients.
type AppError struct {
	Type    ErrorType
	Message string
	Fields  []FieldError
	Err     error // Underlying error
}

// Error returns the string representation of the error, satisfying the `error` interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error so `errors.Is` and `errors.As` can inspect the chain.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Code returns the stable machine-readable code for the error type.
func (e *AppError) Code() string {
	if code, ok := codes[e.Type]; ok {
		return code
	}
	return codes[UnknownError]
}

// StatusCode returns the HTTP status code appropriate for the error type
func (e *AppError) StatusCode() int {
	switch e.Type {
	case DatabaseError, ConfigError, InternalError:
		return http.StatusInternalServerError
	case InvalidCredentialsError, UnauthorizedError:
		// 401 is for authentication problems (no/invalid token, bad credentials),
		// 403 for an authenticated caller lacking permission.
		return http.StatusUnauthorized
	case ForbiddenError:
		return http.StatusForbidden
	case NotFoundError:
		return http.StatusNotFound
	case ValidationError, BadRequestError, InvalidOrExpiredTokenError:
		return http.StatusBadRequest
	case UpstreamFailureError:
		return http.StatusBadGateway
	case ConflictError, DuplicateEmailError:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// NewAppError creates a new AppError. This is the generic constructor behind the typed ones below.
func NewAppError(errType ErrorType, message string, underlyingError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     underlyingError,
	}
}

// NewDatabaseError creates a new DatabaseError
func NewDatabaseError(message string, underlyingError error) *AppError {
	return NewAppError(DatabaseError, message, underlyingError)
}

// NewConfigError creates a new ConfigError
func NewConfigError(message string, underlyingError error) *AppError {
	return NewAppError(ConfigError, message, underlyingError)
}

// NewInvalidCredentialsError creates a new InvalidCredentialsError
func NewInvalidCredentialsError() *AppError {
	return NewAppError(InvalidCredentialsError, "invalid credentials", nil)
}

// NewUnauthorizedError creates a new UnauthorizedError (for authentication issues)
func NewUnauthorizedError(message string, underlyingError error) *AppError {
	return NewAppError(UnauthorizedError, message, underlyingError)
}

// NewForbiddenError creates a new ForbiddenError (for authorization issues)
func NewForbiddenError(message string) *AppError {
	return NewAppError(ForbiddenError, message, nil)
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(message string, underlyingError error) *AppError {
	return NewAppError(NotFoundError, message, underlyingError)
}

// NewValidationError creates a new ValidationError carrying per-field details.
func NewValidationError(message string, fields ...FieldError) *AppError {
	e := NewAppError(ValidationError, message, nil)
	e.Fields = fields
	return e
}

// NewBadRequestError creates a new BadRequestError
func NewBadRequestError(message string, underlyingError error) *AppError {
	return NewAppError(BadRequestError, message, underlyingError)
}

// NewInternalError creates a new InternalError
func NewInternalError(message string, underlyingError error) *AppError {
	return NewAppError(InternalError, message, underlyingError)
}

// NewUpstreamFailureError creates a new UpstreamFailureError
func NewUpstreamFailureError(message string, underlyingError error) *AppError {
	return NewAppError(UpstreamFailureError, message, underlyingError)
}

// NewConflictError creates a new ConflictError
func NewConflictError(message string, underlyingError error) *AppError {
	return NewAppError(ConflictError, message, underlyingError)
}

// NewDuplicateEmailError creates a new DuplicateEmailError
func NewDuplicateEmailError(email string) *AppError {
	return NewAppError(DuplicateEmailError, fmt.Sprintf("email '%s' is already registered", email), nil)
}

// NewInvalidOrExpiredTokenError creates a new InvalidOrExpiredTokenError
func NewInvalidOrExpiredTokenError() *AppError {
	return NewAppError(InvalidOrExpiredTokenError, "password reset token is invalid or has expired", nil)
}

// ErrorResponse represents a generic error response payload for API clients.
type ErrorResponse struct {
	// `example` is a struct tag used by Swagger/OpenAPI documentation generators.
	Code   string       `json:"code" example:"not_found"`
	Error  string       `json:"error" example:"A description of the error"`
	Fields []FieldError `json:"fields,omitempty"`
}

// ToResponse converts an AppError to an ErrorResponse suitable for API responses.
func (e *AppError) ToResponse() ErrorResponse {
	// Only the user-facing `Message` is included in the response, not the underlying `Err` details.
	return ErrorResponse{Code: e.Code(), Error: e.Message, Fields: e.Fields}
}

// FromError attempts to convert a generic error to an *AppError, looking through wrapped errors.
// It returns the *AppError and true if successful, otherwise nil and false.
func FromError(err error) (*AppError, bool) {
	if err == nil {
		return nil, false
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// Is reports whether err (or anything it wraps) is an AppError of the given type.
func Is(err error, errType ErrorType) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == errType
}

// IsNotFound checks if an error is a NotFound error
func IsNotFound(err error) bool {
	return Is(err, NotFoundError)
}

// IsUnauthorizedError checks if an error is an UnauthorizedError (authentication problem)
func IsUnauthorizedError(err error) bool {
	return Is(err, UnauthorizedError)
}

// IsForbiddenError checks if an error is a ForbiddenError (authorization problem)
func IsForbiddenError(err error) bool {
	return Is(err, ForbiddenError)
}

// IsValidationError checks if an error is a Validation error
func IsValidationError(err error) bool {
	return Is(err, ValidationError)
}

// IsConflictError checks if an error is a Conflict error
func IsConflictError(err error) bool {
	return Is(err, ConflictError)
}

package auth

import (
	"errors"
	"fmt"
	"time"

	// Third-party library for JWT handling. `jwt/v5` indicates version 5.
	"github.com/golang-jwt/jwt/v5"

	"github.com/user/blog-go/apperror"
)

const (
	// tokenIssuer is written to the `iss` claim of every bearer token.
	tokenIssuer = "blog-go"
	// resetRollbackTimeout bounds the cleanup write after a failed reset email.
	resetRollbackTimeout = 5 * time.Second
)

// Claims is the payload of a bearer token. The user id is carried both in the
// custom `user_id` claim and in the standard `sub` claim.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 bearer token for userID, valid for the configured duration.
func (s *AuthService) IssueToken(userID string) (string, time.Time, error) {
	now := s.clock.Now()
	expiresAt := now.Add(s.authConfig.TokenDuration)
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.authConfig.JWTSecret))
	if err != nil {
		return "", time.Time{}, apperror.NewInternalError("failed to sign token", err)
	}
	return signed, expiresAt, nil
}

// VerifyToken checks signature, algorithm and expiry and returns the user id the token carries.
// Every failure, including an empty token, is Unauthorized.
func (s *AuthService) VerifyToken(tokenString string) (string, error) {
	if tokenString == "" {
		return "", apperror.NewUnauthorizedError("missing bearer token", nil)
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(s.authConfig.JWTSecret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", apperror.NewUnauthorizedError("token has expired", err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return "", apperror.NewUnauthorizedError("invalid token signature", err)
		default:
			return "", apperror.NewUnauthorizedError("invalid token", err)
		}
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return "", apperror.NewUnauthorizedError("invalid token: user id claim is missing", nil)
	}
	return userID, nil
}

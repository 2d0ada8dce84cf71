package auth

import (
	"time"

	"github.com/user/blog-go/models"
)

// Session is the result of a successful login or password reset: the user and a fresh bearer token.
type Session struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
}

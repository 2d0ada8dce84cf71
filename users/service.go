// Package users manages user profiles: public lookups, listing, and the avatar and
// cover-image updates. Registration and login live in the auth package.
package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/user/blog-go/apperror"
	"github.com/user/blog-go/models"
	"github.com/user/blog-go/store"
)

// UserService provides methods for user profile management.
type UserService struct {
	users store.UserStore
}

// NewUserService creates a new UserService.
func NewUserService(users store.UserStore) *UserService {
	return &UserService{users: users}
}

// GetUserProfile retrieves a user's public profile by id.
func (s *UserService) GetUserProfile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperror.NewNotFoundError(fmt.Sprintf("user with ID %s not found", userID), nil)
		}
		return nil, apperror.NewDatabaseError("failed to get user profile", err)
	}
	return user, nil
}

// ListUsers returns every user in registration order.
func (s *UserService) ListUsers(ctx context.Context) ([]*models.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to list users", err)
	}
	return users, nil
}

// UpdateAvatar stores the relative path of a freshly uploaded avatar.
func (s *UserService) UpdateAvatar(ctx context.Context, userID, path string) (*models.User, error) {
	return s.update(ctx, userID, models.UserPatch{Avatar: &path})
}

// UpdateCoverImage stores the relative path of a freshly uploaded cover image.
func (s *UserService) UpdateCoverImage(ctx context.Context, userID, path string) (*models.User, error) {
	return s.update(ctx, userID, models.UserPatch{CoverImage: &path})
}

// SetAdmin grants or revokes the administrator role. It is only reachable from the CLI.
func (s *UserService) SetAdmin(ctx context.Context, email string, isAdmin bool) (*models.User, error) {
	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperror.NewNotFoundError(fmt.Sprintf("user with email %s not found", email), nil)
		}
		return nil, apperror.NewDatabaseError("failed to look up user", err)
	}
	return s.update(ctx, user.ID, models.UserPatch{IsAdmin: &isAdmin})
}

func (s *UserService) update(ctx context.Context, userID string, patch models.UserPatch) (*models.User, error) {
	user, err := s.users.UpdateUser(ctx, userID, patch)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperror.NewNotFoundError(fmt.Sprintf("user with ID %s not found", userID), nil)
		}
		return nil, apperror.NewDatabaseError("failed to update user", err)
	}
	return user, nil
}

// Package store declares the persistent-store contract the services depend on.
// Backends live in the subpackages `memory`, `postgres` and `mongo`; each assigns
// identifiers at insert time and applies patches atomically per document.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/user/blog-go/models"
)

var (
	// ErrNotFound is returned when an id or filter resolves to nothing.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate is returned when an insert violates a uniqueness constraint
	// (user email, category name, tag name).
	ErrDuplicate = errors.New("store: duplicate key")
)

// PostFilter narrows FindPosts. Nil fields do not filter.
type PostFilter struct {
	Approval   *models.ApprovalState
	AuthorID   *string
	CategoryID *string
}

// Matches reports whether p satisfies the filter. Backends without a query
// language (the memory store) use it directly; the others mirror it in their queries.
func (f PostFilter) Matches(p *models.Post) bool {
	if f.Approval != nil && p.Approval != *f.Approval {
		return false
	}
	if f.AuthorID != nil && p.AuthorID != *f.AuthorID {
		return false
	}
	if f.CategoryID != nil && p.CategoryID != *f.CategoryID {
		return false
	}
	return true
}

type UserStore interface {
	InsertUser(ctx context.Context, user *models.User) (*models.User, error)
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	// FindUserByResetToken returns the user whose stored reset-token hash equals
	// tokenHash and whose expiry is after now.
	FindUserByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error)
	UpdateUser(ctx context.Context, id string, patch models.UserPatch) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	// ClearExpiredResetTokens removes reset-token fields whose expiry is at or before now
	// and returns how many users were touched.
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}

type PostStore interface {
	InsertPost(ctx context.Context, post *models.Post) (*models.Post, error)
	FindPostByID(ctx context.Context, id string) (*models.Post, error)
	UpdatePost(ctx context.Context, id string, patch models.PostPatch) (*models.Post, error)
	DeletePost(ctx context.Context, id string) error
	// FindPosts returns matching posts, newest first.
	FindPosts(ctx context.Context, filter PostFilter) ([]*models.Post, error)
}

type CategoryStore interface {
	InsertCategory(ctx context.Context, category *models.Category) (*models.Category, error)
	FindCategoryByID(ctx context.Context, id string) (*models.Category, error)
	// ListCategories returns every category ordered by name.
	ListCategories(ctx context.Context) ([]*models.Category, error)
}

type TagStore interface {
	InsertTag(ctx context.Context, tag *models.Tag) (*models.Tag, error)
	// ListTags returns every tag ordered by name.
	ListTags(ctx context.Context) ([]*models.Tag, error)
}

type CommentStore interface {
	InsertComment(ctx context.Context, comment *models.Comment) (*models.Comment, error)
	// FindCommentsByPost returns the comments of a post, newest first.
	FindCommentsByPost(ctx context.Context, postID string) ([]*models.Comment, error)
}

// Store is the full persistent store as wired in main.
type Store interface {
	UserStore
	PostStore
	CategoryStore
	TagStore
	CommentStore
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// This file contains the business logic for comment operations.
package comments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/user/blog-go/apperror"
	"github.com/user/blog-go/clock"
	"github.com/user/blog-go/models"
	"github.com/user/blog-go/store"
)

// MaxCommentLength bounds a comment's content, counted in characters.
const MaxCommentLength = 10000

// Store is the subset of store.Store comments need.
type Store interface {
	store.CommentStore
	FindPostByID(ctx context.Context, id string) (*models.Post, error)
	FindUserByID(ctx context.Context, id string) (*models.User, error)
}

// CommentService defines the comment operations the handlers depend on.
type CommentService interface {
	AddComment(ctx context.Context, authorID string, req NewCommentRequest) (*CommentView, error)
	ListForPost(ctx context.Context, postID, viewerID string) ([]*CommentView, error)
}

type commentServiceImpl struct {
	store Store
	clock clock.Clock
}

// NewCommentService creates a new CommentService.
func NewCommentService(st Store, clk clock.Clock) CommentService {
	return &commentServiceImpl{store: st, clock: clk}
}

// AddComment stores a comment by authorID on an existing post.
func (s *commentServiceImpl) AddComment(ctx context.Context, authorID string, req NewCommentRequest) (*CommentView, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, apperror.NewValidationError("comment content is required", apperror.FieldError{
			Field: "content", Message: "is required",
		})
	}
	if n := utf8.RuneCountInString(content); n > MaxCommentLength {
		return nil, apperror.NewValidationError("comment is too long", apperror.FieldError{
			Field:   "content",
			Message: fmt.Sprintf("must be at most %d characters long (got %d)", MaxCommentLength, n),
		})
	}

	visible, err := s.postVisible(ctx, req.PostID, authorID)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, apperror.NewNotFoundError(fmt.Sprintf("post with ID %s not found", req.PostID), nil)
	}

	comment, err := s.store.InsertComment(ctx, &models.Comment{
		PostID:    req.PostID,
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: s.clock.Now(),
	})
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to add comment", err)
	}

	views, err := s.present(ctx, []*models.Comment{comment})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// ListForPost returns the comments on a post, newest first. An unknown post simply has none,
// and so does a post viewerID is not allowed to see. viewerID is empty for anonymous callers.
func (s *commentServiceImpl) ListForPost(ctx context.Context, postID, viewerID string) ([]*CommentView, error) {
	visible, err := s.postVisible(ctx, postID, viewerID)
	if err != nil {
		return nil, err
	}
	if !visible {
		return []*CommentView{}, nil
	}
	comments, err := s.store.FindCommentsByPost(ctx, postID)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to list comments", err)
	}
	return s.present(ctx, comments)
}

// postVisible applies the post visibility rule: approved posts are public, the others are
// visible to their author and to admins. An unknown post is reported as not visible.
func (s *commentServiceImpl) postVisible(ctx context.Context, postID, viewerID string) (bool, error) {
	post, err := s.store.FindPostByID(ctx, postID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, apperror.NewDatabaseError("failed to look up post", err)
	}
	if post.Approval == models.ApprovalApproved {
		return true, nil
	}
	if viewerID == "" {
		return false, nil
	}
	if viewerID == post.AuthorID {
		return true, nil
	}
	viewer, err := s.store.FindUserByID(ctx, viewerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, apperror.NewDatabaseError("failed to look up user", err)
	}
	return viewer.IsAdmin, nil
}

func (s *commentServiceImpl) present(ctx context.Context, comments []*models.Comment) ([]*CommentView, error) {
	authors := map[string]*CommentAuthor{}
	views := make([]*CommentView, 0, len(comments))
	for _, c := range comments {
		author, seen := authors[c.AuthorID]
		if !seen {
			u, err := s.store.FindUserByID(ctx, c.AuthorID)
			switch {
			case err == nil:
				author = &CommentAuthor{ID: u.ID, Username: u.Username, Avatar: u.Avatar}
			case !errors.Is(err, store.ErrNotFound):
				return nil, apperror.NewDatabaseError("failed to load comment author", err)
			}
			authors[c.AuthorID] = author
		}
		views = append(views, &CommentView{Comment: c, Author: author})
	}
	return views, nil
}

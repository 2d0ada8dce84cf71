// Package posts implements the post workflow: authoring, the moderation (approval) lifecycle
// and the public and administrative listings.
//
// Approval is independent of the draft/published status. Every post starts out pending, any
// edit sends it back to pending, and an admin may approve or reject it any number of times in
// any order. Public listings show approved posts only.
package posts

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/user/blog-go/apperror"
	"github.com/user/blog-go/clock"
	"github.com/user/blog-go/models"
	"github.com/user/blog-go/moderation"
	"github.com/user/blog-go/store"
)

// Store is the subset of store.Store the post workflow needs.
type Store interface {
	store.PostStore
	store.UserStore
	store.CategoryStore
}

// Viewer identifies who is looking at posts. The zero value is an anonymous visitor.
type Viewer struct {
	UserID  string
	IsAdmin bool
}

// CanSee reports whether v may see post. Approved posts are public; the others are
// visible only to their author and to admins.
func (v Viewer) CanSee(post *models.Post) bool {
	return post.Approval == models.ApprovalApproved || v.IsAdmin || (v.UserID != "" && v.UserID == post.AuthorID)
}

// CanModify reports whether v may edit or delete post.
func (v Viewer) CanModify(post *models.Post) bool {
	return v.IsAdmin || (v.UserID != "" && v.UserID == post.AuthorID)
}

// PostService holds the post workflow.
type PostService struct {
	store     Store
	publisher moderation.Publisher
	clock     clock.Clock
}

// NewPostService creates a new PostService.
func NewPostService(st Store, publisher moderation.Publisher, clk clock.Clock) *PostService {
	return &PostService{store: st, publisher: publisher, clock: clk}
}

func postNotFound(postID string) error {
	return apperror.NewNotFoundError(fmt.Sprintf("post with ID %s not found", postID), nil)
}

func (s *PostService) publish(eventType moderation.EventType, post *models.Post) {
	if s.publisher != nil {
		s.publisher.Publish(moderation.NewPostEvent(eventType, post, s.clock.Now()))
	}
}

func (s *PostService) requireCategory(ctx context.Context, categoryID string) error {
	if _, err := s.store.FindCategoryByID(ctx, categoryID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperror.NewValidationError("unknown category", apperror.FieldError{
				Field: "category_id", Message: "must reference an existing category",
			})
		}
		return apperror.NewDatabaseError("failed to look up category", err)
	}
	return nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// CreatePost stores a new post by authorID. It always starts out pending; status defaults
// to draft and the publish date to now.
func (s *PostService) CreatePost(ctx context.Context, authorID string, req CreatePostRequest) (*models.Post, error) {
	if _, err := s.store.FindUserByID(ctx, authorID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperror.NewUnauthorizedError("author account no longer exists", err)
		}
		return nil, apperror.NewDatabaseError("failed to look up author", err)
	}
	if err := s.requireCategory(ctx, req.CategoryID); err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = models.StatusDraft
	}
	if !status.Valid() {
		return nil, apperror.NewValidationError("invalid status", apperror.FieldError{
			Field: "status", Message: "must be one of: draft published",
		})
	}

	now := s.clock.Now()
	publishDate := now
	if req.PublishDate != nil {
		publishDate = req.PublishDate.UTC()
	}

	post, err := s.store.InsertPost(ctx, &models.Post{
		Title:         strings.TrimSpace(req.Title),
		Content:       req.Content,
		Excerpt:       req.Excerpt,
		Tags:          normalizeTags(req.Tags),
		CategoryID:    req.CategoryID,
		AuthorID:      authorID,
		FeaturedImage: req.FeaturedImage,
		Status:        status,
		Approval:      models.ApprovalPending,
		PublishDate:   publishDate,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to create post", err)
	}

	s.publish(moderation.PostCreated, post)
	return post, nil
}

// FindPost returns the post without any visibility check.
func (s *PostService) FindPost(ctx context.Context, postID string) (*models.Post, error) {
	post, err := s.store.FindPostByID(ctx, postID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, postNotFound(postID)
		}
		return nil, apperror.NewDatabaseError("failed to get post", err)
	}
	return post, nil
}

// GetPost returns the post if viewer may see it. Hidden posts are reported as NotFound
// so their existence is not revealed.
func (s *PostService) GetPost(ctx context.Context, postID string, viewer Viewer) (*models.Post, error) {
	post, err := s.FindPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !viewer.CanSee(post) {
		return nil, postNotFound(postID)
	}
	return post, nil
}

// EditPost applies a partial update. Whatever changed, the post goes back to pending.
// Deciding whether editorID may edit the post is left to the caller.
func (s *PostService) EditPost(ctx context.Context, postID, editorID string, req UpdatePostRequest) (*models.Post, error) {
	if req.CategoryID != nil {
		if err := s.requireCategory(ctx, *req.CategoryID); err != nil {
			return nil, err
		}
	}
	if req.Status != nil && !req.Status.Valid() {
		return nil, apperror.NewValidationError("invalid status", apperror.FieldError{
			Field: "status", Message: "must be one of: draft published",
		})
	}

	pending := models.ApprovalPending
	now := s.clock.Now()
	patch := models.PostPatch{
		Excerpt:       req.Excerpt,
		Content:       req.Content,
		CategoryID:    req.CategoryID,
		FeaturedImage: req.FeaturedImage,
		Status:        req.Status,
		Approval:      &pending,
		UpdatedAt:     &now,
	}
	if req.Title != nil {
		patch.Title = models.Ptr(strings.TrimSpace(*req.Title))
	}
	if req.Tags != nil {
		patch.Tags = models.Ptr(normalizeTags(*req.Tags))
	}

	post, err := s.store.UpdatePost(ctx, postID, patch)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, postNotFound(postID)
		}
		return nil, apperror.NewDatabaseError("failed to update post", err)
	}

	log.Printf("Post %s edited by %s; approval reset to pending", postID, editorID)
	s.publish(moderation.PostUpdated, post)
	return post, nil
}

// DeletePost removes the post and its comments.
func (s *PostService) DeletePost(ctx context.Context, postID string) error {
	post, err := s.FindPost(ctx, postID)
	if err != nil {
		return err
	}
	if err := s.store.DeletePost(ctx, postID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return postNotFound(postID)
		}
		return apperror.NewDatabaseError("failed to delete post", err)
	}
	s.publish(moderation.PostDeleted, post)
	return nil
}

// Approve marks the post approved. Content is not touched.
func (s *PostService) Approve(ctx context.Context, postID string) (*models.Post, error) {
	return s.setApproval(ctx, postID, models.ApprovalApproved, moderation.PostApproved)
}

// Reject marks the post rejected. A rejected post can later be edited or approved.
func (s *PostService) Reject(ctx context.Context, postID string) (*models.Post, error) {
	return s.setApproval(ctx, postID, models.ApprovalRejected, moderation.PostRejected)
}

func (s *PostService) setApproval(ctx context.Context, postID string, state models.ApprovalState, eventType moderation.EventType) (*models.Post, error) {
	post, err := s.store.UpdatePost(ctx, postID, models.PostPatch{Approval: &state})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, postNotFound(postID)
		}
		return nil, apperror.NewDatabaseError("failed to update post approval", err)
	}
	s.publish(eventType, post)
	return post, nil
}

// ListPublic returns approved posts, newest first. Status is not a filter: an approved
// draft is listed too.
func (s *PostService) ListPublic(ctx context.Context) ([]*models.Post, error) {
	approved := models.ApprovalApproved
	return s.find(ctx, store.PostFilter{Approval: &approved})
}

// ListForAdmin returns every post regardless of approval.
func (s *PostService) ListForAdmin(ctx context.Context) ([]*models.Post, error) {
	return s.find(ctx, store.PostFilter{})
}

// ListByCategory returns the approved posts of a category.
func (s *PostService) ListByCategory(ctx context.Context, categoryID string) ([]*models.Post, error) {
	approved := models.ApprovalApproved
	return s.find(ctx, store.PostFilter{Approval: &approved, CategoryID: &categoryID})
}

// ListByAuthor returns the author's posts that viewer may see: all of them for the author
// and admins, approved ones for everybody else.
func (s *PostService) ListByAuthor(ctx context.Context, authorID string, viewer Viewer) ([]*models.Post, error) {
	filter := store.PostFilter{AuthorID: &authorID}
	if !viewer.IsAdmin && viewer.UserID != authorID {
		approved := models.ApprovalApproved
		filter.Approval = &approved
	}
	return s.find(ctx, filter)
}

func (s *PostService) find(ctx context.Context, filter store.PostFilter) ([]*models.Post, error) {
	posts, err := s.store.FindPosts(ctx, filter)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to list posts", err)
	}
	return posts, nil
}

// Present resolves the author and category of each post. Lookups are cached per call,
// and a reference that no longer resolves is left empty rather than failing the listing.
func (s *PostService) Present(ctx context.Context, posts ...*models.Post) ([]*PostView, error) {
	authors := map[string]*AuthorSummary{}
	categories := map[string]*models.Category{}

	views := make([]*PostView, 0, len(posts))
	for _, p := range posts {
		view := &PostView{Post: p}

		if author, ok := authors[p.AuthorID]; ok {
			view.Author = author
		} else {
			u, err := s.store.FindUserByID(ctx, p.AuthorID)
			switch {
			case err == nil:
				view.Author = &AuthorSummary{ID: u.ID, Username: u.Username, Avatar: u.Avatar}
			case !errors.Is(err, store.ErrNotFound):
				return nil, apperror.NewDatabaseError("failed to load post author", err)
			}
			authors[p.AuthorID] = view.Author
		}

		if p.CategoryID != "" {
			if category, ok := categories[p.CategoryID]; ok {
				view.Category = category
			} else {
				c, err := s.store.FindCategoryByID(ctx, p.CategoryID)
				switch {
				case err == nil:
					view.Category = c
				case !errors.Is(err, store.ErrNotFound):
					return nil, apperror.NewDatabaseError("failed to load post category", err)
				}
				categories[p.CategoryID] = view.Category
			}
		}

		views = append(views, view)
	}
	return views, nil
}

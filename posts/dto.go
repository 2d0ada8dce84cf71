package posts

import (
	"time"

	"github.com/user/blog-go/models"
)

// CreatePostRequest is the body of POST /posts. The author comes from the bearer token.
type CreatePostRequest struct {
	Title         string            `json:"title" validate:"notblank,max=200" example:"Understanding Go channels"`
	Content       string            `json:"content" validate:"notblank" example:"Channels are typed conduits..."`
	Excerpt       string            `json:"excerpt" validate:"max=500" example:"A short tour of channels"`
	Tags          []string          `json:"tags" validate:"max=20,dive,notblank,max=50" example:"go,concurrency"`
	CategoryID    string            `json:"category_id" validate:"required" example:"8d2f0b8e-5c1a-4e8b-9d7e-0a1b2c3d4e5f"`
	FeaturedImage string            `json:"featured_image" validate:"max=512" example:"/uploads/images/images-1c2d.png"`
	Status        models.PostStatus `json:"status" validate:"omitempty,oneof=draft published" example:"draft"`
	PublishDate   *time.Time        `json:"publish_date,omitempty"`
}

// UpdatePostRequest is the body of PUT /posts/{id}. Absent fields are left unchanged.
// Approval is not part of it: every edit sends the post back to review.
type UpdatePostRequest struct {
	Title         *string            `json:"title,omitempty" validate:"omitempty,notblank,max=200"`
	Content       *string            `json:"content,omitempty" validate:"omitempty,notblank"`
	Excerpt       *string            `json:"excerpt,omitempty" validate:"omitempty,max=500"`
	Tags          *[]string          `json:"tags,omitempty" validate:"omitempty,max=20,dive,notblank,max=50"`
	CategoryID    *string            `json:"category_id,omitempty" validate:"omitempty,notblank"`
	FeaturedImage *string            `json:"featured_image,omitempty" validate:"omitempty,max=512"`
	Status        *models.PostStatus `json:"status,omitempty" validate:"omitempty,oneof=draft published"`
}

// AuthorSummary is the part of the author embedded in post responses.
type AuthorSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// PostView is a post with its author and category resolved.
type PostView struct {
	*models.Post
	Author   *AuthorSummary   `json:"author,omitempty"`
	Category *models.Category `json:"category,omitempty"`
}

// PostResponse wraps a single post with a human-readable message.
type PostResponse struct {
	Message string    `json:"message" example:"Post created successfully!"`
	Post    *PostView `json:"post"`
}

// PostListResponse is the body of GET /posts.
type PostListResponse struct {
	Posts []*PostView `json:"posts"`
}

// MessageResponse is a generic acknowledgement.
type MessageResponse struct {
	Message string `json:"message" example:"Post deleted successfully"`
}

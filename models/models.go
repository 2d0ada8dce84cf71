// Package models defines the entities shared by the services and the store backends.
// The structs carry JSON tags for API responses; store backends map them to their own
// row or document shapes.
package models

import "time"

// PostStatus is the visibility axis of a post.
type PostStatus string

const (
	StatusDraft     PostStatus = "draft"
	StatusPublished PostStatus = "published"
)

// Valid reports whether s is one of the known statuses.
func (s PostStatus) Valid() bool {
	return s == StatusDraft || s == StatusPublished
}

// ApprovalState is the moderation axis of a post, independent of PostStatus.
type ApprovalState string

const (
	ApprovalPending  ApprovalState = "pending"
	ApprovalApproved ApprovalState = "approved"
	ApprovalRejected ApprovalState = "rejected"
)

// Valid reports whether a is one of the known approval states.
func (a ApprovalState) Valid() bool {
	return a == ApprovalPending || a == ApprovalApproved || a == ApprovalRejected
}

// User represents an account. HashedPassword and the reset-token fields never leave the server.
type User struct {
	ID                  string     `json:"id"`
	Username            string     `json:"username"`
	Email               string     `json:"email"`
	HashedPassword      string     `json:"-"`
	Avatar              string     `json:"avatar"`
	CoverImage          string     `json:"cover_image"`
	IsAdmin             bool       `json:"is_admin"`
	ResetTokenHash      *string    `json:"-"`
	ResetTokenExpiresAt *time.Time `json:"-"`
	CreatedAt           time.Time  `json:"created_at"`
}

// UserPatch lists the user fields an update may change. Nil fields are left untouched.
// ClearResetToken removes both reset-token fields and wins over the two Set fields.
type UserPatch struct {
	HashedPassword      *string
	Avatar              *string
	CoverImage          *string
	IsAdmin             *bool
	ResetTokenHash      *string
	ResetTokenExpiresAt *time.Time
	ClearResetToken     bool
}

// Post is a blog article together with its moderation state.
type Post struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Content       string        `json:"content"`
	Excerpt       string        `json:"excerpt"`
	Tags          []string      `json:"tags"`
	CategoryID    string        `json:"category_id"`
	AuthorID      string        `json:"author_id"`
	FeaturedImage string        `json:"featured_image"`
	Status        PostStatus    `json:"status"`
	Approval      ApprovalState `json:"approval"`
	PublishDate   time.Time     `json:"publish_date"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// PostPatch lists the post fields an update may change. Nil fields are left untouched.
type PostPatch struct {
	Title         *string
	Content       *string
	Excerpt       *string
	Tags          *[]string
	CategoryID    *string
	FeaturedImage *string
	Status        *PostStatus
	Approval      *ApprovalState
	UpdatedAt     *time.Time
}

// Category groups posts by topic.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

// Tag is a free-form label; posts reference tags by name.
type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Comment is an immutable remark left by a user on a post.
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Ptr returns a pointer to v. Handy when building patches.
func Ptr[T any](v T) *T {
	return &v
}

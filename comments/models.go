// Package comments lets users leave remarks on posts.
// This file defines the request and response shapes of the comments module.
package comments

import "github.com/user/blog-go/models"

// NewCommentRequest is the body of POST /comments. The author is taken from the bearer
// token, never from the body.
type NewCommentRequest struct {
	PostID  string `json:"postId" validate:"required" example:"8d2f0b8e-5c1a-4e8b-9d7e-0a1b2c3d4e5f"`
	Content string `json:"content" validate:"notblank" example:"Great write-up, thanks!"`
}

// CommentAuthor is the part of the author embedded in comment responses.
type CommentAuthor struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// CommentView is a comment with its author resolved. Author is nil when the account is gone.
type CommentView struct {
	*models.Comment
	Author *CommentAuthor `json:"author,omitempty"`
}

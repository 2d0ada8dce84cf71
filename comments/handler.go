// This file is the HTTP side of the comments module.
package comments

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/user/blog-go/apperror"
	"github.com/user/blog-go/auth"
	"github.com/user/blog-go/httpx"
)

// CommentHandler handles HTTP requests for comments.
type CommentHandler struct {
	service CommentService
}

// NewCommentHandler creates a new CommentHandler.
func NewCommentHandler(service CommentService) *CommentHandler {
	return &CommentHandler{service: service}
}

// RegisterRoutes registers the comment routes on a router mounted at /comments.
// Posting a comment runs behind authenticate; listing behind optionalAuthenticate, so that
// authors and admins also see the comments of posts that are not approved.
func (h *CommentHandler) RegisterRoutes(router chi.Router, authenticate, optionalAuthenticate func(http.Handler) http.Handler) {
	router.With(optionalAuthenticate).Get("/", h.HandleListForPost())
	router.With(authenticate).Post("/", h.HandleAddComment())
}

// HandleAddComment godoc
// @Summary Add a comment
// @Description Adds a comment to a post on behalf of the authenticated user.
// @Tags Comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param commentBody body comments.NewCommentRequest true "Comment"
// @Success 201 {object} comments.CommentView
// @Failure 400 {object} apperror.ErrorResponse "Validation failed"
// @Failure 401 {object} apperror.ErrorResponse "Unauthorized"
// @Failure 404 {object} apperror.ErrorResponse "Post not found or not visible"
// @Router /comments [post]
func (h *CommentHandler) HandleAddComment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpx.WriteError(w, r, apperror.NewUnauthorizedError("user ID not found in context", nil))
			return
		}

		var req NewCommentRequest
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.WriteError(w, r, err)
			return
		}

		comment, err := h.service.AddComment(r.Context(), userID, req)
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, comment)
	}
}

// HandleListForPost godoc
// @Summary List comments of a post
// @Description Newest first, each with its author. Comments of a post that is not approved are listed only for its author and admins.
// @Tags Comments
// @Produce json
// @Param postId query string true "Post ID"
// @Success 200 {array} comments.CommentView
// @Failure 400 {object} apperror.ErrorResponse "postId is missing"
// @Router /comments [get]
func (h *CommentHandler) HandleListForPost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID := r.URL.Query().Get("postId")
		if postID == "" {
			httpx.WriteError(w, r, apperror.NewValidationError("postId query parameter is required", apperror.FieldError{
				Field: "postId", Message: "is required",
			}))
			return
		}

		viewerID, _ := auth.UserIDFromContext(r.Context())
		comments, err := h.service.ListForPost(r.Context(), postID, viewerID)
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, comments)
	}
}

// This file is the HTTP side of the post workflow.
package posts

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/user/blog-go/apperror"
	"github.com/user/blog-go/auth"
	"github.com/user/blog-go/httpx"
	"github.com/user/blog-go/models"
)

// Identity resolves the caller of a request. *auth.AuthService satisfies it.
type Identity interface {
	CurrentUser(ctx context.Context) (*models.User, error)
}

// PostHandlers provides HTTP handlers for posts.
type PostHandlers struct {
	service  *PostService
	identity Identity
}

// NewPostHandlers creates new PostHandlers.
func NewPostHandlers(service *PostService, identity Identity) *PostHandlers {
	return &PostHandlers{service: service, identity: identity}
}

// viewer builds the Viewer for the request. Anonymous requests, and tokens whose user is
// gone, yield the zero Viewer.
func (h *PostHandlers) viewer(r *http.Request) Viewer {
	if _, ok := auth.UserIDFromContext(r.Context()); !ok {
		return Viewer{}
	}
	user, err := h.identity.CurrentUser(r.Context())
	if err != nil {
		return Viewer{}
	}
	return Viewer{UserID: user.ID, IsAdmin: user.IsAdmin}
}

func (h *PostHandlers) writeOne(w http.ResponseWriter, r *http.Request, status int, message string, post *models.Post) {
	views, err := h.service.Present(r.Context(), post)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, status, PostResponse{Message: message, Post: views[0]})
}

func (h *PostHandlers) writeList(w http.ResponseWriter, r *http.Request, posts []*models.Post, wrapped bool) {
	views, err := h.service.Present(r.Context(), posts...)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if wrapped {
		httpx.WriteJSON(w, http.StatusOK, PostListResponse{Posts: views})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, views)
}

// authorizeChange loads the post and checks that the caller is its author or an admin.
func (h *PostHandlers) authorizeChange(r *http.Request, postID string) (Viewer, error) {
	v := h.viewer(r)
	if v.UserID == "" {
		return v, apperror.NewUnauthorizedError("Not authorized, no token", nil)
	}
	post, err := h.service.FindPost(r.Context(), postID)
	if err != nil {
		return v, err
	}
	if !v.CanModify(post) {
		return v, apperror.NewForbiddenError("You can only modify your own posts")
	}
	return v, nil
}

// HandleCreatePost godoc
// @Summary Create a post
// @Description Creates a post authored by the caller. New posts are always pending review.
// @Tags Posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param postBody body posts.CreatePostRequest true "Post fields"
// @Success 201 {object} posts.PostResponse
// @Failure 400 {object} apperror.ErrorResponse "Validation failed"
// @Failure 401 {object} apperror.ErrorResponse "Unauthorized"
// @Router /posts [post]
func (h *PostHandlers) HandleCreatePost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpx.WriteError(w, r, apperror.NewUnauthorizedError("user ID not found in context", nil))
			return
		}

		var req CreatePostRequest
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.WriteError(w, r, err)
			return
		}

		post, err := h.service.CreatePost(r.Context(), userID, req)
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		h.writeOne(w, r, http.StatusCreated, "Post created successfully!", post)
	}
}

// HandleListPublic godoc
// @Summary List approved posts
// @Description Returns approved posts, newest first.
// @Tags Posts
// @Produce json
// @Success 200 {object} posts.PostListResponse
// @Router /posts [get]
func (h *PostHandlers) HandleListPublic() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		posts, err := h.service.ListPublic(r.Context())
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		h.writeList(w, r, posts, true)
	}
}

// HandleListArticles godoc
// @Summary List approved posts as a bare array
// @Tags Posts
// @Produce json
// @Success 200 {array} posts.PostView
// @Router /posts/articles [get]
func (h *PostHandlers) HandleListArticles() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		posts, err := h.service.ListPublic(r.Context())
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		h.writeList(w, r, posts, false)
	}
}

// HandleListForAdmin godoc
// @Summary List every post
// @Description Returns all posts whatever their approval state. Admin only.
// @Tags Posts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} posts.PostListResponse
// @Failure 403 {object} apperror.ErrorResponse "Not an admin"
// @Router /posts/all [get]
func (h *PostHandlers) HandleListForAdmin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		posts, err := h.service.ListForAdmin(r.Context())
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		h.writeList(w, r, posts, true)
	}
}

// HandleListByAuthor godoc
// @Summary List a user's posts
// @Description Approved posts only, unless the caller is the author or an admin.
// @Tags Posts
// @Produce json
// @Param userId path string true "Author ID"
// @Success 200 {object} posts.PostListResponse
// @Router /posts/user/{userId} [get]
func (h *PostHandlers) HandleListByAuthor() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		posts, err := h.service.ListByAuthor(r.Context(), chi.URLParam(r, "userId"), h.viewer(r))
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		h.writeList(w, r, posts, true)
	}
}

// HandleListByCategory godoc
// @Summary List approved posts of a category
// @Tags Posts
// @Produce json
// @Param categoryId path string true "Category ID"
// @Success 200 {object} posts.PostListResponse
// @Router /posts/category/{categoryId} [get]
func (h *PostHandlers) HandleListByCategory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		posts, err := h.service.ListByCategory(r.Context(), chi.URLParam(r, "categoryId"))
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		h.writeList(w, r, posts, true)
	}
}

// HandleGetPost godoc
// @Summary Get a post
// @Description Posts that are not approved are visible only to their author and admins.
// @Tags Posts
// @Produce json
// @Param id path string true "Post ID"
// @Success 200 {object} posts.PostView
// @Failure 404 {object} apperror.ErrorResponse "Post not found"
// @Router /posts/{id} [get]
func (h *PostHandlers) HandleGetPost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		post, err := h.service.GetPost(r.Context(), chi.URLParam(r, "id"), h.viewer(r))
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		views, err := h.service.Present(r.Context(), post)
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, views[0])
	}
}

// HandleEditPost godoc
// @Summary Edit a post
// @Description Partially updates a post. Any edit sends the post back to pending review.
// @Tags Posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Param postBody body posts.UpdatePostRequest true "Fields to change"
// @Success 200 {object} posts.PostResponse
// @Failure 400 {object} apperror.ErrorResponse "Validation failed"
// @Failure 403 {object} apperror.ErrorResponse "Not the author or an admin"
// @Failure 404 {object} apperror.ErrorResponse "Post not found"
// @Router /posts/{id} [put]
func (h *PostHandlers) HandleEditPost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID := chi.URLParam(r, "id")
		v, err := h.authorizeChange(r, postID)
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}

		var req UpdatePostRequest
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.WriteError(w, r, err)
			return
		}

		post, err := h.service.EditPost(r.Context(), postID, v.UserID, req)
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		h.writeOne(w, r, http.StatusOK, "Post updated successfully and is pending approval", post)
	}
}

// HandleDeletePost godoc
// @Summary Delete a post
// @Description Deletes a post and its comments.
// @Tags Posts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Success 200 {object} posts.MessageResponse
// @Failure 403 {object} apperror.ErrorResponse "Not the author or an admin"
// @Failure 404 {object} apperror.ErrorResponse "Post not found"
// @Router /posts/{id} [delete]
func (h *PostHandlers) HandleDeletePost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID := chi.URLParam(r, "id")
		if _, err := h.authorizeChange(r, postID); err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		if err := h.service.DeletePost(r.Context(), postID); err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Post deleted successfully"})
	}
}

// HandleApprove godoc
// @Summary Approve a post
// @Tags Posts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Success 200 {object} posts.PostResponse
// @Failure 403 {object} apperror.ErrorResponse "Not an admin"
// @Failure 404 {object} apperror.ErrorResponse "Post not found"
// @Router /posts/{id}/approve [put]
func (h *PostHandlers) HandleApprove() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		post, err := h.service.Approve(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		h.writeOne(w, r, http.StatusOK, "Post approved", post)
	}
}

// HandleReject godoc
// @Summary Reject a post
// @Tags Posts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Success 200 {object} posts.PostResponse
// @Failure 403 {object} apperror.ErrorResponse "Not an admin"
// @Failure 404 {object} apperror.ErrorResponse "Post not found"
// @Router /posts/{id}/reject [put]
func (h *PostHandlers) HandleReject() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		post, err := h.service.Reject(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		h.writeOne(w, r, http.StatusOK, "Post rejected", post)
	}
}

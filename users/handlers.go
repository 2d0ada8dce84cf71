// This file is the HTTP side of the users module.
package users

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/user/blog-go/apperror"
	"github.com/user/blog-go/auth"
	"github.com/user/blog-go/httpx"
	"github.com/user/blog-go/models"
	"github.com/user/blog-go/uploads"
)

// UserHandlers provides HTTP handlers for user profile management.
type UserHandlers struct {
	service *UserService
	storage uploads.Storage
}

// NewUserHandlers creates new UserHandlers.
func NewUserHandlers(service *UserService, storage uploads.Storage) *UserHandlers {
	return &UserHandlers{service: service, storage: storage}
}

// HandleListUsers godoc
// @Summary List users
// @Description Returns every registered user (password hashes are never included).
// @Tags Users
// @Produce json
// @Success 200 {array} models.User
// @Failure 500 {object} apperror.ErrorResponse "Internal Server Error"
// @Router /users [get]
func (h *UserHandlers) HandleListUsers() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := h.service.ListUsers(r.Context())
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, users)
	}
}

// HandleGetUserProfile godoc
// @Summary Get a user's profile
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} models.User
// @Failure 404 {object} apperror.ErrorResponse "User not found"
// @Router /users/profile/{id} [get]
func (h *UserHandlers) HandleGetUserProfile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := h.service.GetUserProfile(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, user)
	}
}

// HandleMe godoc
// @Summary Get current user's profile
// @Description Retrieves the profile of the authenticated user.
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.User
// @Failure 401 {object} apperror.ErrorResponse "Unauthorized - Invalid or missing token"
// @Router /users/me [get]
func (h *UserHandlers) HandleMe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpx.WriteError(w, r, apperror.NewUnauthorizedError("user ID not found in context", nil))
			return
		}
		user, err := h.service.GetUserProfile(r.Context(), userID)
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, user)
	}
}

// HandleUpdateAvatar godoc
// @Summary Upload a new avatar
// @Tags Users
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param avatar formData file true "Image file (jpg, jpeg, png, gif, webp; max 5 MiB)"
// @Success 200 {object} users.ImageUpdateResponse
// @Failure 400 {object} apperror.ErrorResponse "No file or not an image"
// @Failure 401 {object} apperror.ErrorResponse "Unauthorized"
// @Router /users/profile/avatar [put]
func (h *UserHandlers) HandleUpdateAvatar() http.HandlerFunc {
	return h.handleImage(uploads.KindAvatar, "avatar", "Avatar updated successfully", h.service.UpdateAvatar)
}

// HandleUpdateCoverImage godoc
// @Summary Upload a new cover image
// @Tags Users
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param coverImage formData file true "Image file (jpg, jpeg, png, gif, webp; max 5 MiB)"
// @Success 200 {object} users.ImageUpdateResponse
// @Failure 400 {object} apperror.ErrorResponse "No file or not an image"
// @Failure 401 {object} apperror.ErrorResponse "Unauthorized"
// @Router /users/profile/cover [put]
func (h *UserHandlers) HandleUpdateCoverImage() http.HandlerFunc {
	return h.handleImage(uploads.KindCover, "coverImage", "Cover image updated successfully", h.service.UpdateCoverImage)
}

type imageUpdater func(ctx context.Context, userID, path string) (*models.User, error)

func (h *UserHandlers) handleImage(kind, field, message string, update imageUpdater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpx.WriteError(w, r, apperror.NewUnauthorizedError("user ID not found in context", nil))
			return
		}

		path, err := uploads.FromRequest(w, r, h.storage, kind, field)
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		if _, err := update(r.Context(), userID, path); err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, ImageUpdateResponse{
			Message: message,
			Path:    path,
			URL:     uploads.AbsoluteURL(r, path),
		})
	}
}

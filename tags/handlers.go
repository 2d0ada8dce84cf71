package tags

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/user/blog-go/httpx"
)

type TagHandlers struct {
	service *TagService
}

func NewTagHandlers(service *TagService) *TagHandlers {
	return &TagHandlers{service: service}
}

// RegisterRoutes mounts the tag endpoints on router; creation runs behind authenticate.
func (h *TagHandlers) RegisterRoutes(router chi.Router, authenticate func(http.Handler) http.Handler) {
	router.Get("/", h.HandleList())
	router.With(authenticate).Post("/", h.HandleCreate())
}

// HandleList godoc
// @Summary List tags
// @Tags Tags
// @Produce json
// @Success 200 {array} models.Tag
// @Router /tags [get]
func (h *TagHandlers) HandleList() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tags, err := h.service.List(r.Context())
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, tags)
	}
}

// HandleCreate godoc
// @Summary Create a tag
// @Tags Tags
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param tagBody body tags.CreateTagRequest true "Tag"
// @Success 201 {object} models.Tag
// @Failure 400 {object} apperror.ErrorResponse "Validation failed"
// @Failure 401 {object} apperror.ErrorResponse "Unauthorized"
// @Failure 409 {object} apperror.ErrorResponse "Tag already exists"
// @Router /tags [post]
func (h *TagHandlers) HandleCreate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateTagRequest
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		tag, err := h.service.Create(r.Context(), req)
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, tag)
	}
}

package categories

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/user/blog-go/httpx"
)

// CategoryHandlers provides HTTP handlers for categories.
type CategoryHandlers struct {
	service *CategoryService
}

// NewCategoryHandlers creates new CategoryHandlers.
func NewCategoryHandlers(service *CategoryService) *CategoryHandlers {
	return &CategoryHandlers{service: service}
}

// RegisterRoutes mounts the category endpoints on router. Creation runs behind the
// given middleware chain, which is expected to admit admins only.
func (h *CategoryHandlers) RegisterRoutes(router chi.Router, adminOnly ...func(http.Handler) http.Handler) {
	router.Get("/", h.HandleList())
	router.With(adminOnly...).Post("/", h.HandleCreate())
}

// HandleList godoc
// @Summary List categories
// @Tags Categories
// @Produce json
// @Success 200 {array} models.Category
// @Router /categories [get]
func (h *CategoryHandlers) HandleList() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		categories, err := h.service.List(r.Context())
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, categories)
	}
}

// HandleCreate godoc
// @Summary Create a category
// @Description Admin only. Category names are unique.
// @Tags Categories
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param categoryBody body categories.CreateCategoryRequest true "Category"
// @Success 201 {object} models.Category
// @Failure 400 {object} apperror.ErrorResponse "Validation failed"
// @Failure 403 {object} apperror.ErrorResponse "Not an admin"
// @Failure 409 {object} apperror.ErrorResponse "Category already exists"
// @Router /categories [post]
func (h *CategoryHandlers) HandleCreate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateCategoryRequest
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		category, err := h.service.Create(r.Context(), req)
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, category)
	}
}

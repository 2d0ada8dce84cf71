// Package categories manages the topics posts are filed under.
package categories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/user/blog-go/apperror"
	"github.com/user/blog-go/models"
	"github.com/user/blog-go/store"
)

// CreateCategoryRequest is the body of POST /categories.
type CreateCategoryRequest struct {
	Name  string `json:"name" validate:"notblank,max=100" example:"Engineering"`
	Image string `json:"image,omitempty" validate:"max=512" example:"/uploads/images/images-1c2d.png"`
}

// CategoryService creates and lists categories.
type CategoryService struct {
	categories store.CategoryStore
}

// NewCategoryService creates a new CategoryService.
func NewCategoryService(categories store.CategoryStore) *CategoryService {
	return &CategoryService{categories: categories}
}

// Create stores a new category. Names are unique.
func (s *CategoryService) Create(ctx context.Context, req CreateCategoryRequest) (*models.Category, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperror.NewValidationError("category name is required", apperror.FieldError{
			Field: "name", Message: "is required",
		})
	}

	category, err := s.categories.InsertCategory(ctx, &models.Category{Name: name, Image: strings.TrimSpace(req.Image)})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperror.NewConflictError(fmt.Sprintf("category %q already exists", name), err)
		}
		return nil, apperror.NewDatabaseError("failed to create category", err)
	}
	return category, nil
}

// List returns every category ordered by name.
func (s *CategoryService) List(ctx context.Context) ([]*models.Category, error) {
	categories, err := s.categories.ListCategories(ctx)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to list categories", err)
	}
	return categories, nil
}

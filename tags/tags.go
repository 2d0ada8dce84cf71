// Package tags manages the free-form labels posts reference by name.
package tags

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/user/blog-go/apperror"
	"github.com/user/blog-go/models"
	"github.com/user/blog-go/store"
)

// CreateTagRequest is the body of POST /tags.
type CreateTagRequest struct {
	Name string `json:"name" validate:"notblank,max=50" example:"golang"`
}

type TagService struct {
	tags store.TagStore
}

func NewTagService(tags store.TagStore) *TagService {
	return &TagService{tags: tags}
}

// Create stores a new tag. Names are unique.
func (s *TagService) Create(ctx context.Context, req CreateTagRequest) (*models.Tag, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperror.NewValidationError("tag name is required", apperror.FieldError{
			Field: "name", Message: "is required",
		})
	}

	tag, err := s.tags.InsertTag(ctx, &models.Tag{Name: name})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperror.NewConflictError(fmt.Sprintf("tag %q already exists", name), err)
		}
		return nil, apperror.NewDatabaseError("failed to create tag", err)
	}
	return tag, nil
}

// List returns every tag ordered by name.
func (s *TagService) List(ctx context.Context) ([]*models.Tag, error) {
	tags, err := s.tags.ListTags(ctx)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to list tags", err)
	}
	return tags, nil
}

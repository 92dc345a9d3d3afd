package service

import (
	"context"
	"errors"
	"strings"

	"github.com/Dev-Manje/helpdesk/internal/domain"
	"github.com/Dev-Manje/helpdesk/internal/repository"
	apperrors "github.com/Dev-Manje/helpdesk/pkg/util/errorutil"
	"github.com/Dev-Manje/helpdesk/pkg/util/validate"
)

// CategoryService manages the admin-owned category set.
type CategoryService struct {
	categories repository.CategoryRepository
	validator  *validate.Validator
	clock      Clock
}

// NewCategoryService constructs the service.
func NewCategoryService(repo repository.CategoryRepository, clock Clock) *CategoryService {
	if clock == nil {
		clock = SystemClock
	}
	return &CategoryService{categories: repo, validator: validate.Default, clock: clock}
}

// CategoryInput is the payload for CreateCategory.
type CategoryInput struct {
	Name        string `json:"name" validate:"required,max=64"`
	Description string `json:"description" validate:"max=500"`
}

func (s *CategoryService) CreateCategory(ctx context.Context, input CategoryInput) (*domain.Category, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := s.validator.Struct(input); err != nil {
		return nil, err
	}
	category := &domain.Category{
		Name:        input.Name,
		Description: strings.TrimSpace(input.Description),
		CreatedAt:   s.clock(),
	}
	if err := s.categories.Create(ctx, category); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperrors.NewConflict("category already exists", map[string]any{"name": input.Name})
		}
		return nil, apperrors.MapError(err)
	}
	return category, nil
}

// DeleteCategory removes a category. Existing tickets keep their label.
func (s *CategoryService) DeleteCategory(ctx context.Context, name string) error {
	if err := s.categories.Delete(ctx, name); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFound("category", map[string]any{"name": name})
		}
		return apperrors.MapError(err)
	}
	return nil
}

func (s *CategoryService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return categories, nil
}

func (s *CategoryService) Exists(ctx context.Context, name string) (bool, error) {
	ok, err := s.categories.Exists(ctx, strings.TrimSpace(name))
	if err != nil {
		return false, apperrors.MapError(err)
	}
	return ok, nil
}

// requireAll returns a validation error naming every unknown category.
func (s *CategoryService) requireAll(ctx context.Context, field string, names []string) error {
	var unknown []string
	for _, name := range names {
		ok, err := s.Exists(ctx, name)
		if err != nil {
			return err
		}
		if !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return apperrors.NewValidationError("unknown category", map[string]any{field: unknown})
	}
	return nil
}

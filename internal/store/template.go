package store

import (
	"context"
	"fmt"

	"invoice-service/internal/model"
)

func (s *Store) CreateTemplate(ctx context.Context, t *model.Template) error {
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("create template: %w", translate(err))
	}
	return nil
}

// ListTemplates returns the organization's templates ordered by name.
func (s *Store) ListTemplates(ctx context.Context, organizationID uint) ([]model.Template, error) {
	templates := []model.Template{}
	err := s.db.WithContext(ctx).
		Where("organization_id = ?", organizationID).
		Order("name ASC").
		Find(&templates).Error
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return templates, nil
}

// TemplateByID loads a template regardless of owner; callers enforce ownership.
func (s *Store) TemplateByID(ctx context.Context, id uint) (*model.Template, error) {
	var t model.Template
	if err := s.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

// SaveTemplate writes the name and extra fields of an existing template.
func (s *Store) SaveTemplate(ctx context.Context, t *model.Template) error {
	err := s.db.WithContext(ctx).
		Model(t).
		Select("name", "extra_fields", "updated_at").
		Updates(t).Error
	if err != nil {
		return fmt.Errorf("update template %d: %w", t.ID, translate(err))
	}
	return nil
}

func (s *Store) DeleteTemplate(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&model.Template{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete template %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

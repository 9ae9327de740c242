package store

import (
	"context"
	"fmt"
	"strings"

	"invoice-service/internal/model"
)

// ProfileUpdate carries the organization fields that may change after registration.
// Nil fields are left untouched.
type ProfileUpdate struct {
	OrganizationName *string
	CompanyAddress   *string
	CompanyEmail     *string
	CompanyPhone     *string
}

func (s *Store) CreateOrganization(ctx context.Context, org *model.Organization) error {
	org.Email = strings.ToLower(strings.TrimSpace(org.Email))
	if err := s.db.WithContext(ctx).Create(org).Error; err != nil {
		return fmt.Errorf("create organization: %w", translate(err))
	}
	return nil
}

func (s *Store) OrganizationByEmail(ctx context.Context, email string) (*model.Organization, error) {
	var org model.Organization
	err := s.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&org).Error
	if err != nil {
		return nil, translate(err)
	}
	return &org, nil
}

func (s *Store) OrganizationByID(ctx context.Context, id uint) (*model.Organization, error) {
	var org model.Organization
	if err := s.db.WithContext(ctx).First(&org, id).Error; err != nil {
		return nil, translate(err)
	}
	return &org, nil
}

// UpdateProfile applies the non-nil fields of upd and returns the stored organization.
func (s *Store) UpdateProfile(ctx context.Context, id uint, upd ProfileUpdate) (*model.Organization, error) {
	changes := map[string]interface{}{}
	if upd.OrganizationName != nil {
		changes["organization_name"] = *upd.OrganizationName
	}
	if upd.CompanyAddress != nil {
		changes["company_address"] = *upd.CompanyAddress
	}
	if upd.CompanyEmail != nil {
		changes["company_email"] = *upd.CompanyEmail
	}
	if upd.CompanyPhone != nil {
		changes["company_phone"] = *upd.CompanyPhone
	}

	if len(changes) > 0 {
		res := s.db.WithContext(ctx).Model(&model.Organization{}).Where("id = ?", id).Updates(changes)
		if res.Error != nil {
			return nil, fmt.Errorf("update organization %d: %w", id, translate(res.Error))
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}

	return s.OrganizationByID(ctx, id)
}

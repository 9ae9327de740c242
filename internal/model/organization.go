package model

import (
	"time"
)

// Organization is an account that owns templates and invoices
type Organization struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	OrganizationName string    `json:"organization_name" gorm:"type:varchar(200);not null"`
	Email            string    `json:"email" gorm:"type:varchar(100);uniqueIndex;not null"`
	Password         string    `json:"-" gorm:"type:varchar(255);not null"`
	CompanyAddress   string    `json:"company_address" gorm:"type:text"`
	CompanyEmail     string    `json:"company_email" gorm:"type:varchar(100)"`
	CompanyPhone     string    `json:"company_phone" gorm:"type:varchar(30)"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

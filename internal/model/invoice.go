package model

import (
	"time"

	"gorm.io/datatypes"

	"invoice-service/internal/billing"
)

// PaymentStatus is the payment state of an invoice
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "Pending"
	PaymentPaid    PaymentStatus = "Paid"
	// PaymentFailed is not produced by any flow yet.
	PaymentFailed PaymentStatus = "Failed"
)

// TemplateValue is one filled-in extra field, kept in submission order
type TemplateValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Invoice represents an issued invoice. Client, company and line-item data
// are fixed at creation; only payment fields change afterwards.
type Invoice struct {
	ID             uint   `json:"id" gorm:"primaryKey"`
	OrganizationID uint   `json:"organization_id" gorm:"not null;index;uniqueIndex:idx_invoice_org_number"`
	InvoiceNumber  string `json:"invoice_number" gorm:"type:varchar(50);not null;uniqueIndex:idx_invoice_org_number"`

	ClientName    string `json:"client_name" gorm:"type:varchar(200);not null;index"`
	ClientAddress string `json:"client_address" gorm:"type:text"`
	ClientEmail   string `json:"client_email" gorm:"type:varchar(100);not null"`

	CompanyName    string `json:"company_name" gorm:"type:varchar(200);not null"`
	CompanyAddress string `json:"company_address" gorm:"type:text"`
	CompanyEmail   string `json:"company_email" gorm:"type:varchar(100)"`
	CompanyPhone   string `json:"company_phone" gorm:"type:varchar(30)"`

	IssueDate time.Time  `json:"issue_date" gorm:"not null"`
	DueDate   *time.Time `json:"due_date"`

	LineItems datatypes.JSONSlice[billing.LineItem] `json:"line_items"`
	TaxRate   billing.Amount                        `json:"tax_rate" gorm:"type:numeric(7,2);not null"`
	SubTotal  billing.Amount                        `json:"sub_total" gorm:"type:numeric(14,2);not null"`
	TaxAmount billing.Amount                        `json:"tax_amount" gorm:"type:numeric(14,2);not null"`
	Total     billing.Amount                        `json:"total_amount" gorm:"column:total_amount;type:numeric(14,2);not null"`
	Notes     string                                `json:"notes" gorm:"type:text"`

	TemplateID   *uint                              `json:"template_id"`
	TemplateData datatypes.JSONSlice[TemplateValue] `json:"template_data"`

	PaymentStatus    PaymentStatus `json:"payment_status" gorm:"type:varchar(20);not null;default:Pending;index"`
	PaymentDate      *time.Time    `json:"payment_date"`
	GatewayOrderID   string        `json:"gateway_order_id,omitempty" gorm:"type:varchar(100)"`
	GatewayPaymentID string        `json:"gateway_payment_id,omitempty" gorm:"type:varchar(100)"`
	GatewaySignature string        `json:"-" gorm:"type:varchar(255)"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InvoiceSequence is the per-organization counter invoice numbers are drawn from
type InvoiceSequence struct {
	OrganizationID uint  `gorm:"primaryKey;autoIncrement:false"`
	LastValue      int64 `gorm:"not null"`
	UpdatedAt      time.Time
}

// All lists the models the schema is migrated from.
func All() []interface{} {
	return []interface{}{
		&Organization{},
		&Template{},
		&Invoice{},
		&InvoiceSequence{},
	}
}

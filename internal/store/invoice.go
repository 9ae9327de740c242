package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"invoice-service/internal/billing"
	"invoice-service/internal/model"
)

// InvoiceFilter narrows and pages an invoice listing.
type InvoiceFilter struct {
	ClientName string
	Page       int
	Limit      int
}

const (
	maxSequenceSkips = 1000
	defaultPageSize  = 20
	maxPageSize      = 100
)

func (f InvoiceFilter) normalize() InvoiceFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	return f
}

// InvoicePage is one page of a listing plus the unpaged match count.
type InvoicePage struct {
	Invoices []model.Invoice
	Total    int64
	Page     int
	Limit    int
}

// Stats summarises an organization's invoices for the dashboard.
type Stats struct {
	PaidCount    int64
	DueCount     int64
	TotalRevenue billing.Amount
}

// PaymentRecord is what a verified gateway callback stamps on an invoice.
type PaymentRecord struct {
	OrderID   string
	PaymentID string
	Signature string
	PaidAt    time.Time
}

// CreateInvoice assigns the next invoice number for the owning organization
// and inserts inv in the same transaction. The insert is retried with backoff
// if it still collides on the number.
func (s *Store) CreateInvoice(ctx context.Context, inv *model.Invoice) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		inv.ID = 0
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			number, err := s.nextFreeNumber(tx, inv.OrganizationID)
			if err != nil {
				return err
			}
			inv.InvoiceNumber = number
			return tx.Create(inv).Error
		})
		if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(s.createTries))
	if err != nil {
		return fmt.Errorf("create invoice: %w", translate(err))
	}
	return nil
}

// nextFreeNumber draws from the sequence until it yields a number no row
// already carries, e.g. rows written before the sequence existed.
func (s *Store) nextFreeNumber(tx *gorm.DB, organizationID uint) (string, error) {
	for i := 0; i < maxSequenceSkips; i++ {
		seq, err := nextSequence(tx, organizationID)
		if err != nil {
			return "", err
		}
		number := billing.FormatInvoiceNumber(seq, s.now())

		var taken int64
		err = tx.Model(&model.Invoice{}).
			Where("organization_id = ? AND invoice_number = ?", organizationID, number).
			Count(&taken).Error
		if err != nil {
			return "", fmt.Errorf("check invoice number: %w", err)
		}
		if taken == 0 {
			return number, nil
		}
	}
	return "", fmt.Errorf("no free invoice number after %d attempts: %w", maxSequenceSkips, ErrConflict)
}

// nextSequence increments and returns the organization's invoice counter.
// The UPDATE holds the row lock until the surrounding transaction ends.
func nextSequence(tx *gorm.DB, organizationID uint) (int64, error) {
	seed := model.InvoiceSequence{OrganizationID: organizationID}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return 0, fmt.Errorf("seed invoice sequence: %w", err)
	}

	err := tx.Model(&model.InvoiceSequence{}).
		Where("organization_id = ?", organizationID).
		Update("last_value", gorm.Expr("last_value + ?", 1)).Error
	if err != nil {
		return 0, fmt.Errorf("advance invoice sequence: %w", err)
	}

	var seq model.InvoiceSequence
	if err := tx.Where("organization_id = ?", organizationID).First(&seq).Error; err != nil {
		return 0, fmt.Errorf("read invoice sequence: %w", err)
	}
	return seq.LastValue, nil
}

func (s *Store) InvoiceByID(ctx context.Context, id uint) (*model.Invoice, error) {
	var inv model.Invoice
	if err := s.db.WithContext(ctx).First(&inv, id).Error; err != nil {
		return nil, translate(err)
	}
	return &inv, nil
}

// ListInvoices returns the organization's invoices newest first. ClientName
// is matched as a case-insensitive substring.
func (s *Store) ListInvoices(ctx context.Context, organizationID uint, f InvoiceFilter) (*InvoicePage, error) {
	f = f.normalize()

	q := s.db.WithContext(ctx).Model(&model.Invoice{}).Where("organization_id = ?", organizationID)
	if name := strings.TrimSpace(f.ClientName); name != "" {
		q = q.Where("LOWER(client_name) LIKE ? ESCAPE '\\'", "%"+escapeLike(strings.ToLower(name))+"%")
	}
	q = q.Session(&gorm.Session{})

	page := &InvoicePage{Invoices: []model.Invoice{}, Page: f.Page, Limit: f.Limit}
	if err := q.Count(&page.Total).Error; err != nil {
		return nil, fmt.Errorf("count invoices: %w", err)
	}

	err := q.Order("created_at DESC").Order("id DESC").
		Offset((f.Page - 1) * f.Limit).
		Limit(f.Limit).
		Find(&page.Invoices).Error
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return page, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// Stats counts paid and pending invoices and sums the paid totals.
// Failed invoices are in neither bucket.
func (s *Store) Stats(ctx context.Context, organizationID uint) (*Stats, error) {
	db := s.db.WithContext(ctx)
	st := &Stats{}

	err := db.Model(&model.Invoice{}).
		Where("organization_id = ? AND payment_status = ?", organizationID, model.PaymentPaid).
		Count(&st.PaidCount).Error
	if err != nil {
		return nil, fmt.Errorf("count paid invoices: %w", err)
	}

	err = db.Model(&model.Invoice{}).
		Where("organization_id = ? AND payment_status = ?", organizationID, model.PaymentPending).
		Count(&st.DueCount).Error
	if err != nil {
		return nil, fmt.Errorf("count due invoices: %w", err)
	}

	var revenue billing.Amount
	err = db.Model(&model.Invoice{}).
		Select("COALESCE(SUM(total_amount), 0)").
		Where("organization_id = ? AND payment_status = ?", organizationID, model.PaymentPaid).
		Row().Scan(&revenue)
	if err != nil {
		return nil, fmt.Errorf("sum revenue: %w", err)
	}
	st.TotalRevenue = revenue.Round2()

	return st, nil
}

// MarkPaid moves a pending invoice to Paid and records the gateway ids.
// Marking an already paid invoice is a no-op.
func (s *Store) MarkPaid(ctx context.Context, id uint, rec PaymentRecord) error {
	res := s.db.WithContext(ctx).Model(&model.Invoice{}).
		Where("id = ? AND payment_status = ?", id, model.PaymentPending).
		Updates(map[string]interface{}{
			"payment_status":     model.PaymentPaid,
			"payment_date":       rec.PaidAt,
			"gateway_order_id":   rec.OrderID,
			"gateway_payment_id": rec.PaymentID,
			"gateway_signature":  rec.Signature,
		})
	if res.Error != nil {
		return fmt.Errorf("mark invoice %d paid: %w", id, res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	inv, err := s.InvoiceByID(ctx, id)
	if err != nil {
		return err
	}
	if inv.PaymentStatus == model.PaymentPaid {
		return nil
	}
	return fmt.Errorf("invoice %d is %s: %w", id, inv.PaymentStatus, ErrConflict)
}

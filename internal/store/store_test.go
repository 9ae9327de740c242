package store

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"invoice-service/internal/billing"
	"invoice-service/internal/model"
	"invoice-service/pkg/config"
	"invoice-service/pkg/database"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.InitDB(&config.DBConfig{
		Driver:       "sqlite",
		SQLitePath:   fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
		MaxIdleConns: 1,
		MaxOpenConns: 1,
		LogLevel:     logger.Silent,
	})
	require.NoError(t, err)
	require.NoError(t, database.MigrateModels(db, model.All()...))
	t.Cleanup(func() { _ = database.Close(db) })

	s := New(db)
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func seedOrganization(t *testing.T, s *Store, email string) *model.Organization {
	t.Helper()
	org := &model.Organization{OrganizationName: "Org " + email, Email: email, Password: "hash"}
	require.NoError(t, s.CreateOrganization(context.Background(), org))
	return org
}

func newInvoice(orgID uint, client string, total float64) *model.Invoice {
	items := []billing.LineItem{{Description: "work", Quantity: billing.NewAmount(1), UnitPrice: billing.NewAmount(total)}}
	totals := billing.ComputeTotals(items, billing.Amount{})
	return &model.Invoice{
		OrganizationID: orgID,
		ClientName:     client,
		ClientEmail:    "client@example.test",
		CompanyName:    "Acme",
		IssueDate:      time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		LineItems:      items,
		SubTotal:       totals.SubTotal,
		TaxAmount:      totals.TaxAmount,
		Total:          totals.Total,
		PaymentStatus:  model.PaymentPending,
	}
}

func TestOrganizations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	org := seedOrganization(t, s, "Owner@Example.test")
	require.Equal(t, "owner@example.test", org.Email)

	t.Run("duplicate email conflicts", func(t *testing.T) {
		err := s.CreateOrganization(ctx, &model.Organization{OrganizationName: "x", Email: "owner@example.test", Password: "p"})
		require.ErrorIs(t, err, ErrConflict)
	})

	t.Run("lookup by email ignores case", func(t *testing.T) {
		got, err := s.OrganizationByEmail(ctx, " OWNER@example.test ")
		require.NoError(t, err)
		require.Equal(t, org.ID, got.ID)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := s.OrganizationByID(ctx, 999)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("update profile", func(t *testing.T) {
		phone := "+91 98765 43210"
		got, err := s.UpdateProfile(ctx, org.ID, ProfileUpdate{CompanyPhone: &phone})
		require.NoError(t, err)
		require.Equal(t, phone, got.CompanyPhone)
		require.Equal(t, org.OrganizationName, got.OrganizationName)

		_, err = s.UpdateProfile(ctx, 999, ProfileUpdate{CompanyPhone: &phone})
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestTemplates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := seedOrganization(t, s, "a@example.test")
	b := seedOrganization(t, s, "b@example.test")

	require.NoError(t, s.CreateTemplate(ctx, &model.Template{OrganizationID: a.ID, Name: "Services"}))
	consulting := &model.Template{
		OrganizationID: a.ID,
		Name:           "Consulting",
		ExtraFields:    []model.ExtraField{{ID: "po", Label: "PO Number", Type: "text"}},
	}
	require.NoError(t, s.CreateTemplate(ctx, consulting))

	err := s.CreateTemplate(ctx, &model.Template{OrganizationID: a.ID, Name: "Services"})
	require.ErrorIs(t, err, ErrConflict)
	require.NoError(t, s.CreateTemplate(ctx, &model.Template{OrganizationID: b.ID, Name: "Services"}))

	list, err := s.ListTemplates(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "Consulting", list[0].Name)
	require.Equal(t, "PO Number", list[0].ExtraFields[0].Label)

	consulting.ExtraFields = []model.ExtraField{}
	require.NoError(t, s.SaveTemplate(ctx, consulting))
	got, err := s.TemplateByID(ctx, consulting.ID)
	require.NoError(t, err)
	require.Empty(t, got.ExtraFields)

	consulting.Name = "Services"
	require.ErrorIs(t, s.SaveTemplate(ctx, consulting), ErrConflict)

	require.NoError(t, s.DeleteTemplate(ctx, consulting.ID))
	require.ErrorIs(t, s.DeleteTemplate(ctx, consulting.ID), ErrNotFound)
	_, err = s.TemplateByID(ctx, consulting.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateInvoiceNumbering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := seedOrganization(t, s, "a@example.test")
	b := seedOrganization(t, s, "b@example.test")

	first := newInvoice(a.ID, "Client", 10)
	require.NoError(t, s.CreateInvoice(ctx, first))
	require.Equal(t, "INV-0001-24", first.InvoiceNumber)

	second := newInvoice(a.ID, "Client", 10)
	require.NoError(t, s.CreateInvoice(ctx, second))
	require.Equal(t, "INV-0002-24", second.InvoiceNumber)

	other := newInvoice(b.ID, "Client", 10)
	require.NoError(t, s.CreateInvoice(ctx, other))
	require.Equal(t, "INV-0001-24", other.InvoiceNumber)
}

func TestCreateInvoiceSkipsTakenNumbers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	org := seedOrganization(t, s, "a@example.test")

	legacy := newInvoice(org.ID, "Legacy", 10)
	legacy.InvoiceNumber = "INV-0001-24"
	require.NoError(t, s.DB().Create(legacy).Error)

	inv := newInvoice(org.ID, "Client", 10)
	require.NoError(t, s.CreateInvoice(ctx, inv))
	require.Equal(t, "INV-0002-24", inv.InvoiceNumber)
}

// collideOnInsert makes the first n invoice inserts race a rival row that
// takes the same number inside the same transaction.
func collideOnInsert(t *testing.T, s *Store, n int) *int {
	t.Helper()
	calls := 0
	inserting := false
	err := s.DB().Callback().Create().Before("gorm:create").Register("test:collide", func(db *gorm.DB) {
		inv, ok := db.Statement.Dest.(*model.Invoice)
		if !ok || inserting {
			return
		}
		calls++
		if calls > n {
			return
		}
		inserting = true
		defer func() { inserting = false }()

		rival := *inv
		rival.ID = 0
		rival.ClientName = "rival"
		if err := db.Session(&gorm.Session{NewDB: true}).Create(&rival).Error; err != nil {
			_ = db.AddError(err)
		}
	})
	require.NoError(t, err)
	return &calls
}

func TestCreateInvoiceRetriesDuplicateNumber(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	org := seedOrganization(t, s, "a@example.test")
	calls := collideOnInsert(t, s, 1)

	inv := newInvoice(org.ID, "Wayne", 10)
	require.NoError(t, s.CreateInvoice(ctx, inv))
	require.Equal(t, 2, *calls)
	// the failed attempt rolled back with its rival row and sequence bump
	require.Equal(t, "INV-0001-24", inv.InvoiceNumber)

	page, err := s.ListInvoices(ctx, org.ID, InvoiceFilter{})
	require.NoError(t, err)
	require.EqualValues(t, 1, page.Total)
	require.Equal(t, "Wayne", page.Invoices[0].ClientName)
}

func TestCreateInvoiceGivesUpAfterRetries(t *testing.T) {
	s := newTestStore(t)
	s.createTries = 3
	ctx := context.Background()
	org := seedOrganization(t, s, "a@example.test")
	calls := collideOnInsert(t, s, 100)

	err := s.CreateInvoice(ctx, newInvoice(org.ID, "Wayne", 10))
	require.ErrorIs(t, err, ErrConflict)
	require.Equal(t, 3, *calls)

	page, err := s.ListInvoices(ctx, org.ID, InvoiceFilter{})
	require.NoError(t, err)
	require.Zero(t, page.Total)
}

func TestCreateInvoiceConcurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	org := seedOrganization(t, s, "a@example.test")

	const n = 20
	numbers := make(chan string, n)
	errs := make(chan error, n)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		go func() {
			<-start
			inv := newInvoice(org.ID, "Client", 10)
			if err := s.CreateInvoice(ctx, inv); err != nil {
				errs <- err
				return
			}
			numbers <- inv.InvoiceNumber
		}()
	}
	close(start)

	seen := map[string]bool{}
	for i := 0; i < n; i++ {
		select {
		case err := <-errs:
			t.Fatalf("create invoice: %v", err)
		case num := <-numbers:
			require.False(t, seen[num], "duplicate number %s", num)
			seen[num] = true
		case <-time.After(10 * time.Second):
			t.Fatal("timed out waiting for concurrent creates")
		}
	}
	for i := 1; i <= n; i++ {
		require.True(t, seen[fmt.Sprintf("INV-%04d-24", i)])
	}
}

func TestListInvoices(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	org := seedOrganization(t, s, "a@example.test")
	other := seedOrganization(t, s, "b@example.test")

	for _, name := range []string{"ACME Corp", "Globex", "big acme ltd", "100%_Real"} {
		require.NoError(t, s.CreateInvoice(ctx, newInvoice(org.ID, name, 10)))
	}
	require.NoError(t, s.CreateInvoice(ctx, newInvoice(other.ID, "Acme", 10)))

	t.Run("all newest first", func(t *testing.T) {
		page, err := s.ListInvoices(ctx, org.ID, InvoiceFilter{})
		require.NoError(t, err)
		require.EqualValues(t, 4, page.Total)
		require.Equal(t, "100%_Real", page.Invoices[0].ClientName)
	})

	t.Run("client name substring", func(t *testing.T) {
		page, err := s.ListInvoices(ctx, org.ID, InvoiceFilter{ClientName: "AcMe"})
		require.NoError(t, err)
		require.EqualValues(t, 2, page.Total)
	})

	t.Run("wildcards are literal", func(t *testing.T) {
		page, err := s.ListInvoices(ctx, org.ID, InvoiceFilter{ClientName: "%_"})
		require.NoError(t, err)
		require.EqualValues(t, 1, page.Total)
	})

	t.Run("pagination", func(t *testing.T) {
		page, err := s.ListInvoices(ctx, org.ID, InvoiceFilter{Page: 2, Limit: 3})
		require.NoError(t, err)
		require.EqualValues(t, 4, page.Total)
		require.Len(t, page.Invoices, 1)
		require.Equal(t, "ACME Corp", page.Invoices[0].ClientName)
	})
}

func TestStatsAndMarkPaid(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	org := seedOrganization(t, s, "a@example.test")

	a := newInvoice(org.ID, "A", 100)
	b := newInvoice(org.ID, "B", 50)
	c := newInvoice(org.ID, "C", 75.25)
	for _, inv := range []*model.Invoice{a, b, c} {
		require.NoError(t, s.CreateInvoice(ctx, inv))
	}

	paidAt := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	rec := PaymentRecord{OrderID: "order_1", PaymentID: "pay_1", Signature: "sig", PaidAt: paidAt}
	require.NoError(t, s.MarkPaid(ctx, a.ID, rec))
	require.NoError(t, s.MarkPaid(ctx, b.ID, rec))

	got, err := s.InvoiceByID(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, model.PaymentPaid, got.PaymentStatus)
	require.Equal(t, "pay_1", got.GatewayPaymentID)
	require.NotNil(t, got.PaymentDate)
	require.True(t, got.PaymentDate.Equal(paidAt))

	// paid invoices keep their first payment record
	require.NoError(t, s.MarkPaid(ctx, a.ID, PaymentRecord{OrderID: "order_2", PaymentID: "pay_2", PaidAt: paidAt}))
	got, err = s.InvoiceByID(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, "pay_1", got.GatewayPaymentID)

	require.ErrorIs(t, s.MarkPaid(ctx, 999, rec), ErrNotFound)

	st, err := s.Stats(ctx, org.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, st.PaidCount)
	require.EqualValues(t, 1, st.DueCount)
	require.Equal(t, "150.00", st.TotalRevenue.Format())

	empty := seedOrganization(t, s, "b@example.test")
	st, err = s.Stats(ctx, empty.ID)
	require.NoError(t, err)
	require.Zero(t, st.PaidCount)
	require.Equal(t, "0.00", st.TotalRevenue.Format())
}

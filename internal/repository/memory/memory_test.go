package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teambilling/internal/domain"
	"teambilling/internal/repository"
)

func TestInvoiceUniqueness(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	inv := &domain.Invoice{TenantID: 1, MemberID: 2, Month: 3, Year: 2024, Amount: decimal.NewFromInt(10), Status: domain.InvoiceStatusPending}
	require.NoError(t, store.Invoices.Create(ctx, inv))

	dup := &domain.Invoice{TenantID: 1, MemberID: 2, Month: 3, Year: 2024, Amount: decimal.NewFromInt(99), Status: domain.InvoiceStatusPending}
	assert.Equal(t, domain.ErrDuplicateInvoice, store.Invoices.Create(ctx, dup))

	got, err := store.Invoices.GetByMemberPeriod(ctx, 2, domain.Period{Month: 3, Year: 2024})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(10).Equal(got.Amount))
}

func TestApplyStateChange_CompareAndSet(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	tenant := &domain.Tenant{Name: "Hawks", LastEvaluatedAge: domain.NeverEvaluated}
	require.NoError(t, store.Tenants.Create(ctx, tenant))

	change := &repository.StateChange{
		TenantID:      tenant.ID,
		ExpectedState: domain.AccessStateActive,
		ExpectedAge:   domain.NeverEvaluated,
		NewState:      domain.AccessStateOverdue,
		NewAge:        8,
		Notifications: []*domain.Notification{{Title: "t", Type: domain.NotificationTypePaymentOverdue}},
	}
	require.NoError(t, store.Tenants.ApplyStateChange(ctx, change))
	assert.NotZero(t, change.Notifications[0].ID)

	// replaying the same change finds a moved cursor
	change.Notifications = nil
	err := store.Tenants.ApplyStateChange(ctx, change)
	assert.True(t, errors.Is(err, domain.ErrConcurrentUpdate))

	notes, total, err := store.Notifications.List(ctx, tenant.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(1), total)
	assert.Equal(t, tenant.ID, notes[0].TenantID)
}

func TestListActive_SkipsDeleted(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	a := &domain.Tenant{Name: "A"}
	b := &domain.Tenant{Name: "B"}
	require.NoError(t, store.Tenants.Create(ctx, a))
	require.NoError(t, store.Tenants.Create(ctx, b))

	now := time.Now()
	require.NoError(t, store.Tenants.ApplyStateChange(ctx, &repository.StateChange{
		TenantID: b.ID, ExpectedState: domain.AccessStateActive, NewState: domain.AccessStateDeleted, DeletedAt: &now,
	}))

	tenants, err := store.Tenants.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, tenants, 1)
	assert.Equal(t, a.ID, tenants[0].ID)
}

func TestMarkLateAndPaid(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	due := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	inv := &domain.Invoice{MemberID: 1, Month: 1, Year: 2024, DueDate: due, Status: domain.InvoiceStatusPending}
	require.NoError(t, store.Invoices.Create(ctx, inv))

	n, err := store.Invoices.MarkLate(ctx, due)
	require.NoError(t, err)
	assert.Zero(t, n, "due date itself is not late")

	n, err = store.Invoices.MarkLate(ctx, due.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, store.Invoices.MarkPaid(ctx, inv.ID, due.AddDate(0, 0, 2)))
	err = store.Invoices.MarkPaid(ctx, inv.ID, due.AddDate(0, 0, 3))
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
}

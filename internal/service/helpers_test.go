package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"teambilling/internal/channel"
	"teambilling/internal/clock"
	"teambilling/internal/domain"
	"teambilling/internal/repository"
	"teambilling/internal/repository/memory"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 6, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// recordingChannel captures messages and fails when err is set.
type recordingChannel struct {
	name string
	err  error

	mu   sync.Mutex
	sent []channel.Message
}

func (c *recordingChannel) Name() string                        { return c.name }
func (c *recordingChannel) CanDeliver(r channel.Recipient) bool { return true }

func (c *recordingChannel) Send(ctx context.Context, r channel.Recipient, msg channel.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return c.err
}

func (c *recordingChannel) messages() []channel.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]channel.Message(nil), c.sent...)
}

type fixture struct {
	store    *repository.Store
	clock    *clock.Fixed
	policy   domain.BillingPolicy
	channel  *recordingChannel
	fees     FeeService
	invoices InvoiceService
	debts    DebtService
	status   PaymentStatusService
	state    BillingStateService
	admin    AdminService
	notes    NotificationService
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()

	f := &fixture{
		store:   memory.NewStore(),
		clock:   clock.NewFixed(now),
		policy:  domain.DefaultBillingPolicy(),
		channel: &recordingChannel{name: "email"},
	}
	f.policy.PaymentLinkBase = "https://pay.example.com"
	f.wire(t)
	return f
}

// wire builds the services from the fixture's current policy and channel.
func (f *fixture) wire(t *testing.T) {
	t.Helper()

	renderer, err := NewRenderer(f.policy.Templates)
	require.NoError(t, err)

	dispatcher := NewDispatcher([]channel.Channel{f.channel}, time.Second, nil)
	notifier := NewNotifier(dispatcher, f.store.Notifications, renderer, nil, f.policy)

	f.fees = NewFeeService(f.store.Fees, f.store.Members, f.policy)
	f.invoices = NewInvoiceService(f.store.Invoices, f.store.Members, f.fees, nil)
	f.debts = NewDebtService(f.store.Debts, f.store.Members)
	f.status = NewPaymentStatusService(f.store.Members, f.store.Invoices, f.store.Debts, f.fees, f.policy)
	f.state = NewBillingStateService(f.store.Tenants, NewSubscriptionSignal(f.store.Subscriptions), notifier, f.policy, nil)
	f.admin = NewAdminService(f.store.Tenants, f.store.Members, f.store.Subscriptions, notifier, f.clock, nil)
	f.notes = NewNotificationService(f.store.Notifications, f.store.Tenants, notifier)
}

func (f *fixture) tenant(t *testing.T, created time.Time) *domain.Tenant {
	t.Helper()
	tenant := &domain.Tenant{Name: "Lions FC", Email: "owner@lions.test", CreatedAt: created}
	require.NoError(t, f.admin.CreateTenant(context.Background(), tenant))
	return tenant
}

func (f *fixture) member(t *testing.T, tenantID int32) *domain.Member {
	t.Helper()
	m := &domain.Member{TenantID: tenantID, Name: "Player"}
	require.NoError(t, f.admin.AddMember(context.Background(), m))
	return m
}

func (f *fixture) reload(t *testing.T, id int32) *domain.Tenant {
	t.Helper()
	tenant, err := f.store.Tenants.GetByID(context.Background(), id)
	require.NoError(t, err)
	return tenant
}

func (f *fixture) notifications(t *testing.T, tenantID int32) []domain.Notification {
	t.Helper()
	notes, _, err := f.store.Notifications.List(context.Background(), tenantID, 1000, 0)
	require.NoError(t, err)
	return notes
}

func countType(notes []domain.Notification, typ domain.NotificationType) int {
	n := 0
	for _, note := range notes {
		if note.Type == typ {
			n++
		}
	}
	return n
}

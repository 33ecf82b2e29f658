package repository

import (
	"context"
	"time"

	"teambilling/internal/domain"
)

// StateChange is one committed move of a tenant's lifecycle. The write succeeds only when the
// stored state and cursor still equal ExpectedState and ExpectedAge; otherwise it fails with
// domain.ErrConcurrentUpdate and nothing is written.
type StateChange struct {
	TenantID      int32
	ExpectedState domain.AccessState
	ExpectedAge   int
	NewState      domain.AccessState
	NewAge        int
	DeletedAt     *time.Time
	Notifications []*domain.Notification // inserted in the same transaction, IDs filled in
}

type TenantRepository interface {
	Create(ctx context.Context, tenant *domain.Tenant) error
	GetByID(ctx context.Context, id int32) (*domain.Tenant, error)
	// ListActive returns every tenant that has not been deleted, ordered by id.
	ListActive(ctx context.Context) ([]domain.Tenant, error)
	ApplyStateChange(ctx context.Context, change *StateChange) error
}

type MemberRepository interface {
	Create(ctx context.Context, member *domain.Member) error
	GetByID(ctx context.Context, id int32) (*domain.Member, error)
	// ListByTenant filters by status unless status is empty.
	ListByTenant(ctx context.Context, tenantID int32, status domain.MemberStatus) ([]domain.Member, error)
}

type FeeRepository interface {
	GetConfig(ctx context.Context, tenantID int32) (*domain.FeeConfig, error)
	UpsertConfig(ctx context.Context, cfg *domain.FeeConfig) error
	GetException(ctx context.Context, memberID int32) (*domain.FeeException, error)
	UpsertException(ctx context.Context, exc *domain.FeeException) error
	DeleteException(ctx context.Context, memberID int32) error
	ListExceptions(ctx context.Context, tenantID int32) ([]domain.FeeException, error)
}

type InvoiceRepository interface {
	// Create returns domain.ErrDuplicateInvoice when the member already has an invoice for the period.
	Create(ctx context.Context, invoice *domain.Invoice) error
	GetByID(ctx context.Context, id int32) (*domain.Invoice, error)
	GetByMemberPeriod(ctx context.Context, memberID int32, period domain.Period) (*domain.Invoice, error)
	// ListByMember returns invoices oldest period first.
	ListByMember(ctx context.Context, memberID int32) ([]domain.Invoice, error)
	MarkPaid(ctx context.Context, id int32, paidAt time.Time) error
	// MarkLate moves PENDING invoices whose due date is before asOf to LATE.
	MarkLate(ctx context.Context, asOf time.Time) (int64, error)
}

type DebtRepository interface {
	Create(ctx context.Context, debt *domain.HistoricalDebt) error
	ListByMember(ctx context.Context, memberID int32) ([]domain.HistoricalDebt, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, note *domain.Notification) error
	List(ctx context.Context, tenantID int32, limit, offset int32) ([]domain.Notification, int32, error)
	MarkAsRead(ctx context.Context, id, tenantID int32) error
	RecordDelivery(ctx context.Context, id int32, delivery map[string]bool) error
}

type SubscriptionRepository interface {
	Create(ctx context.Context, payment *domain.SubscriptionPayment) error
	ListByTenant(ctx context.Context, tenantID int32) ([]domain.SubscriptionPayment, error)
	// HasPaymentBetween reports whether the tenant paid within [from, to].
	HasPaymentBetween(ctx context.Context, tenantID int32, from, to time.Time) (bool, error)
}

type BatchReportRepository interface {
	Save(ctx context.Context, report *domain.BatchReport) error
	Latest(ctx context.Context) (*domain.BatchReport, error)
}

// Store bundles every repository of one storage backend.
type Store struct {
	Tenants       TenantRepository
	Members       MemberRepository
	Fees          FeeRepository
	Invoices      InvoiceRepository
	Debts         DebtRepository
	Notifications NotificationRepository
	Subscriptions SubscriptionRepository
	BatchReports  BatchReportRepository
}

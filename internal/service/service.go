package service

import (
	"context"
	"time"

	"teambilling/internal/channel"
	"teambilling/internal/domain"
)

type FeeService interface {
	GetEffectiveFee(ctx context.Context, tenantID, memberID int32) (*domain.EffectiveFee, error)
	GetFeeConfig(ctx context.Context, tenantID int32) (*domain.FeeConfig, error)
	SetFeeConfig(ctx context.Context, cfg *domain.FeeConfig) error
	SetException(ctx context.Context, exc *domain.FeeException) error
	RemoveException(ctx context.Context, tenantID, memberID int32) error
	ListExceptions(ctx context.Context, tenantID int32) ([]domain.FeeException, error)
}

type DebtService interface {
	AddDebt(ctx context.Context, debt *domain.HistoricalDebt) error
	ListDebts(ctx context.Context, memberID int32) ([]domain.HistoricalDebt, error)
}

type InvoiceService interface {
	// GenerateInvoices returns the number of invoices created. Members skipped for lack of a
	// fee are reported through a *domain.UnconfiguredMembersError next to the count.
	GenerateInvoices(ctx context.Context, tenantID int32, month, year int) (int, error)
	RecordPayment(ctx context.Context, invoiceID int32, paidAt time.Time) (*domain.Invoice, error)
	MarkLateInvoices(ctx context.Context, asOf time.Time) (int64, error)
	ListInvoices(ctx context.Context, memberID int32) ([]domain.Invoice, error)
}

type PaymentStatusService interface {
	ResolveStatus(ctx context.Context, memberID int32, asOf time.Time) (*domain.PaymentStatus, error)
	ResolveTenant(ctx context.Context, tenantID int32, asOf time.Time) ([]domain.PaymentStatus, error)
}

type BillingStateService interface {
	// Evaluate advances one tenant's lifecycle to now. The transition is committed before any
	// delivery is attempted; a *domain.DispatchFailure returned next to a transition does not
	// undo it.
	Evaluate(ctx context.Context, tenant *domain.Tenant, now time.Time) (*domain.Transition, error)
}

type AdminService interface {
	CreateTenant(ctx context.Context, tenant *domain.Tenant) error
	GetTenant(ctx context.Context, tenantID int32) (*domain.Tenant, error)
	AddMember(ctx context.Context, member *domain.Member) error
	Activate(ctx context.Context, tenantID int32) (*domain.Tenant, error)
	Pause(ctx context.Context, tenantID int32) (*domain.Tenant, error)
	Block(ctx context.Context, tenantID int32) (*domain.Tenant, error)
	Delete(ctx context.Context, tenantID int32) (*domain.Tenant, error)
	RecordSubscriptionPayment(ctx context.Context, payment *domain.SubscriptionPayment) error
	ListSubscriptionPayments(ctx context.Context, tenantID int32) ([]domain.SubscriptionPayment, error)
}

type NotificationService interface {
	GetNotifications(ctx context.Context, tenantID int32, page, pageSize int32) ([]domain.Notification, int32, error)
	MarkAsRead(ctx context.Context, tenantID, notificationID int32) error
	Send(ctx context.Context, tenantID int32, title, body string) (*domain.Notification, error)
}

// PaymentSignal answers whether a tenant has paid for its subscription.
type PaymentSignal interface {
	HasPaid(ctx context.Context, tenant *domain.Tenant, asOf time.Time) (bool, error)
}

type DispatchRequest struct {
	TenantID     int32
	ChannelHints []string // empty means every registered channel
	Title        string
	Body         string
	Type         domain.NotificationType
	Recipient    channel.Recipient
}

type DispatchResult struct {
	ChannelResults map[string]bool
	AnySucceeded   bool
	// Err is a *domain.DispatchFailure when at least one channel failed.
	Err error
}

type Dispatcher interface {
	Dispatch(ctx context.Context, req DispatchRequest) DispatchResult
}

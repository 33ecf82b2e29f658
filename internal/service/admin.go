package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"teambilling/internal/clock"
	"teambilling/internal/domain"
	"teambilling/internal/logger"
	"teambilling/internal/metrics"
	"teambilling/internal/repository"
)

const overrideAttempts = 3

type adminService struct {
	tenantRepo       repository.TenantRepository
	memberRepo       repository.MemberRepository
	subscriptionRepo repository.SubscriptionRepository
	notifier         *Notifier
	clock            clock.Clock
	metrics          *metrics.Metrics
}

func NewAdminService(
	tenantRepo repository.TenantRepository,
	memberRepo repository.MemberRepository,
	subscriptionRepo repository.SubscriptionRepository,
	notifier *Notifier,
	clk clock.Clock,
	m *metrics.Metrics,
) AdminService {
	return &adminService{
		tenantRepo:       tenantRepo,
		memberRepo:       memberRepo,
		subscriptionRepo: subscriptionRepo,
		notifier:         notifier,
		clock:            clk,
		metrics:          m,
	}
}

func (s *adminService) CreateTenant(ctx context.Context, tenant *domain.Tenant) error {
	if strings.TrimSpace(tenant.Name) == "" {
		return invalid("tenant name is required")
	}
	tenant.AccessState = domain.AccessStateActive
	tenant.LastEvaluatedAge = domain.NeverEvaluated
	tenant.DeletedAt = nil
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = s.clock.Now()
	}
	if err := s.tenantRepo.Create(ctx, tenant); err != nil {
		return fmt.Errorf("failed to create tenant: %w", err)
	}
	logger.Info("Tenant created", "tenantID", tenant.ID, "name", tenant.Name)
	return nil
}

func (s *adminService) GetTenant(ctx context.Context, tenantID int32) (*domain.Tenant, error) {
	return s.tenantRepo.GetByID(ctx, tenantID)
}

func (s *adminService) AddMember(ctx context.Context, member *domain.Member) error {
	if strings.TrimSpace(member.Name) == "" {
		return invalid("member name is required")
	}
	tenant, err := s.tenantRepo.GetByID(ctx, member.TenantID)
	if err != nil {
		return err
	}
	if tenant.IsDeleted() {
		return fmt.Errorf("tenant %d: %w", tenant.ID, domain.ErrTenantDeleted)
	}
	if member.JoinedAt.IsZero() {
		member.JoinedAt = s.clock.Now()
	}
	return s.memberRepo.Create(ctx, member)
}

func (s *adminService) Activate(ctx context.Context, tenantID int32) (*domain.Tenant, error) {
	return s.override(ctx, tenantID, domain.AccessStateActive)
}

func (s *adminService) Pause(ctx context.Context, tenantID int32) (*domain.Tenant, error) {
	return s.override(ctx, tenantID, domain.AccessStatePaused)
}

func (s *adminService) Block(ctx context.Context, tenantID int32) (*domain.Tenant, error) {
	return s.override(ctx, tenantID, domain.AccessStateBlocked)
}

func (s *adminService) Delete(ctx context.Context, tenantID int32) (*domain.Tenant, error) {
	return s.override(ctx, tenantID, domain.AccessStateDeleted)
}

// override sets the state directly. The lifecycle cursor is kept, so thresholds that passed
// while the tenant was held never fire afterwards.
func (s *adminService) override(ctx context.Context, tenantID int32, target domain.AccessState) (*domain.Tenant, error) {
	logger.EnterMethod("adminService.override", "tenantID", tenantID, "target", target)

	for attempt := 1; ; attempt++ {
		tenant, err := s.tenantRepo.GetByID(ctx, tenantID)
		if err != nil {
			logger.ExitMethodWithError("adminService.override", err)
			return nil, err
		}
		if tenant.IsDeleted() {
			err := fmt.Errorf("tenant %d: %w", tenantID, domain.ErrTenantDeleted)
			logger.ExitMethodWithError("adminService.override", err)
			return nil, err
		}
		if tenant.AccessState == target {
			logger.ExitMethod("adminService.override", "tenantID", tenantID, "changed", false)
			return tenant, nil
		}

		note, err := s.notifier.build(tenant, domain.NotificationTypeAccountStatus, target)
		if err != nil {
			return nil, err
		}
		change := &repository.StateChange{
			TenantID:      tenant.ID,
			ExpectedState: tenant.AccessState,
			ExpectedAge:   tenant.LastEvaluatedAge,
			NewState:      target,
			NewAge:        tenant.LastEvaluatedAge,
			Notifications: []*domain.Notification{note},
		}
		if target == domain.AccessStateDeleted {
			now := s.clock.Now()
			change.DeletedAt = &now
		}

		err = s.tenantRepo.ApplyStateChange(ctx, change)
		if errors.Is(err, domain.ErrConcurrentUpdate) && attempt < overrideAttempts {
			continue
		}
		if err != nil {
			logger.ExitMethodWithError("adminService.override", err)
			return nil, err
		}

		from := tenant.AccessState
		tenant.AccessState = target
		tenant.DeletedAt = change.DeletedAt
		s.metrics.RecordTransition(string(from), string(target))
		s.metrics.RecordNotification(string(note.Type))
		logger.Info("Tenant access state overridden", "tenantID", tenantID, "from", from, "to", target)

		if err := s.notifier.deliver(ctx, tenant, change.Notifications); err != nil {
			logger.Warn("Account status notification not fully delivered", "tenantID", tenantID, "error", err)
		}
		logger.ExitMethod("adminService.override", "tenantID", tenantID, "changed", true)
		return tenant, nil
	}
}

// RecordSubscriptionPayment stores the payment. An OVERDUE tenant returns to ACTIVE at once;
// BLOCKED and PAUSED tenants stay held until an administrator activates them.
func (s *adminService) RecordSubscriptionPayment(ctx context.Context, payment *domain.SubscriptionPayment) error {
	if !payment.Amount.IsPositive() {
		return invalid("payment amount must be positive: %s", payment.Amount)
	}
	tenant, err := s.tenantRepo.GetByID(ctx, payment.TenantID)
	if err != nil {
		return err
	}
	if tenant.IsDeleted() {
		return fmt.Errorf("tenant %d: %w", tenant.ID, domain.ErrTenantDeleted)
	}
	if payment.PaidAt.IsZero() {
		payment.PaidAt = s.clock.Now()
	}
	if err := s.subscriptionRepo.Create(ctx, payment); err != nil {
		return fmt.Errorf("failed to record subscription payment: %w", err)
	}
	logger.Info("Subscription payment recorded", "tenantID", tenant.ID, "amount", payment.Amount.String())

	if tenant.AccessState != domain.AccessStateOverdue {
		return nil
	}
	note, err := s.notifier.build(tenant, domain.NotificationTypePaymentConfirmed, domain.AccessStateActive)
	if err != nil {
		return err
	}
	change := &repository.StateChange{
		TenantID:      tenant.ID,
		ExpectedState: domain.AccessStateOverdue,
		ExpectedAge:   tenant.LastEvaluatedAge,
		NewState:      domain.AccessStateActive,
		NewAge:        tenant.LastEvaluatedAge,
		Notifications: []*domain.Notification{note},
	}
	if err := s.tenantRepo.ApplyStateChange(ctx, change); err != nil {
		// the daily pass restores the tenant from the recorded payment
		logger.Warn("Deferred reactivation after payment", "tenantID", tenant.ID, "error", err)
		return nil
	}
	tenant.AccessState = domain.AccessStateActive
	s.metrics.RecordTransition(string(domain.AccessStateOverdue), string(domain.AccessStateActive))
	if err := s.notifier.deliver(ctx, tenant, change.Notifications); err != nil {
		logger.Warn("Payment confirmation not fully delivered", "tenantID", tenant.ID, "error", err)
	}
	return nil
}

func (s *adminService) ListSubscriptionPayments(ctx context.Context, tenantID int32) ([]domain.SubscriptionPayment, error) {
	return s.subscriptionRepo.ListByTenant(ctx, tenantID)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"teambilling/internal/domain"
	"teambilling/internal/logger"
	"teambilling/internal/metrics"
	"teambilling/internal/repository"
)

type billingStateService struct {
	tenantRepo repository.TenantRepository
	payments   PaymentSignal
	notifier   *Notifier
	policy     domain.BillingPolicy
	metrics    *metrics.Metrics
}

func NewBillingStateService(
	tenantRepo repository.TenantRepository,
	payments PaymentSignal,
	notifier *Notifier,
	policy domain.BillingPolicy,
	m *metrics.Metrics,
) BillingStateService {
	return &billingStateService{
		tenantRepo: tenantRepo,
		payments:   payments,
		notifier:   notifier,
		policy:     policy,
		metrics:    m,
	}
}

// crossed reports whether the rule for threshold is due on this evaluation. With catch-up the
// rule fires on the first run at or after its day; otherwise only on a run landing on the day.
func (s *billingStateService) crossed(threshold, last, age int) bool {
	if s.policy.CatchUpMissedRuns {
		return last < threshold && threshold <= age
	}
	return age == threshold && last < threshold
}

// next decides the automatic move for an automation-owned tenant. Only the final rule's
// notification is produced when one run crosses several thresholds.
func (s *billingStateService) next(state domain.AccessState, last, age int) (domain.AccessState, domain.NotificationType) {
	switch state {
	case domain.AccessStateActive:
		if s.crossed(s.policy.OverdueDay, last, age) {
			if s.crossed(s.policy.BlockDay, last, age) {
				return domain.AccessStateBlocked, domain.NotificationTypeAccessBlocked
			}
			return domain.AccessStateOverdue, domain.NotificationTypePaymentOverdue
		}
		if s.crossed(s.policy.ReminderDay, last, age) {
			return domain.AccessStateActive, domain.NotificationTypePaymentReminder
		}
	case domain.AccessStateOverdue:
		if s.crossed(s.policy.BlockDay, last, age) {
			return domain.AccessStateBlocked, domain.NotificationTypeAccessBlocked
		}
	}
	return state, ""
}

func (s *billingStateService) Evaluate(ctx context.Context, tenant *domain.Tenant, now time.Time) (*domain.Transition, error) {
	log := logger.WithTenant(tenant.ID)

	if tenant.IsDeleted() {
		return nil, fmt.Errorf("tenant %d: %w", tenant.ID, domain.ErrTenantDeleted)
	}

	age := tenant.AgeDays(now)
	last := tenant.LastEvaluatedAge
	tr := &domain.Transition{TenantID: tenant.ID, From: tenant.AccessState, To: tenant.AccessState, AgeDays: age}
	if age < 0 || age <= last {
		// already evaluated for this age, or the tenant was created after now
		return tr, nil
	}

	newState, noteType := tenant.AccessState, domain.NotificationType("")
	if tenant.IsAutomationOwned() {
		newState, noteType = s.next(tenant.AccessState, last, age)

		if noteType != "" || tenant.AccessState == domain.AccessStateOverdue {
			paid, err := s.payments.HasPaid(ctx, tenant, now)
			if err != nil {
				return nil, &domain.PersistenceFailure{Op: "check payment", Err: err}
			}
			if paid {
				newState, noteType = domain.AccessStateActive, ""
				if tenant.AccessState == domain.AccessStateOverdue {
					noteType = domain.NotificationTypePaymentConfirmed
				}
			}
		}
	}

	var notes []*domain.Notification
	if noteType != "" {
		note, err := s.notifier.build(tenant, noteType, newState)
		if err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}

	change := &repository.StateChange{
		TenantID:      tenant.ID,
		ExpectedState: tenant.AccessState,
		ExpectedAge:   last,
		NewState:      newState,
		NewAge:        age,
		Notifications: notes,
	}
	if err := s.tenantRepo.ApplyStateChange(ctx, change); err != nil {
		if errors.Is(err, domain.ErrConcurrentUpdate) {
			return nil, err
		}
		return nil, &domain.PersistenceFailure{Op: "apply state change", Err: err}
	}

	tenant.AccessState = newState
	tenant.LastEvaluatedAge = age
	tr.To = newState

	if tr.Changed() {
		s.metrics.RecordTransition(string(tr.From), string(tr.To))
		log.Info("Tenant access state changed", "from", tr.From, "to", tr.To, "ageDays", age)
	}
	for _, n := range notes {
		s.metrics.RecordNotification(string(n.Type))
	}

	dispatchErr := s.notifier.deliver(ctx, tenant, notes)
	for _, n := range notes {
		tr.Notifications = append(tr.Notifications, *n)
	}
	return tr, dispatchErr
}

package service

import (
	"context"
	"time"

	"teambilling/internal/domain"
	"teambilling/internal/repository"
)

type subscriptionSignal struct {
	repo repository.SubscriptionRepository
}

// NewSubscriptionSignal treats any subscription payment made since signup as paid.
func NewSubscriptionSignal(repo repository.SubscriptionRepository) PaymentSignal {
	return &subscriptionSignal{repo: repo}
}

func (s *subscriptionSignal) HasPaid(ctx context.Context, tenant *domain.Tenant, asOf time.Time) (bool, error) {
	return s.repo.HasPaymentBetween(ctx, tenant.ID, tenant.CreatedAt, asOf)
}

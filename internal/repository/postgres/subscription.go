package postgres

import (
	"context"
	"database/sql"
	"time"

	"teambilling/internal/domain"
	"teambilling/internal/logger"
	"teambilling/internal/repository"
)

type subscriptionRepository struct {
	db *sql.DB
}

func NewSubscriptionRepository(db *sql.DB) repository.SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) Create(ctx context.Context, p *domain.SubscriptionPayment) error {
	p.CreatedAt = time.Now().UTC()
	if p.PaidAt.IsZero() {
		p.PaidAt = p.CreatedAt
	}
	query := `INSERT INTO subscription_payments (tenant_id, amount, reference, paid_at, created_at)
	          VALUES ($1, $2, $3, $4, $5) RETURNING id`
	logger.DatabaseCall("INSERT", "subscription_payments", "tenantID", p.TenantID)
	err := r.db.QueryRowContext(ctx, query, p.TenantID, p.Amount, p.Reference, p.PaidAt, p.CreatedAt).Scan(&p.ID)
	logger.DatabaseResult("INSERT", 1, err, "paymentID", p.ID)
	return err
}

func (r *subscriptionRepository) ListByTenant(ctx context.Context, tenantID int32) ([]domain.SubscriptionPayment, error) {
	query := `SELECT id, tenant_id, amount, reference, paid_at, created_at FROM subscription_payments
	          WHERE tenant_id = $1 ORDER BY paid_at DESC`
	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []domain.SubscriptionPayment
	for rows.Next() {
		var p domain.SubscriptionPayment
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Amount, &p.Reference, &p.PaidAt, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *subscriptionRepository) HasPaymentBetween(ctx context.Context, tenantID int32, from, to time.Time) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM subscription_payments WHERE tenant_id = $1 AND paid_at BETWEEN $2 AND $3)`
	var paid bool
	err := r.db.QueryRowContext(ctx, query, tenantID, from, to).Scan(&paid)
	return paid, err
}

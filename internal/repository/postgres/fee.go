package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"teambilling/internal/domain"
	"teambilling/internal/logger"
	"teambilling/internal/repository"
)

type feeRepository struct {
	db *sql.DB
}

func NewFeeRepository(db *sql.DB) repository.FeeRepository {
	return &feeRepository{db: db}
}

func (r *feeRepository) GetConfig(ctx context.Context, tenantID int32) (*domain.FeeConfig, error) {
	query := `SELECT tenant_id, amount, due_day, updated_at FROM fee_configs WHERE tenant_id = $1`
	logger.DatabaseCall("SELECT", "fee_configs", "tenantID", tenantID)
	cfg := &domain.FeeConfig{}
	err := r.db.QueryRowContext(ctx, query, tenantID).Scan(&cfg.TenantID, &cfg.Amount, &cfg.DueDay, &cfg.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		logger.DatabaseResult("SELECT", 0, nil, "tenantID", tenantID)
		return nil, fmt.Errorf("fee config for tenant %d: %w", tenantID, domain.ErrNotFound)
	}
	logger.DatabaseResult("SELECT", 1, err, "tenantID", tenantID)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (r *feeRepository) UpsertConfig(ctx context.Context, cfg *domain.FeeConfig) error {
	cfg.UpdatedAt = time.Now().UTC()
	query := `INSERT INTO fee_configs (tenant_id, amount, due_day, updated_at) VALUES ($1, $2, $3, $4)
	          ON CONFLICT (tenant_id) DO UPDATE
	          SET amount = EXCLUDED.amount, due_day = EXCLUDED.due_day, updated_at = EXCLUDED.updated_at`
	logger.DatabaseCall("UPSERT", "fee_configs", "tenantID", cfg.TenantID)
	_, err := r.db.ExecContext(ctx, query, cfg.TenantID, cfg.Amount, cfg.DueDay, cfg.UpdatedAt)
	logger.DatabaseResult("UPSERT", 1, err, "tenantID", cfg.TenantID)
	return err
}

func scanException(scan func(dest ...any) error) (*domain.FeeException, error) {
	exc := &domain.FeeException{}
	var amount decimal.NullDecimal
	if err := scan(&exc.MemberID, &exc.TenantID, &exc.IsExempt, &amount, &exc.UpdatedAt); err != nil {
		return nil, err
	}
	if amount.Valid {
		exc.Amount = &amount.Decimal
	}
	return exc, nil
}

func (r *feeRepository) GetException(ctx context.Context, memberID int32) (*domain.FeeException, error) {
	query := `SELECT member_id, tenant_id, is_exempt, amount, updated_at FROM fee_exceptions WHERE member_id = $1`
	exc, err := scanException(r.db.QueryRowContext(ctx, query, memberID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("fee exception for member %d: %w", memberID, domain.ErrNotFound)
	}
	return exc, err
}

func (r *feeRepository) UpsertException(ctx context.Context, exc *domain.FeeException) error {
	exc.UpdatedAt = time.Now().UTC()
	var amount decimal.NullDecimal
	if exc.Amount != nil {
		amount = decimal.NewNullDecimal(*exc.Amount)
	}
	query := `INSERT INTO fee_exceptions (member_id, tenant_id, is_exempt, amount, updated_at) VALUES ($1, $2, $3, $4, $5)
	          ON CONFLICT (member_id) DO UPDATE
	          SET is_exempt = EXCLUDED.is_exempt, amount = EXCLUDED.amount, updated_at = EXCLUDED.updated_at`
	logger.DatabaseCall("UPSERT", "fee_exceptions", "memberID", exc.MemberID)
	_, err := r.db.ExecContext(ctx, query, exc.MemberID, exc.TenantID, exc.IsExempt, amount, exc.UpdatedAt)
	logger.DatabaseResult("UPSERT", 1, err, "memberID", exc.MemberID)
	return err
}

func (r *feeRepository) DeleteException(ctx context.Context, memberID int32) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM fee_exceptions WHERE member_id = $1`, memberID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("fee exception for member %d: %w", memberID, domain.ErrNotFound)
	}
	return nil
}

func (r *feeRepository) ListExceptions(ctx context.Context, tenantID int32) ([]domain.FeeException, error) {
	query := `SELECT member_id, tenant_id, is_exempt, amount, updated_at FROM fee_exceptions
	          WHERE tenant_id = $1 ORDER BY member_id`
	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.FeeException
	for rows.Next() {
		exc, err := scanException(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *exc)
	}
	return out, rows.Err()
}

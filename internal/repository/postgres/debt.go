package postgres

import (
	"context"
	"database/sql"
	"time"

	"teambilling/internal/domain"
	"teambilling/internal/logger"
	"teambilling/internal/repository"
)

type debtRepository struct {
	db *sql.DB
}

func NewDebtRepository(db *sql.DB) repository.DebtRepository {
	return &debtRepository{db: db}
}

func (r *debtRepository) Create(ctx context.Context, d *domain.HistoricalDebt) error {
	d.CreatedAt = time.Now().UTC()
	query := `INSERT INTO historical_debts (member_id, tenant_id, amount, month, year, description, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	logger.DatabaseCall("INSERT", "historical_debts", "memberID", d.MemberID)
	err := r.db.QueryRowContext(ctx, query, d.MemberID, d.TenantID, d.Amount, d.Month, d.Year, d.Description, d.CreatedAt).Scan(&d.ID)
	logger.DatabaseResult("INSERT", 1, err, "debtID", d.ID)
	return err
}

func (r *debtRepository) ListByMember(ctx context.Context, memberID int32) ([]domain.HistoricalDebt, error) {
	query := `SELECT id, member_id, tenant_id, amount, month, year, description, created_at
	          FROM historical_debts WHERE member_id = $1 ORDER BY year, month, id`
	rows, err := r.db.QueryContext(ctx, query, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var debts []domain.HistoricalDebt
	for rows.Next() {
		var d domain.HistoricalDebt
		if err := rows.Scan(&d.ID, &d.MemberID, &d.TenantID, &d.Amount, &d.Month, &d.Year, &d.Description, &d.CreatedAt); err != nil {
			return nil, err
		}
		debts = append(debts, d)
	}
	return debts, rows.Err()
}

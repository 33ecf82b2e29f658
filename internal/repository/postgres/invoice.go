package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"teambilling/internal/domain"
	"teambilling/internal/logger"
	"teambilling/internal/repository"
)

type invoiceRepository struct {
	db *sql.DB
}

func NewInvoiceRepository(db *sql.DB) repository.InvoiceRepository {
	return &invoiceRepository{db: db}
}

const invoiceColumns = `id, tenant_id, member_id, month, year, amount, due_date, status, payment_date, created_at, updated_at`

func scanInvoice(scan func(dest ...any) error) (*domain.Invoice, error) {
	inv := &domain.Invoice{}
	err := scan(&inv.ID, &inv.TenantID, &inv.MemberID, &inv.Month, &inv.Year, &inv.Amount, &inv.DueDate,
		&inv.Status, &inv.PaymentDate, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *invoiceRepository) Create(ctx context.Context, inv *domain.Invoice) error {
	logger.EnterMethod("invoiceRepository.Create", "memberID", inv.MemberID, "period", inv.Period().String())

	now := time.Now().UTC()
	inv.CreatedAt = now
	inv.UpdatedAt = now

	query := `INSERT INTO invoices (tenant_id, member_id, month, year, amount, due_date, status, payment_date, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	          ON CONFLICT (member_id, month, year) DO NOTHING
	          RETURNING id`
	logger.DatabaseCall("INSERT", "invoices", "memberID", inv.MemberID)
	err := r.db.QueryRowContext(ctx, query, inv.TenantID, inv.MemberID, inv.Month, inv.Year, inv.Amount,
		inv.DueDate, inv.Status, inv.PaymentDate, inv.CreatedAt, inv.UpdatedAt).Scan(&inv.ID)
	if errors.Is(err, sql.ErrNoRows) {
		logger.DatabaseResult("INSERT", 0, nil, "memberID", inv.MemberID, "duplicate", true)
		logger.ExitMethod("invoiceRepository.Create", "duplicate", true)
		return domain.ErrDuplicateInvoice
	}
	logger.DatabaseResult("INSERT", 1, err, "invoiceID", inv.ID)
	if err != nil {
		logger.ExitMethodWithError("invoiceRepository.Create", err, "memberID", inv.MemberID)
		return err
	}

	logger.ExitMethod("invoiceRepository.Create", "invoiceID", inv.ID)
	return nil
}

func (r *invoiceRepository) GetByID(ctx context.Context, id int32) (*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	inv, err := scanInvoice(r.db.QueryRowContext(ctx, query, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("invoice %d: %w", id, domain.ErrNotFound)
	}
	return inv, err
}

func (r *invoiceRepository) GetByMemberPeriod(ctx context.Context, memberID int32, p domain.Period) (*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE member_id = $1 AND month = $2 AND year = $3`
	inv, err := scanInvoice(r.db.QueryRowContext(ctx, query, memberID, p.Month, p.Year).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("invoice for member %d in %s: %w", memberID, p, domain.ErrNotFound)
	}
	return inv, err
}

func (r *invoiceRepository) ListByMember(ctx context.Context, memberID int32) ([]domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE member_id = $1 ORDER BY year, month`
	logger.DatabaseCall("SELECT", "invoices", "memberID", memberID)
	rows, err := r.db.QueryContext(ctx, query, memberID)
	if err != nil {
		logger.DatabaseResult("SELECT", 0, err)
		return nil, err
	}
	defer rows.Close()

	var invoices []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows.Scan)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *inv)
	}
	logger.DatabaseResult("SELECT", int64(len(invoices)), rows.Err())
	return invoices, rows.Err()
}

func (r *invoiceRepository) MarkPaid(ctx context.Context, id int32, paidAt time.Time) error {
	query := `UPDATE invoices SET status = $1, payment_date = $2, updated_at = $3
	          WHERE id = $4 AND status IN ($5, $6)`
	result, err := r.db.ExecContext(ctx, query, domain.InvoiceStatusPaid, paidAt, time.Now().UTC(), id,
		domain.InvoiceStatusPending, domain.InvoiceStatusLate)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}

	// Either the invoice does not exist or it is no longer payable.
	var status domain.InvoiceStatus
	err = r.db.QueryRowContext(ctx, `SELECT status FROM invoices WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("invoice %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("invoice %d is %s: %w", id, status, domain.ErrInvalidTransition)
}

func (r *invoiceRepository) MarkLate(ctx context.Context, asOf time.Time) (int64, error) {
	query := `UPDATE invoices SET status = $1, updated_at = $2 WHERE status = $3 AND due_date < $4`
	logger.DatabaseCall("UPDATE", "invoices", "asOf", asOf.Format("2006-01-02"))
	result, err := r.db.ExecContext(ctx, query, domain.InvoiceStatusLate, time.Now().UTC(),
		domain.InvoiceStatusPending, asOf)
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err)
		return 0, err
	}
	rows, err := result.RowsAffected()
	logger.DatabaseResult("UPDATE", rows, err)
	return rows, err
}

package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/lib/pq"

	"teambilling/internal/logger"
	"teambilling/internal/repository"
)

//go:embed schema.sql
var schema string

// NewStore wires every postgres repository onto one connection pool.
func NewStore(db *sql.DB) *repository.Store {
	return &repository.Store{
		Tenants:       NewTenantRepository(db),
		Members:       NewMemberRepository(db),
		Fees:          NewFeeRepository(db),
		Invoices:      NewInvoiceRepository(db),
		Debts:         NewDebtRepository(db),
		Notifications: NewNotificationRepository(db),
		Subscriptions: NewSubscriptionRepository(db),
		BatchReports:  NewBatchReportRepository(db),
	}
}

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, dsn string, maxOpenConns int) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// Migrate creates missing tables and indexes.
func Migrate(ctx context.Context, db *sql.DB) error {
	logger.DatabaseCall("MIGRATE", "*")
	_, err := db.ExecContext(ctx, schema)
	logger.DatabaseResult("MIGRATE", 0, err)
	if err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// rowQuerier is satisfied by both *sql.DB and *sql.Tx.
type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

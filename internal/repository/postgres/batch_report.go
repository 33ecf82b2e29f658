package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"teambilling/internal/domain"
	"teambilling/internal/logger"
	"teambilling/internal/repository"
)

type batchReportRepository struct {
	db *sql.DB
}

func NewBatchReportRepository(db *sql.DB) repository.BatchReportRepository {
	return &batchReportRepository{db: db}
}

func (r *batchReportRepository) Save(ctx context.Context, report *domain.BatchReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return err
	}
	query := `INSERT INTO batch_reports (run_id, as_of, started_at, finished_at, report) VALUES ($1, $2, $3, $4, $5)`
	logger.DatabaseCall("INSERT", "batch_reports", "runID", report.RunID)
	_, err = r.db.ExecContext(ctx, query, report.RunID, report.AsOf, report.StartedAt, report.FinishedAt, payload)
	logger.DatabaseResult("INSERT", 1, err, "runID", report.RunID)
	return err
}

func (r *batchReportRepository) Latest(ctx context.Context) (*domain.BatchReport, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, `SELECT report FROM batch_reports ORDER BY finished_at DESC LIMIT 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var report domain.BatchReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

package jobs

import (
	"context"
	"time"

	"teambilling/internal/clock"
	"teambilling/internal/config"
	"teambilling/internal/lock"
	"teambilling/internal/logger"
	"teambilling/internal/metrics"
	"teambilling/internal/repository"
	"teambilling/internal/service"
)

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	tenantRepo repository.TenantRepository
	reportRepo repository.BatchReportRepository
	services   *Services
	locker     lock.Locker
	clock      clock.Clock
	metrics    *metrics.Metrics
	config     *config.Config

	workers  int
	deadline time.Duration
}

// Services holds all service dependencies needed by jobs
type Services struct {
	State    service.BillingStateService
	Invoices service.InvoiceService
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(
	store *repository.Store,
	services *Services,
	locker lock.Locker,
	clk clock.Clock,
	m *metrics.Metrics,
	cfg *config.Config,
) *JobRunner {
	workers := cfg.Billing.Workers
	if workers <= 0 {
		workers = 1
	}
	return &JobRunner{
		tenantRepo: store.Tenants,
		reportRepo: store.BatchReports,
		services:   services,
		locker:     locker,
		clock:      clk,
		metrics:    m,
		config:     cfg,
		workers:    workers,
		deadline:   cfg.BatchDeadline(),
	}
}

func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	logger.Info("Starting job", "job", jobName)
	start := time.Now()
	jobFunc()
	logger.Info("Job completed", "job", jobName, "duration", time.Since(start).String())
}

// DailyEvaluation runs the lifecycle pass as of the current time.
func (jr *JobRunner) DailyEvaluation() {
	jr.runWithRecovery("DailyEvaluation", func() {
		report, err := jr.RunDailyEvaluation(context.Background(), jr.clock.Now())
		if err != nil {
			logger.Error("Daily evaluation failed", "error", err)
			return
		}
		logger.Info("Daily evaluation summary",
			"run_id", report.RunID.String(),
			"evaluated", report.TenantsEvaluated,
			"transitioned", report.Transitioned,
			"reminders", report.RemindersSent,
			"errors", len(report.Errors),
			"incomplete", len(report.Incomplete))
	})
}

// MonthlyInvoices generates invoices for the current month.
func (jr *JobRunner) MonthlyInvoices() {
	jr.runWithRecovery("MonthlyInvoices", func() {
		created, err := jr.GenerateMonthlyInvoices(context.Background(), jr.clock.Now())
		if err != nil {
			logger.Error("Monthly invoice generation finished with errors", "created", created, "error", err)
			return
		}
		logger.Info("Monthly invoices generated", "created", created)
	})
}

// LateInvoices marks invoices past their due date.
func (jr *JobRunner) LateInvoices() {
	jr.runWithRecovery("LateInvoices", func() {
		n, err := jr.MarkLateInvoices(context.Background(), jr.clock.Now())
		if err != nil {
			logger.Error("Failed to mark late invoices", "error", err)
			return
		}
		logger.Info("Late invoices marked", "count", n)
	})
}

// RunAllDailyJobs runs all daily jobs (for manual execution)
func (jr *JobRunner) RunAllDailyJobs() {
	jr.LateInvoices()
	jr.DailyEvaluation()
}

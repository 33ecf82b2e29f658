package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"teambilling/internal/domain"
	"teambilling/internal/lock"
	"teambilling/internal/logger"
)

// Stages recorded on per-tenant batch errors.
const (
	StageLock     = "lock"
	StageLoad     = "load"
	StageEvaluate = "evaluate"
	StagePersist  = "persist"
	StageDispatch = "dispatch"
)

// batch collects the outcome of one evaluation pass across workers.
type batch struct {
	mu     sync.Mutex
	report *domain.BatchReport
}

func (b *batch) failed(tenantID int32, stage string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.Errors = append(b.report.Errors, domain.TenantError{TenantID: tenantID, Stage: stage, Message: err.Error()})
}

func (b *batch) incomplete(tenantID int32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.Incomplete = append(b.report.Incomplete, tenantID)
}

func (b *batch) evaluated(tr *domain.Transition) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.TenantsEvaluated++
	if tr.Changed() {
		b.report.Transitioned++
	}
	b.report.RemindersSent += tr.Reminders()
}

// RunDailyEvaluation evaluates every non-deleted tenant as of asOf. Failures of single tenants
// are recorded in the report; only failing to list tenants aborts the run. Tenants not reached
// before the batch deadline or cancellation are listed as incomplete.
func (jr *JobRunner) RunDailyEvaluation(ctx context.Context, asOf time.Time) (*domain.BatchReport, error) {
	report := &domain.BatchReport{
		RunID:     uuid.New(),
		AsOf:      asOf.UTC(),
		StartedAt: jr.clock.Now(),
		Errors:    []domain.TenantError{},
	}
	log := logger.WithRun(report.RunID.String(), report.AsOf.Format(time.DateOnly))
	log.Info("Daily evaluation started", "workers", jr.workers, "deadline", jr.deadline.String())

	tenants, err := jr.tenantRepo.ListActive(ctx)
	if err != nil {
		return nil, &domain.PersistenceFailure{Op: "list tenants", Err: err}
	}

	runCtx := ctx
	if jr.deadline > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, jr.deadline)
		defer cancel()
	}

	b := &batch{report: report}
	var g errgroup.Group
	g.SetLimit(jr.workers)
	for i := range tenants {
		tenant := tenants[i]
		if runCtx.Err() != nil {
			b.incomplete(tenant.ID)
			continue
		}
		g.Go(func() error {
			if runCtx.Err() != nil {
				b.incomplete(tenant.ID)
				return nil
			}
			jr.evaluateTenant(runCtx, b, tenant.ID, asOf)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(report.Errors, func(i, j int) bool { return report.Errors[i].TenantID < report.Errors[j].TenantID })
	sort.Slice(report.Incomplete, func(i, j int) bool { return report.Incomplete[i] < report.Incomplete[j] })
	report.FinishedAt = jr.clock.Now()

	for _, e := range report.Errors {
		jr.metrics.RecordTenantError(e.Stage)
	}
	jr.metrics.RecordBatch(report.FinishedAt.Sub(report.StartedAt), report.TenantsEvaluated, len(report.Incomplete), report.Complete())

	// the report outlives a cancelled run
	if err := jr.reportRepo.Save(context.WithoutCancel(ctx), report); err != nil {
		log.Error("Failed to save batch report", "error", err)
		return report, &domain.PersistenceFailure{Op: "save batch report", Err: err}
	}

	log.Info("Daily evaluation finished",
		"evaluated", report.TenantsEvaluated,
		"transitioned", report.Transitioned,
		"errors", len(report.Errors),
		"incomplete", len(report.Incomplete))
	return report, nil
}

// evaluateTenant runs one tenant under its lock, retrying once when an administrator changed
// the tenant between load and commit.
func (jr *JobRunner) evaluateTenant(ctx context.Context, b *batch, tenantID int32, asOf time.Time) {
	log := logger.WithTenant(tenantID)

	release, err := jr.locker.Acquire(ctx, lock.TenantKey(tenantID))
	if err != nil {
		if errors.Is(err, domain.ErrLockNotAcquired) {
			log.Warn("Tenant is locked by another evaluation, skipping")
		}
		b.failed(tenantID, StageLock, err)
		return
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			log.Warn("Failed to release tenant lock", "error", err)
		}
	}()

	for attempt := 1; ; attempt++ {
		tenant, err := jr.tenantRepo.GetByID(ctx, tenantID)
		if err != nil {
			if ctx.Err() != nil {
				b.incomplete(tenantID)
				return
			}
			b.failed(tenantID, StageLoad, err)
			return
		}

		tr, err := jr.services.State.Evaluate(ctx, tenant, asOf)
		if errors.Is(err, domain.ErrConcurrentUpdate) && attempt < 2 {
			log.Debug("Tenant changed during evaluation, retrying")
			continue
		}
		if tr != nil {
			b.evaluated(tr)
		}

		var dispatchErr *domain.DispatchFailure
		var persistErr *domain.PersistenceFailure
		switch {
		case err == nil:
		case tr != nil && errors.As(err, &dispatchErr):
			b.failed(tenantID, StageDispatch, err)
		case ctx.Err() != nil && tr == nil:
			b.incomplete(tenantID)
		case errors.As(err, &persistErr):
			b.failed(tenantID, StagePersist, err)
		default:
			b.failed(tenantID, StageEvaluate, err)
		}
		if err != nil {
			log.Warn("Tenant evaluation finished with error", "error", err)
		}
		return
	}
}

// GenerateMonthlyInvoices creates invoices for the month of asOf across all tenants. Tenants
// whose members lack a fee are logged and do not fail the run.
func (jr *JobRunner) GenerateMonthlyInvoices(ctx context.Context, asOf time.Time) (int, error) {
	period := domain.PeriodOf(asOf.UTC())
	tenants, err := jr.tenantRepo.ListActive(ctx)
	if err != nil {
		return 0, &domain.PersistenceFailure{Op: "list tenants", Err: err}
	}

	total := 0
	var errs []error
	for _, t := range tenants {
		created, err := jr.services.Invoices.GenerateInvoices(ctx, t.ID, period.Month, period.Year)
		total += created

		var unconfigured *domain.UnconfiguredMembersError
		switch {
		case err == nil:
		case errors.As(err, &unconfigured):
			logger.Warn("Members skipped during invoice generation",
				"tenantID", t.ID, "period", period.String(), "memberIDs", unconfigured.MemberIDs)
		default:
			logger.Error("Invoice generation failed", "tenantID", t.ID, "period", period.String(), "error", err)
			errs = append(errs, fmt.Errorf("tenant %d: %w", t.ID, err))
		}
	}
	return total, errors.Join(errs...)
}

func (jr *JobRunner) MarkLateInvoices(ctx context.Context, asOf time.Time) (int64, error) {
	return jr.services.Invoices.MarkLateInvoices(ctx, asOf)
}

// LastReport returns the most recently saved batch report.
func (jr *JobRunner) LastReport(ctx context.Context) (*domain.BatchReport, error) {
	return jr.reportRepo.Latest(ctx)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"teambilling/internal/clock"
	"teambilling/internal/domain"
	"teambilling/internal/logger"
	"teambilling/internal/metrics"
	"teambilling/internal/repository"
)

type invoiceService struct {
	invoiceRepo repository.InvoiceRepository
	memberRepo  repository.MemberRepository
	feeSvc      FeeService
	metrics     *metrics.Metrics
}

func NewInvoiceService(
	invoiceRepo repository.InvoiceRepository,
	memberRepo repository.MemberRepository,
	feeSvc FeeService,
	m *metrics.Metrics,
) InvoiceService {
	return &invoiceService{
		invoiceRepo: invoiceRepo,
		memberRepo:  memberRepo,
		feeSvc:      feeSvc,
		metrics:     m,
	}
}

func (s *invoiceService) GenerateInvoices(ctx context.Context, tenantID int32, month, year int) (int, error) {
	period := domain.Period{Month: month, Year: year}
	logger.EnterMethod("invoiceService.GenerateInvoices", "tenantID", tenantID, "period", period.String())

	if !period.Valid() {
		return 0, invalid("invalid billing period %s", period)
	}

	members, err := s.memberRepo.ListByTenant(ctx, tenantID, domain.MemberStatusActive)
	if err != nil {
		logger.ExitMethodWithError("invoiceService.GenerateInvoices", err)
		return 0, fmt.Errorf("failed to list members: %w", err)
	}

	created, skipped := 0, 0
	var unconfigured []int32
	for _, m := range members {
		fee, err := s.feeSvc.GetEffectiveFee(ctx, tenantID, m.ID)
		if errors.Is(err, domain.ErrNotConfigured) {
			unconfigured = append(unconfigured, m.ID)
			continue
		}
		if err != nil {
			logger.ExitMethodWithError("invoiceService.GenerateInvoices", err, "memberID", m.ID)
			return created, err
		}

		inv := &domain.Invoice{
			TenantID: tenantID,
			MemberID: m.ID,
			Month:    month,
			Year:     year,
			Amount:   fee.Amount,
			DueDate:  period.DueDate(fee.DueDay),
			Status:   domain.InvoiceStatusPending,
		}
		if fee.IsExempt {
			inv.Amount = decimal.Zero
			inv.Status = domain.InvoiceStatusExempt
		}

		err = s.invoiceRepo.Create(ctx, inv)
		if errors.Is(err, domain.ErrDuplicateInvoice) {
			skipped++
			continue
		}
		if err != nil {
			logger.ExitMethodWithError("invoiceService.GenerateInvoices", err, "memberID", m.ID)
			return created, fmt.Errorf("failed to create invoice for member %d: %w", m.ID, err)
		}
		created++
		s.metrics.RecordInvoice(string(inv.Status))
	}

	logger.ExitMethod("invoiceService.GenerateInvoices", "tenantID", tenantID, "created", created,
		"existing", skipped, "unconfigured", len(unconfigured))
	if len(unconfigured) > 0 {
		return created, &domain.UnconfiguredMembersError{TenantID: tenantID, MemberIDs: unconfigured}
	}
	return created, nil
}

func (s *invoiceService) RecordPayment(ctx context.Context, invoiceID int32, paidAt time.Time) (*domain.Invoice, error) {
	if err := s.invoiceRepo.MarkPaid(ctx, invoiceID, paidAt.UTC()); err != nil {
		return nil, err
	}
	logger.Info("Invoice paid", "invoiceID", invoiceID, "paidAt", paidAt.Format(time.RFC3339))
	return s.invoiceRepo.GetByID(ctx, invoiceID)
}

func (s *invoiceService) MarkLateInvoices(ctx context.Context, asOf time.Time) (int64, error) {
	n, err := s.invoiceRepo.MarkLate(ctx, clock.StartOfDay(asOf))
	if err != nil {
		return 0, fmt.Errorf("failed to mark late invoices: %w", err)
	}
	s.metrics.RecordMarkedLate(n)
	return n, nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, memberID int32) ([]domain.Invoice, error) {
	return s.invoiceRepo.ListByMember(ctx, memberID)
}

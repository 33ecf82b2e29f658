package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"teambilling/internal/clock"
	"teambilling/internal/domain"
	"teambilling/internal/repository"
)

type paymentStatusService struct {
	memberRepo  repository.MemberRepository
	invoiceRepo repository.InvoiceRepository
	debtRepo    repository.DebtRepository
	feeSvc      FeeService
	policy      domain.BillingPolicy
}

func NewPaymentStatusService(
	memberRepo repository.MemberRepository,
	invoiceRepo repository.InvoiceRepository,
	debtRepo repository.DebtRepository,
	feeSvc FeeService,
	policy domain.BillingPolicy,
) PaymentStatusService {
	return &paymentStatusService{
		memberRepo:  memberRepo,
		invoiceRepo: invoiceRepo,
		debtRepo:    debtRepo,
		feeSvc:      feeSvc,
		policy:      policy,
	}
}

// balance accumulates unpaid obligations and remembers the oldest due date among them.
type balance struct {
	total     decimal.Decimal
	count     int
	oldestDue time.Time
	hasOldest bool
}

func (b *balance) add(amount decimal.Decimal, due time.Time) {
	b.total = b.total.Add(amount)
	b.count++
	if !b.hasOldest || due.Before(b.oldestDue) {
		b.oldestDue = due
		b.hasOldest = true
	}
}

func (s *paymentStatusService) ResolveStatus(ctx context.Context, memberID int32, asOf time.Time) (*domain.PaymentStatus, error) {
	member, err := s.memberRepo.GetByID(ctx, memberID)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, member, asOf)
}

func (s *paymentStatusService) ResolveTenant(ctx context.Context, tenantID int32, asOf time.Time) ([]domain.PaymentStatus, error) {
	members, err := s.memberRepo.ListByTenant(ctx, tenantID, domain.MemberStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	out := make([]domain.PaymentStatus, 0, len(members))
	for i := range members {
		st, err := s.resolve(ctx, &members[i], asOf)
		if err != nil {
			return nil, fmt.Errorf("member %d: %w", members[i].ID, err)
		}
		out = append(out, *st)
	}
	return out, nil
}

func (s *paymentStatusService) resolve(ctx context.Context, member *domain.Member, asOf time.Time) (*domain.PaymentStatus, error) {
	asOf = asOf.UTC()
	status := &domain.PaymentStatus{MemberID: member.ID, TotalOutstanding: decimal.Zero, AsOf: asOf}

	fee, err := s.feeSvc.GetEffectiveFee(ctx, member.TenantID, member.ID)
	if errors.Is(err, domain.ErrNotConfigured) {
		status.Classification = domain.ClassificationUndefined
		return status, nil
	}
	if err != nil {
		return nil, err
	}
	if fee.IsExempt {
		status.Classification = domain.ClassificationExempt
		return status, nil
	}

	current := domain.PeriodOf(asOf)
	invoices, err := s.invoiceRepo.ListByMember(ctx, member.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}

	var bal balance
	var currentInvoice *domain.Invoice
	backlog := false
	invoiced := make(map[domain.Period]bool, len(invoices))
	for i := range invoices {
		inv := &invoices[i]
		p := inv.Period()
		if p.After(current) {
			continue
		}
		invoiced[p] = true
		if p == current {
			currentInvoice = inv
		}
		if !inv.Status.IsUnpaid() {
			continue
		}
		bal.add(inv.Amount, inv.DueDate)
		if p.Before(current) {
			backlog = true
		}
	}

	debts, err := s.debtRepo.ListByMember(ctx, member.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list historical debt: %w", err)
	}
	for i := range debts {
		bal.add(debts[i].Amount, debts[i].Period().DueDate(fee.DueDay))
		backlog = true
	}

	// past periods of membership that were never invoiced still owe one unit each
	owesCurrent := true
	if !member.JoinedAt.IsZero() {
		first := firstBilledPeriod(member.JoinedAt, fee.DueDay)
		for p := first; p.Before(current); p = p.Next() {
			if invoiced[p] {
				continue
			}
			bal.add(fee.Amount, p.DueDate(fee.DueDay))
			backlog = true
		}
		owesCurrent = currentInvoice != nil || !current.Before(first)
	}

	pastDue := asOf.Day() > fee.DueDay
	currentUnpaid := owesCurrent && (currentInvoice == nil || currentInvoice.Status.IsUnpaid())

	// the classification describes the current period; backlog only keeps it from being PAID
	switch {
	case currentInvoice == nil && owesCurrent && pastDue:
		// the current obligation exists even before its invoice is generated
		bal.add(fee.Amount, current.DueDate(fee.DueDay))
		status.Classification = domain.ClassificationLate
	case currentUnpaid && pastDue:
		status.Classification = domain.ClassificationLate
	case currentUnpaid:
		status.Classification = domain.ClassificationPending
	case backlog:
		status.Classification = domain.ClassificationLate
	default:
		status.Classification = domain.ClassificationPaid
	}

	status.TotalOutstanding = bal.total
	status.MonthsOutstanding = bal.count

	if status.Classification == domain.ClassificationLate && bal.hasOldest {
		days := int(clock.StartOfDay(asOf).Sub(bal.oldestDue) / (24 * time.Hour))
		if days > 0 {
			status.DaysPastDue = days
		}
		if status.DaysPastDue > s.policy.VeryLateAfterDays {
			status.Classification = domain.ClassificationVeryLate
		}
	}
	return status, nil
}

// firstBilledPeriod is the first period whose due date falls on or after the member joined.
func firstBilledPeriod(joinedAt time.Time, dueDay int) domain.Period {
	p := domain.PeriodOf(joinedAt.UTC())
	if p.DueDate(dueDay).Before(clock.StartOfDay(joinedAt)) {
		p = p.Next()
	}
	return p
}

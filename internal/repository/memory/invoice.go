package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"teambilling/internal/domain"
)

type invoiceRepository struct{ db *db }

func (r *invoiceRepository) Create(_ context.Context, inv *domain.Invoice) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	key := invoiceKey{memberID: inv.MemberID, period: inv.Period()}
	if _, exists := r.db.invoiceKeys[key]; exists {
		return domain.ErrDuplicateInvoice
	}

	now := time.Now().UTC()
	inv.CreatedAt = now
	inv.UpdatedAt = now
	inv.ID = r.db.id()
	r.db.invoices[inv.ID] = *inv
	r.db.invoiceKeys[key] = inv.ID
	return nil
}

func (r *invoiceRepository) GetByID(_ context.Context, id int32) (*domain.Invoice, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	inv, ok := r.db.invoices[id]
	if !ok {
		return nil, fmt.Errorf("invoice %d: %w", id, domain.ErrNotFound)
	}
	return &inv, nil
}

func (r *invoiceRepository) GetByMemberPeriod(_ context.Context, memberID int32, p domain.Period) (*domain.Invoice, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	id, ok := r.db.invoiceKeys[invoiceKey{memberID: memberID, period: p}]
	if !ok {
		return nil, fmt.Errorf("invoice for member %d in %s: %w", memberID, p, domain.ErrNotFound)
	}
	inv := r.db.invoices[id]
	return &inv, nil
}

func (r *invoiceRepository) ListByMember(_ context.Context, memberID int32) ([]domain.Invoice, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []domain.Invoice
	for _, inv := range r.db.invoices {
		if inv.MemberID == memberID {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period().Before(out[j].Period()) })
	return out, nil
}

func (r *invoiceRepository) MarkPaid(_ context.Context, id int32, paidAt time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	inv, ok := r.db.invoices[id]
	if !ok {
		return fmt.Errorf("invoice %d: %w", id, domain.ErrNotFound)
	}
	if !inv.Status.IsUnpaid() {
		return fmt.Errorf("invoice %d is %s: %w", id, inv.Status, domain.ErrInvalidTransition)
	}
	inv.Status = domain.InvoiceStatusPaid
	inv.PaymentDate = &paidAt
	inv.UpdatedAt = time.Now().UTC()
	r.db.invoices[id] = inv
	return nil
}

func (r *invoiceRepository) MarkLate(_ context.Context, asOf time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var n int64
	for id, inv := range r.db.invoices {
		if inv.Status == domain.InvoiceStatusPending && inv.DueDate.Before(asOf) {
			inv.Status = domain.InvoiceStatusLate
			inv.UpdatedAt = time.Now().UTC()
			r.db.invoices[id] = inv
			n++
		}
	}
	return n, nil
}

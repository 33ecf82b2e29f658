package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"teambilling/internal/domain"
)

type debtRepository struct{ db *db }

func (r *debtRepository) Create(_ context.Context, d *domain.HistoricalDebt) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	d.CreatedAt = time.Now().UTC()
	d.ID = r.db.id()
	r.db.debts = append(r.db.debts, *d)
	return nil
}

func (r *debtRepository) ListByMember(_ context.Context, memberID int32) ([]domain.HistoricalDebt, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []domain.HistoricalDebt
	for _, d := range r.db.debts {
		if d.MemberID == memberID {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Period().Before(out[j].Period()) })
	return out, nil
}

type notificationRepository struct{ db *db }

// insertNotification expects the caller to hold the write lock.
func insertNotification(d *db, n *domain.Notification) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	n.ID = d.id()
	stored := *n
	stored.Delivery = copyDelivery(n.Delivery)
	d.notifications = append(d.notifications, stored)
}

func (r *notificationRepository) Create(_ context.Context, n *domain.Notification) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	insertNotification(r.db, n)
	return nil
}

func (r *notificationRepository) List(_ context.Context, tenantID int32, limit, offset int32) ([]domain.Notification, int32, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var all []domain.Notification
	for i := len(r.db.notifications) - 1; i >= 0; i-- {
		if n := r.db.notifications[i]; n.TenantID == tenantID {
			n.Delivery = copyDelivery(n.Delivery)
			all = append(all, n)
		}
	}
	total := int32(len(all))
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *notificationRepository) MarkAsRead(_ context.Context, id, tenantID int32) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for i := range r.db.notifications {
		if n := &r.db.notifications[i]; n.ID == id && n.TenantID == tenantID {
			n.IsRead = true
			return nil
		}
	}
	return fmt.Errorf("notification %d: %w", id, domain.ErrNotFound)
}

func (r *notificationRepository) RecordDelivery(_ context.Context, id int32, delivery map[string]bool) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for i := range r.db.notifications {
		if n := &r.db.notifications[i]; n.ID == id {
			n.Delivery = copyDelivery(delivery)
			return nil
		}
	}
	return fmt.Errorf("notification %d: %w", id, domain.ErrNotFound)
}

type subscriptionRepository struct{ db *db }

func (r *subscriptionRepository) Create(_ context.Context, p *domain.SubscriptionPayment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	p.CreatedAt = time.Now().UTC()
	if p.PaidAt.IsZero() {
		p.PaidAt = p.CreatedAt
	}
	p.ID = r.db.id()
	r.db.payments = append(r.db.payments, *p)
	return nil
}

func (r *subscriptionRepository) ListByTenant(_ context.Context, tenantID int32) ([]domain.SubscriptionPayment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []domain.SubscriptionPayment
	for _, p := range r.db.payments {
		if p.TenantID == tenantID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaidAt.After(out[j].PaidAt) })
	return out, nil
}

func (r *subscriptionRepository) HasPaymentBetween(_ context.Context, tenantID int32, from, to time.Time) (bool, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, p := range r.db.payments {
		if p.TenantID == tenantID && !p.PaidAt.Before(from) && !p.PaidAt.After(to) {
			return true, nil
		}
	}
	return false, nil
}

type batchReportRepository struct{ db *db }

func (r *batchReportRepository) Save(_ context.Context, report *domain.BatchReport) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.reports = append(r.db.reports, *report)
	return nil
}

func (r *batchReportRepository) Latest(_ context.Context) (*domain.BatchReport, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if len(r.db.reports) == 0 {
		return nil, domain.ErrNotFound
	}
	latest := r.db.reports[0]
	for _, rep := range r.db.reports[1:] {
		if !rep.FinishedAt.Before(latest.FinishedAt) {
			latest = rep
		}
	}
	return &latest, nil
}

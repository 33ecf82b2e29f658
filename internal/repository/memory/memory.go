// Package memory is a process-local storage backend. It keeps the same contracts as the
// postgres repositories, including the invoice uniqueness constraint and the tenant
// compare-and-set, so the services behave identically on top of it.
package memory

import (
	"sync"

	"teambilling/internal/domain"
	"teambilling/internal/repository"
)

type db struct {
	mu     sync.RWMutex
	nextID int32

	tenants       map[int32]domain.Tenant
	members       map[int32]domain.Member
	feeConfigs    map[int32]domain.FeeConfig
	feeExceptions map[int32]domain.FeeException
	invoices      map[int32]domain.Invoice
	invoiceKeys   map[invoiceKey]int32
	debts         []domain.HistoricalDebt
	notifications []domain.Notification
	payments      []domain.SubscriptionPayment
	reports       []domain.BatchReport
}

type invoiceKey struct {
	memberID int32
	period   domain.Period
}

func (d *db) id() int32 {
	d.nextID++
	return d.nextID
}

// NewStore returns an empty in-memory store.
func NewStore() *repository.Store {
	d := &db{
		tenants:       make(map[int32]domain.Tenant),
		members:       make(map[int32]domain.Member),
		feeConfigs:    make(map[int32]domain.FeeConfig),
		feeExceptions: make(map[int32]domain.FeeException),
		invoices:      make(map[int32]domain.Invoice),
		invoiceKeys:   make(map[invoiceKey]int32),
	}
	return &repository.Store{
		Tenants:       &tenantRepository{d},
		Members:       &memberRepository{d},
		Fees:          &feeRepository{d},
		Invoices:      &invoiceRepository{d},
		Debts:         &debtRepository{d},
		Notifications: &notificationRepository{d},
		Subscriptions: &subscriptionRepository{d},
		BatchReports:  &batchReportRepository{d},
	}
}

func copyDelivery(in map[string]bool) map[string]bool {
	if in == nil {
		return nil
	}
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

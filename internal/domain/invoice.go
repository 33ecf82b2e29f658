package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "PENDING"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
	InvoiceStatusLate    InvoiceStatus = "LATE"
	InvoiceStatusExempt  InvoiceStatus = "EXEMPT"
)

// IsUnpaid reports whether the invoice still counts toward a member's balance.
func (s InvoiceStatus) IsUnpaid() bool {
	return s == InvoiceStatusPending || s == InvoiceStatusLate
}

type Invoice struct {
	ID          int32           `json:"id"`
	TenantID    int32           `json:"tenant_id"`
	MemberID    int32           `json:"member_id"`
	Month       int             `json:"month"`
	Year        int             `json:"year"`
	Amount      decimal.Decimal `json:"amount"`
	DueDate     time.Time       `json:"due_date"`
	Status      InvoiceStatus   `json:"status"`
	PaymentDate *time.Time      `json:"payment_date,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (i *Invoice) Period() Period {
	return Period{Month: i.Month, Year: i.Year}
}

// Period is a billing month.
type Period struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

func PeriodOf(t time.Time) Period {
	return Period{Month: int(t.Month()), Year: t.Year()}
}

func (p Period) Valid() bool {
	return p.Month >= 1 && p.Month <= 12 && p.Year > 0
}

func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Month < o.Month
}

func (p Period) After(o Period) bool {
	return o.Before(p)
}

func (p Period) Next() Period {
	if p.Month == 12 {
		return Period{Month: 1, Year: p.Year + 1}
	}
	return Period{Month: p.Month + 1, Year: p.Year}
}

// DueDate is the UTC date of dueDay within the period.
func (p Period) DueDate(dueDay int) time.Time {
	return time.Date(p.Year, time.Month(p.Month), dueDay, 0, 0, 0, 0, time.UTC)
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

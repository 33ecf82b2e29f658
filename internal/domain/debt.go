package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// HistoricalDebt is member debt that predates the system. Rows are append-only and never
// linked to an Invoice.
type HistoricalDebt struct {
	ID          int32           `json:"id"`
	MemberID    int32           `json:"member_id" validate:"required,gt=0"`
	TenantID    int32           `json:"tenant_id" validate:"required,gt=0"`
	Amount      decimal.Decimal `json:"amount"`
	Month       int             `json:"month" validate:"min=1,max=12"`
	Year        int             `json:"year" validate:"min=1900"`
	Description string          `json:"description" validate:"max=500"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (d *HistoricalDebt) Period() Period {
	return Period{Month: d.Month, Year: d.Year}
}

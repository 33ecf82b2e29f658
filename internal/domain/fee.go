package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type FeeConfig struct {
	TenantID  int32           `json:"tenant_id" validate:"required,gt=0"`
	Amount    decimal.Decimal `json:"amount"`
	DueDay    int             `json:"due_day" validate:"min=1,max=28"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// FeeException overrides the tenant's default fee for a single member.
// When IsExempt is set the member owes nothing, whatever Amount holds.
type FeeException struct {
	MemberID  int32            `json:"member_id" validate:"required,gt=0"`
	TenantID  int32            `json:"tenant_id" validate:"required,gt=0"`
	IsExempt  bool             `json:"is_exempt"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}

type FeeSource string

const (
	FeeSourceConfig    FeeSource = "config"
	FeeSourceException FeeSource = "exception"
)

type EffectiveFee struct {
	Amount   decimal.Decimal `json:"amount"`
	IsExempt bool            `json:"is_exempt"`
	DueDay   int             `json:"due_day"`
	Source   FeeSource       `json:"source"`
}

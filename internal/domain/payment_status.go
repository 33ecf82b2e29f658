package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Classification string

const (
	ClassificationPaid      Classification = "PAID"
	ClassificationPending   Classification = "PENDING"
	ClassificationLate      Classification = "LATE"
	ClassificationVeryLate  Classification = "VERY_LATE"
	ClassificationExempt    Classification = "EXEMPT"
	ClassificationUndefined Classification = "UNDEFINED" // no fee configured, shown as "not set"
)

type PaymentStatus struct {
	MemberID          int32           `json:"member_id"`
	Classification    Classification  `json:"classification"`
	TotalOutstanding  decimal.Decimal `json:"total_outstanding"`
	MonthsOutstanding int             `json:"months_outstanding"`
	DaysPastDue       int             `json:"days_past_due"`
	AsOf              time.Time       `json:"as_of"`
}

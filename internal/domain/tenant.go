package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccessState string

const (
	AccessStateActive  AccessState = "ACTIVE"
	AccessStateOverdue AccessState = "OVERDUE"
	AccessStateBlocked AccessState = "BLOCKED"
	AccessStatePaused  AccessState = "PAUSED"
	AccessStateDeleted AccessState = "DELETED"
)

// NeverEvaluated is the lifecycle cursor value of a tenant the daily pass has not seen yet.
const NeverEvaluated = -1

type Tenant struct {
	ID               int32       `json:"id"`
	Name             string      `json:"name"`
	Phone            string      `json:"phone"`
	Email            string      `json:"email"`
	PushToken        string      `json:"push_token,omitempty"`
	NotifyChannels   []string    `json:"notify_channels,omitempty"`
	AccessState      AccessState `json:"access_state"`
	LastEvaluatedAge int         `json:"last_evaluated_age"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
	DeletedAt        *time.Time  `json:"deleted_at,omitempty"`
}

// IsAutomationOwned reports whether the daily pass may move the tenant between states.
// PAUSED, BLOCKED and DELETED are held until an administrator acts.
func (t *Tenant) IsAutomationOwned() bool {
	return t.AccessState == AccessStateActive || t.AccessState == AccessStateOverdue
}

func (t *Tenant) IsDeleted() bool {
	return t.DeletedAt != nil || t.AccessState == AccessStateDeleted
}

// AgeDays is the number of whole days between signup and now.
func (t *Tenant) AgeDays(now time.Time) int {
	d := now.Sub(t.CreatedAt)
	if d < 0 {
		return -1
	}
	return int(d / (24 * time.Hour))
}

type MemberStatus string

const (
	MemberStatusActive   MemberStatus = "ACTIVE"
	MemberStatusInactive MemberStatus = "INACTIVE"
)

type Member struct {
	ID        int32        `json:"id"`
	TenantID  int32        `json:"tenant_id"`
	Name      string       `json:"name"`
	Phone     string       `json:"phone"`
	Status    MemberStatus `json:"status"`
	JoinedAt  time.Time    `json:"joined_at"`
	CreatedAt time.Time    `json:"created_at"`
}

// SubscriptionPayment is a payment by the tenant for its own use of the system.
type SubscriptionPayment struct {
	ID        int32           `json:"id"`
	TenantID  int32           `json:"tenant_id"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
	PaidAt    time.Time       `json:"paid_at"`
	CreatedAt time.Time       `json:"created_at"`
}

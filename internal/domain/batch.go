package domain

import (
	"time"

	"github.com/google/uuid"
)

type TenantError struct {
	TenantID int32  `json:"tenant_id"`
	Stage    string `json:"stage"`
	Message  string `json:"message"`
}

type BatchReport struct {
	RunID            uuid.UUID     `json:"run_id"`
	AsOf             time.Time     `json:"as_of"`
	StartedAt        time.Time     `json:"started_at"`
	FinishedAt       time.Time     `json:"finished_at"`
	TenantsEvaluated int           `json:"tenants_evaluated"`
	Transitioned     int           `json:"transitioned"`
	RemindersSent    int           `json:"reminders_sent"`
	Errors           []TenantError `json:"errors"`
	Incomplete       []int32       `json:"incomplete,omitempty"` // not evaluated before the deadline
}

func (r *BatchReport) Complete() bool {
	return len(r.Incomplete) == 0
}

// Transition is the outcome of evaluating one tenant.
type Transition struct {
	TenantID      int32          `json:"tenant_id"`
	From          AccessState    `json:"from"`
	To            AccessState    `json:"to"`
	AgeDays       int            `json:"age_days"`
	Notifications []Notification `json:"notifications,omitempty"`
}

func (t *Transition) Changed() bool {
	return t.From != t.To
}

func (t *Transition) Reminders() int {
	n := 0
	for _, note := range t.Notifications {
		if note.Type == NotificationTypePaymentReminder {
			n++
		}
	}
	return n
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MessageTemplate holds text/template sources for a notification title and body.
type MessageTemplate struct {
	Title string `yaml:"title" json:"title"`
	Body  string `yaml:"body" json:"body"`
}

// BillingPolicy carries every threshold and message the lifecycle engine reads.
type BillingPolicy struct {
	ReminderDay       int
	OverdueDay        int
	BlockDay          int
	VeryLateAfterDays int
	DefaultDueDay     int
	MonthlyAmount     decimal.Decimal
	PaymentLinkBase   string
	Templates         map[NotificationType]MessageTemplate
	DispatchTimeout   time.Duration

	// FeeCacheTTL bounds how long a fee configuration is reused before it is read again.
	// Zero disables the cache.
	FeeCacheTTL time.Duration

	// CatchUpMissedRuns fires a rule whose day was skipped by a missed run. When false a rule
	// only fires on a run that lands exactly on its day.
	CatchUpMissedRuns bool
}

func DefaultBillingPolicy() BillingPolicy {
	return BillingPolicy{
		ReminderDay:       5,
		OverdueDay:        8,
		BlockDay:          10,
		VeryLateAfterDays: 30,
		DefaultDueDay:     10,
		MonthlyAmount:     decimal.NewFromInt(50),
		DispatchTimeout:   10 * time.Second,
		FeeCacheTTL:       5 * time.Minute,
		CatchUpMissedRuns: true,
		Templates:         DefaultTemplates(),
	}
}

func DefaultTemplates() map[NotificationType]MessageTemplate {
	return map[NotificationType]MessageTemplate{
		NotificationTypePaymentReminder: {
			Title: "Payment reminder",
			Body:  "Hi {{.TenantName}}, your subscription of {{.Amount}} is due. Pay here: {{.PaymentLink}}",
		},
		NotificationTypePaymentOverdue: {
			Title: "Payment overdue",
			Body:  "Hi {{.TenantName}}, your payment of {{.Amount}} is overdue. Access will be blocked on day {{.BlockDay}}. Pay here: {{.PaymentLink}}",
		},
		NotificationTypeAccessBlocked: {
			Title: "Access blocked",
			Body:  "Hi {{.TenantName}}, access has been blocked because the payment of {{.Amount}} was not received. Pay here: {{.PaymentLink}}",
		},
		NotificationTypePaymentConfirmed: {
			Title: "Payment confirmed",
			Body:  "Hi {{.TenantName}}, we received your payment. Your access is active again.",
		},
		NotificationTypeAccountStatus: {
			Title: "Account status updated",
			Body:  "Hi {{.TenantName}}, your account status is now {{.State}}.",
		},
	}
}

package domain

import "time"

type NotificationType string

const (
	NotificationTypePaymentReminder  NotificationType = "payment_reminder"
	NotificationTypePaymentOverdue   NotificationType = "payment_overdue"
	NotificationTypeAccessBlocked    NotificationType = "access_blocked"
	NotificationTypePaymentConfirmed NotificationType = "payment_confirmed"
	NotificationTypeAccountStatus    NotificationType = "account_status"
	NotificationTypeManual           NotificationType = "manual"
)

type Notification struct {
	ID        int32            `json:"id"`
	TenantID  int32            `json:"tenant_id"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	IsRead    bool             `json:"is_read"`
	Delivery  map[string]bool  `json:"delivery,omitempty"` // channel -> delivered
	CreatedAt time.Time        `json:"created_at"`
}

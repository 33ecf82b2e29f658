package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teambilling/internal/domain"
)

func TestRenderer_Defaults(t *testing.T) {
	r, err := NewRenderer(domain.DefaultTemplates())
	require.NoError(t, err)

	title, body, err := r.Render(domain.NotificationTypePaymentOverdue, MessageData{
		TenantName: "Lions FC", Amount: "50.00", PaymentLink: "https://pay.example.com?t=x", BlockDay: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, "Payment overdue", title)
	assert.Equal(t, "Hi Lions FC, your payment of 50.00 is overdue. Access will be blocked on day 10. Pay here: https://pay.example.com?t=x", body)

	_, body, err = r.Render(domain.NotificationTypeAccountStatus, MessageData{TenantName: "Lions FC", State: domain.AccessStatePaused})
	require.NoError(t, err)
	assert.Contains(t, body, "PAUSED")
}

func TestRenderer_Errors(t *testing.T) {
	_, err := NewRenderer(map[domain.NotificationType]domain.MessageTemplate{
		domain.NotificationTypePaymentReminder: {Title: "{{.TenantName", Body: "x"},
	})
	assert.Error(t, err)

	r, err := NewRenderer(map[domain.NotificationType]domain.MessageTemplate{
		domain.NotificationTypePaymentReminder: {Title: "Reminder", Body: "{{.Balance}}"},
	})
	require.NoError(t, err)

	_, _, err = r.Render(domain.NotificationTypePaymentReminder, MessageData{})
	assert.Error(t, err, "unknown field")

	_, _, err = r.Render(domain.NotificationTypeAccessBlocked, MessageData{})
	assert.Error(t, err, "missing template")
}

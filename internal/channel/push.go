package channel

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"teambilling/internal/logger"
)

type messageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// Push delivers through Firebase Cloud Messaging.
type Push struct {
	client messageSender
}

// NewPush initializes a Firebase app from a service account file.
func NewPush(ctx context.Context, credentialsFile, projectID string) (*Push, error) {
	var cfg *firebase.Config
	if projectID != "" {
		cfg = &firebase.Config{ProjectID: projectID}
	}
	app, err := firebase.NewApp(ctx, cfg, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging client: %w", err)
	}
	return &Push{client: client}, nil
}

func (p *Push) Name() string { return NamePush }

func (p *Push) CanDeliver(r Recipient) bool { return r.PushToken != "" }

func (p *Push) Send(ctx context.Context, r Recipient, msg Message) error {
	if !p.CanDeliver(r) {
		return ErrNoAddress
	}

	logger.ExternalServiceCall("fcm", "send", "tenantID", r.TenantID)
	id, err := p.client.Send(ctx, &messaging.Message{
		Token: r.PushToken,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: map[string]string{
			"type":      msg.Type,
			"tenant_id": fmt.Sprint(r.TenantID),
		},
	})
	logger.ExternalServiceResult("fcm", "send", err, "tenantID", r.TenantID, "messageID", id)
	if err != nil {
		return fmt.Errorf("failed to send push: %w", err)
	}
	return nil
}

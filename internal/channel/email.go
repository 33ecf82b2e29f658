package channel

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"teambilling/internal/logger"
)

const defaultSendGridHost = "https://api.sendgrid.com"

type Email struct {
	apiKey    string
	fromEmail string
	fromName  string
	host      string
}

func NewEmail(apiKey, fromEmail, fromName string) *Email {
	return &Email{apiKey: apiKey, fromEmail: fromEmail, fromName: fromName, host: defaultSendGridHost}
}

// WithHost points the adapter at another SendGrid-compatible endpoint.
func (e *Email) WithHost(host string) *Email {
	e.host = host
	return e
}

func (e *Email) Name() string { return NameEmail }

func (e *Email) CanDeliver(r Recipient) bool { return r.Email != "" }

func (e *Email) Send(ctx context.Context, r Recipient, msg Message) error {
	if !e.CanDeliver(r) {
		return ErrNoAddress
	}

	from := mail.NewEmail(e.fromName, e.fromEmail)
	to := mail.NewEmail(r.Name, r.Email)
	htmlContent := "<p>" + strings.ReplaceAll(html.EscapeString(msg.Body), "\n", "<br>") + "</p>"
	message := mail.NewSingleEmail(from, msg.Title, to, msg.Body, htmlContent)

	request := sendgrid.GetRequest(e.apiKey, "/v3/mail/send", e.host)
	request.Method = "POST"
	request.Body = mail.GetRequestBody(message)

	logger.ExternalServiceCall("sendgrid", "mail.send", "tenantID", r.TenantID)
	response, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err == nil && response.StatusCode >= 400 {
		err = fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
	}
	logger.ExternalServiceResult("sendgrid", "mail.send", err, "tenantID", r.TenantID)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

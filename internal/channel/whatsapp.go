package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"teambilling/internal/logger"
)

// WhatsApp posts messages to a WhatsApp gateway webhook.
type WhatsApp struct {
	url    string
	token  string
	client *http.Client
}

type whatsAppPayload struct {
	To    string `json:"to"`
	Title string `json:"title"`
	Body  string `json:"body"`
	Type  string `json:"type,omitempty"`
}

func NewWhatsApp(webhookURL, token string, client *http.Client) *WhatsApp {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &WhatsApp{url: webhookURL, token: token, client: client}
}

func (w *WhatsApp) Name() string { return NameWhatsApp }

func (w *WhatsApp) CanDeliver(r Recipient) bool { return r.Phone != "" }

func (w *WhatsApp) Send(ctx context.Context, r Recipient, msg Message) error {
	if !w.CanDeliver(r) {
		return ErrNoAddress
	}

	body, err := json.Marshal(whatsAppPayload{To: r.Phone, Title: msg.Title, Body: msg.Body, Type: msg.Type})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if w.token != "" {
		req.Header.Set("Authorization", "Bearer "+w.token)
	}

	logger.ExternalServiceCall("whatsapp", "send", "tenantID", r.TenantID)
	resp, err := w.client.Do(req)
	if err == nil {
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			err = fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
		}
	}
	logger.ExternalServiceResult("whatsapp", "send", err, "tenantID", r.TenantID)
	if err != nil {
		return fmt.Errorf("failed to send whatsapp message: %w", err)
	}
	return nil
}

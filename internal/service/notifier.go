package service

import (
	"context"
	"errors"
	"fmt"

	"teambilling/internal/channel"
	"teambilling/internal/domain"
	"teambilling/internal/logger"
	"teambilling/internal/repository"
	"teambilling/internal/security"
)

// Notifier renders lifecycle notifications and delivers them once they are persisted.
// Delivery outcomes are written back to the notification row and never undo the write that
// produced the notification.
type Notifier struct {
	dispatcher Dispatcher
	noteRepo   repository.NotificationRepository
	renderer   *Renderer
	signer     security.PaymentLinkSigner
	policy     domain.BillingPolicy
}

func NewNotifier(
	dispatcher Dispatcher,
	noteRepo repository.NotificationRepository,
	renderer *Renderer,
	signer security.PaymentLinkSigner,
	policy domain.BillingPolicy,
) *Notifier {
	return &Notifier{
		dispatcher: dispatcher,
		noteRepo:   noteRepo,
		renderer:   renderer,
		signer:     signer,
		policy:     policy,
	}
}

func recipientOf(t *domain.Tenant) channel.Recipient {
	return channel.Recipient{
		TenantID:  t.ID,
		Name:      t.Name,
		Email:     t.Email,
		Phone:     t.Phone,
		PushToken: t.PushToken,
	}
}

func (n *Notifier) build(tenant *domain.Tenant, typ domain.NotificationType, state domain.AccessState) (*domain.Notification, error) {
	amount := n.policy.MonthlyAmount
	link := n.policy.PaymentLinkBase
	if n.signer != nil {
		signed, err := n.signer.Link(n.policy.PaymentLinkBase, tenant.ID, amount)
		if err != nil {
			return nil, fmt.Errorf("failed to sign payment link: %w", err)
		}
		link = signed
	}

	title, body, err := n.renderer.Render(typ, MessageData{
		TenantName:  tenant.Name,
		Amount:      amount.StringFixed(2),
		PaymentLink: link,
		BlockDay:    n.policy.BlockDay,
		State:       state,
	})
	if err != nil {
		return nil, err
	}
	return &domain.Notification{TenantID: tenant.ID, Title: title, Message: body, Type: typ}, nil
}

// deliver returns a *domain.DispatchFailure, several of them joined, or nil.
func (n *Notifier) deliver(ctx context.Context, tenant *domain.Tenant, notes []*domain.Notification) error {
	if n.dispatcher == nil {
		return nil
	}
	var errs []error
	for _, note := range notes {
		result := n.dispatcher.Dispatch(ctx, DispatchRequest{
			TenantID:     tenant.ID,
			ChannelHints: tenant.NotifyChannels,
			Title:        note.Title,
			Body:         note.Message,
			Type:         note.Type,
			Recipient:    recipientOf(tenant),
		})
		note.Delivery = result.ChannelResults

		// not bound by the dispatch deadline
		if err := n.noteRepo.RecordDelivery(context.WithoutCancel(ctx), note.ID, result.ChannelResults); err != nil {
			logger.Warn("Failed to record notification delivery", "notificationID", note.ID, "error", err)
		}
		if result.Err != nil {
			errs = append(errs, result.Err)
		}
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return errors.Join(errs...)
}

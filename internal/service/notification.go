package service

import (
	"context"
	"strings"

	"teambilling/internal/domain"
	"teambilling/internal/logger"
	"teambilling/internal/repository"
)

const maxPageSize = 100

type notificationService struct {
	noteRepo   repository.NotificationRepository
	tenantRepo repository.TenantRepository
	notifier   *Notifier
}

func NewNotificationService(
	noteRepo repository.NotificationRepository,
	tenantRepo repository.TenantRepository,
	notifier *Notifier,
) NotificationService {
	return &notificationService{noteRepo: noteRepo, tenantRepo: tenantRepo, notifier: notifier}
}

func (s *notificationService) GetNotifications(ctx context.Context, tenantID int32, page, pageSize int32) ([]domain.Notification, int32, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = 20
	}
	offset := (page - 1) * pageSize
	return s.noteRepo.List(ctx, tenantID, pageSize, offset)
}

func (s *notificationService) MarkAsRead(ctx context.Context, tenantID, notificationID int32) error {
	return s.noteRepo.MarkAsRead(ctx, notificationID, tenantID)
}

// Send persists an operator-written message and delivers it best-effort.
func (s *notificationService) Send(ctx context.Context, tenantID int32, title, body string) (*domain.Notification, error) {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(body) == "" {
		return nil, invalid("title and body are required")
	}
	tenant, err := s.tenantRepo.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	note := &domain.Notification{TenantID: tenantID, Title: title, Message: body, Type: domain.NotificationTypeManual}
	if err := s.noteRepo.Create(ctx, note); err != nil {
		return nil, err
	}
	if err := s.notifier.deliver(ctx, tenant, []*domain.Notification{note}); err != nil {
		logger.Warn("Manual notification not fully delivered", "tenantID", tenantID, "error", err)
	}
	return note, nil
}

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"teambilling/internal/domain"
	"teambilling/internal/logger"
	"teambilling/internal/repository"
)

type notificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) repository.NotificationRepository {
	return &notificationRepository{db: db}
}

func marshalDelivery(delivery map[string]bool) ([]byte, error) {
	if delivery == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(delivery)
}

func insertNotification(ctx context.Context, q rowQuerier, n *domain.Notification) error {
	delivery, err := marshalDelivery(n.Delivery)
	if err != nil {
		return err
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO notifications (tenant_id, title, message, type, is_read, delivery, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	logger.DatabaseCall("INSERT", "notifications", "tenantID", n.TenantID, "type", n.Type)
	err = q.QueryRowContext(ctx, query, n.TenantID, n.Title, n.Message, n.Type, n.IsRead, delivery, n.CreatedAt).Scan(&n.ID)
	logger.DatabaseResult("INSERT", 1, err, "notificationID", n.ID)
	return err
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	return insertNotification(ctx, r.db, n)
}

func (r *notificationRepository) List(ctx context.Context, tenantID int32, limit, offset int32) ([]domain.Notification, int32, error) {
	query := `SELECT id, tenant_id, title, message, type, is_read, delivery, created_at
	          FROM notifications WHERE tenant_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var count int32
	countQuery := `SELECT count(*) FROM notifications WHERE tenant_id = $1`
	if err := r.db.QueryRowContext(ctx, countQuery, tenantID).Scan(&count); err != nil {
		return nil, 0, err
	}

	var notes []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var delivery []byte
		if err := rows.Scan(&n.ID, &n.TenantID, &n.Title, &n.Message, &n.Type, &n.IsRead, &delivery, &n.CreatedAt); err != nil {
			return nil, 0, err
		}
		if len(delivery) > 0 {
			if err := json.Unmarshal(delivery, &n.Delivery); err != nil {
				return nil, 0, err
			}
		}
		notes = append(notes, n)
	}
	return notes, count, rows.Err()
}

func (r *notificationRepository) MarkAsRead(ctx context.Context, id, tenantID int32) error {
	query := `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND tenant_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, tenantID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("notification %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *notificationRepository) RecordDelivery(ctx context.Context, id int32, delivery map[string]bool) error {
	payload, err := marshalDelivery(delivery)
	if err != nil {
		return err
	}
	logger.DatabaseCall("UPDATE", "notifications", "notificationID", id)
	result, err := r.db.ExecContext(ctx, `UPDATE notifications SET delivery = $1 WHERE id = $2`, payload, id)
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err)
		return err
	}
	rows, _ := result.RowsAffected()
	logger.DatabaseResult("UPDATE", rows, nil)
	return nil
}

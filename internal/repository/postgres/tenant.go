package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"teambilling/internal/domain"
	"teambilling/internal/logger"
	"teambilling/internal/repository"
)

type tenantRepository struct {
	db *sql.DB
}

func NewTenantRepository(db *sql.DB) repository.TenantRepository {
	return &tenantRepository{db: db}
}

const tenantColumns = `id, name, phone, email, push_token, notify_channels, access_state,
	last_evaluated_age, created_at, updated_at, deleted_at`

func scanTenant(scan func(dest ...any) error) (*domain.Tenant, error) {
	t := &domain.Tenant{}
	var channels []string
	err := scan(&t.ID, &t.Name, &t.Phone, &t.Email, &t.PushToken, pq.Array(&channels), &t.AccessState,
		&t.LastEvaluatedAge, &t.CreatedAt, &t.UpdatedAt, &t.DeletedAt)
	if err != nil {
		return nil, err
	}
	t.NotifyChannels = channels
	return t, nil
}

func (r *tenantRepository) Create(ctx context.Context, t *domain.Tenant) error {
	logger.EnterMethod("tenantRepository.Create", "name", t.Name)

	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.AccessState == "" {
		t.AccessState = domain.AccessStateActive
	}
	t.UpdatedAt = now

	query := `INSERT INTO tenants (name, phone, email, push_token, notify_channels, access_state,
	          last_evaluated_age, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`
	logger.DatabaseCall("INSERT", "tenants", "name", t.Name)
	err := r.db.QueryRowContext(ctx, query, t.Name, t.Phone, t.Email, t.PushToken, pq.Array(t.NotifyChannels),
		t.AccessState, t.LastEvaluatedAge, t.CreatedAt, t.UpdatedAt).Scan(&t.ID)
	logger.DatabaseResult("INSERT", 1, err, "tenantID", t.ID)
	if err != nil {
		logger.ExitMethodWithError("tenantRepository.Create", err)
		return err
	}

	logger.ExitMethod("tenantRepository.Create", "tenantID", t.ID)
	return nil
}

func (r *tenantRepository) GetByID(ctx context.Context, id int32) (*domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	t, err := scanTenant(r.db.QueryRowContext(ctx, query, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tenant %d: %w", id, domain.ErrNotFound)
	}
	return t, err
}

func (r *tenantRepository) ListActive(ctx context.Context) ([]domain.Tenant, error) {
	logger.DatabaseCall("SELECT", "tenants", "filter", "deleted_at IS NULL")

	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE deleted_at IS NULL ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		logger.DatabaseResult("SELECT", 0, err)
		return nil, err
	}
	defer rows.Close()

	var tenants []domain.Tenant
	for rows.Next() {
		t, err := scanTenant(rows.Scan)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, *t)
	}
	logger.DatabaseResult("SELECT", int64(len(tenants)), rows.Err())
	return tenants, rows.Err()
}

func (r *tenantRepository) ApplyStateChange(ctx context.Context, c *repository.StateChange) error {
	logger.EnterMethod("tenantRepository.ApplyStateChange", "tenantID", c.TenantID,
		"from", c.ExpectedState, "to", c.NewState, "age", c.NewAge)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		logger.ExitMethodWithError("tenantRepository.ApplyStateChange", err)
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	query := `UPDATE tenants
	          SET access_state = $1, last_evaluated_age = $2, deleted_at = COALESCE($3, deleted_at), updated_at = $4
	          WHERE id = $5 AND access_state = $6 AND last_evaluated_age = $7 AND deleted_at IS NULL`
	logger.DatabaseCall("UPDATE", "tenants", "tenantID", c.TenantID)
	result, err := tx.ExecContext(ctx, query, c.NewState, c.NewAge, c.DeletedAt, now,
		c.TenantID, c.ExpectedState, c.ExpectedAge)
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err)
		logger.ExitMethodWithError("tenantRepository.ApplyStateChange", err)
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	logger.DatabaseResult("UPDATE", affected, nil)
	if affected == 0 {
		logger.ExitMethodWithError("tenantRepository.ApplyStateChange", domain.ErrConcurrentUpdate, "tenantID", c.TenantID)
		return fmt.Errorf("tenant %d: %w", c.TenantID, domain.ErrConcurrentUpdate)
	}

	for _, n := range c.Notifications {
		n.TenantID = c.TenantID
		if err := insertNotification(ctx, tx, n); err != nil {
			logger.ExitMethodWithError("tenantRepository.ApplyStateChange", err, "reason", "notification insert")
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		logger.ExitMethodWithError("tenantRepository.ApplyStateChange", err)
		return err
	}

	logger.ExitMethod("tenantRepository.ApplyStateChange", "tenantID", c.TenantID, "notifications", len(c.Notifications))
	return nil
}

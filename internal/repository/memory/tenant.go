package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"teambilling/internal/domain"
	"teambilling/internal/repository"
)

type tenantRepository struct{ db *db }

func (r *tenantRepository) Create(_ context.Context, t *domain.Tenant) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.AccessState == "" {
		t.AccessState = domain.AccessStateActive
	}
	t.UpdatedAt = now
	t.ID = r.db.id()
	stored := *t
	stored.NotifyChannels = append([]string(nil), t.NotifyChannels...)
	r.db.tenants[t.ID] = stored
	return nil
}

func (r *tenantRepository) GetByID(_ context.Context, id int32) (*domain.Tenant, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	t, ok := r.db.tenants[id]
	if !ok {
		return nil, fmt.Errorf("tenant %d: %w", id, domain.ErrNotFound)
	}
	return &t, nil
}

func (r *tenantRepository) ListActive(_ context.Context) ([]domain.Tenant, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []domain.Tenant
	for _, t := range r.db.tenants {
		if t.DeletedAt == nil {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *tenantRepository) ApplyStateChange(_ context.Context, c *repository.StateChange) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	t, ok := r.db.tenants[c.TenantID]
	if !ok || t.DeletedAt != nil || t.AccessState != c.ExpectedState || t.LastEvaluatedAge != c.ExpectedAge {
		return fmt.Errorf("tenant %d: %w", c.TenantID, domain.ErrConcurrentUpdate)
	}

	t.AccessState = c.NewState
	t.LastEvaluatedAge = c.NewAge
	if c.DeletedAt != nil {
		deleted := *c.DeletedAt
		t.DeletedAt = &deleted
	}
	t.UpdatedAt = time.Now().UTC()
	r.db.tenants[c.TenantID] = t

	for _, n := range c.Notifications {
		n.TenantID = c.TenantID
		insertNotification(r.db, n)
	}
	return nil
}

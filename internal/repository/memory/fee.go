package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"teambilling/internal/domain"
)

type feeRepository struct{ db *db }

func (r *feeRepository) GetConfig(_ context.Context, tenantID int32) (*domain.FeeConfig, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	cfg, ok := r.db.feeConfigs[tenantID]
	if !ok {
		return nil, fmt.Errorf("fee config for tenant %d: %w", tenantID, domain.ErrNotFound)
	}
	return &cfg, nil
}

func (r *feeRepository) UpsertConfig(_ context.Context, cfg *domain.FeeConfig) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	cfg.UpdatedAt = time.Now().UTC()
	r.db.feeConfigs[cfg.TenantID] = *cfg
	return nil
}

func (r *feeRepository) GetException(_ context.Context, memberID int32) (*domain.FeeException, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	exc, ok := r.db.feeExceptions[memberID]
	if !ok {
		return nil, fmt.Errorf("fee exception for member %d: %w", memberID, domain.ErrNotFound)
	}
	return &exc, nil
}

func (r *feeRepository) UpsertException(_ context.Context, exc *domain.FeeException) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	exc.UpdatedAt = time.Now().UTC()
	stored := *exc
	if exc.Amount != nil {
		amount := *exc.Amount
		stored.Amount = &amount
	}
	r.db.feeExceptions[exc.MemberID] = stored
	return nil
}

func (r *feeRepository) DeleteException(_ context.Context, memberID int32) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.feeExceptions[memberID]; !ok {
		return fmt.Errorf("fee exception for member %d: %w", memberID, domain.ErrNotFound)
	}
	delete(r.db.feeExceptions, memberID)
	return nil
}

func (r *feeRepository) ListExceptions(_ context.Context, tenantID int32) ([]domain.FeeException, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []domain.FeeException
	for _, exc := range r.db.feeExceptions {
		if exc.TenantID == tenantID {
			out = append(out, exc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MemberID < out[j].MemberID })
	return out, nil
}

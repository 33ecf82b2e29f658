package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"teambilling/internal/domain"
)

type memberRepository struct{ db *db }

func (r *memberRepository) Create(_ context.Context, m *domain.Member) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	now := time.Now().UTC()
	if m.Status == "" {
		m.Status = domain.MemberStatusActive
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = now
	}
	m.CreatedAt = now
	m.ID = r.db.id()
	r.db.members[m.ID] = *m
	return nil
}

func (r *memberRepository) GetByID(_ context.Context, id int32) (*domain.Member, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	m, ok := r.db.members[id]
	if !ok {
		return nil, fmt.Errorf("member %d: %w", id, domain.ErrNotFound)
	}
	return &m, nil
}

func (r *memberRepository) ListByTenant(_ context.Context, tenantID int32, status domain.MemberStatus) ([]domain.Member, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []domain.Member
	for _, m := range r.db.members {
		if m.TenantID == tenantID && (status == "" || m.Status == status) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

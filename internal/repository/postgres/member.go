package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"teambilling/internal/domain"
	"teambilling/internal/logger"
	"teambilling/internal/repository"
)

type memberRepository struct {
	db *sql.DB
}

func NewMemberRepository(db *sql.DB) repository.MemberRepository {
	return &memberRepository{db: db}
}

func (r *memberRepository) Create(ctx context.Context, m *domain.Member) error {
	now := time.Now().UTC()
	if m.Status == "" {
		m.Status = domain.MemberStatusActive
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = now
	}
	m.CreatedAt = now

	query := `INSERT INTO members (tenant_id, name, phone, status, joined_at, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	logger.DatabaseCall("INSERT", "members", "tenantID", m.TenantID)
	err := r.db.QueryRowContext(ctx, query, m.TenantID, m.Name, m.Phone, m.Status, m.JoinedAt, m.CreatedAt).Scan(&m.ID)
	logger.DatabaseResult("INSERT", 1, err, "memberID", m.ID)
	return err
}

func (r *memberRepository) GetByID(ctx context.Context, id int32) (*domain.Member, error) {
	query := `SELECT id, tenant_id, name, phone, status, joined_at, created_at FROM members WHERE id = $1`
	m := &domain.Member{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&m.ID, &m.TenantID, &m.Name, &m.Phone, &m.Status, &m.JoinedAt, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("member %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *memberRepository) ListByTenant(ctx context.Context, tenantID int32, status domain.MemberStatus) ([]domain.Member, error) {
	query := `SELECT id, tenant_id, name, phone, status, joined_at, created_at FROM members
	          WHERE tenant_id = $1 AND ($2 = '' OR status = $2) ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, tenantID, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []domain.Member
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.ID, &m.TenantID, &m.Name, &m.Phone, &m.Status, &m.JoinedAt, &m.CreatedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

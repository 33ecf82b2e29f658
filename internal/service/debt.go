package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"teambilling/internal/domain"
	"teambilling/internal/logger"
	"teambilling/internal/repository"
)

type debtService struct {
	debtRepo   repository.DebtRepository
	memberRepo repository.MemberRepository
	validate   *validator.Validate
}

func NewDebtService(debtRepo repository.DebtRepository, memberRepo repository.MemberRepository) DebtService {
	return &debtService{debtRepo: debtRepo, memberRepo: memberRepo, validate: validator.New()}
}

// AddDebt appends a pre-existing balance for a member. Entries are never edited afterwards.
func (s *debtService) AddDebt(ctx context.Context, debt *domain.HistoricalDebt) error {
	if err := s.validate.Struct(debt); err != nil {
		return &ValidationError{Err: err}
	}
	if !debt.Amount.IsPositive() {
		return invalid("debt amount must be positive: %s", debt.Amount)
	}

	member, err := s.memberRepo.GetByID(ctx, debt.MemberID)
	if err != nil {
		return err
	}
	if member.TenantID != debt.TenantID {
		return invalid("member %d does not belong to tenant %d", debt.MemberID, debt.TenantID)
	}

	if err := s.debtRepo.Create(ctx, debt); err != nil {
		return fmt.Errorf("failed to record historical debt: %w", err)
	}
	logger.Info("Historical debt recorded", "memberID", debt.MemberID, "amount", debt.Amount.String(), "period", debt.Period().String())
	return nil
}

func (s *debtService) ListDebts(ctx context.Context, memberID int32) ([]domain.HistoricalDebt, error) {
	return s.debtRepo.ListByMember(ctx, memberID)
}

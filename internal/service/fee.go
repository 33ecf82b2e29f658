package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"teambilling/internal/domain"
	"teambilling/internal/logger"
	"teambilling/internal/repository"
)

const feeCacheSize = 1024

// ValidationError wraps input that failed validation.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return "validation failed: " + e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(format string, args ...any) error {
	return &ValidationError{Err: fmt.Errorf(format, args...)}
}

type feeService struct {
	feeRepo    repository.FeeRepository
	memberRepo repository.MemberRepository
	policy     domain.BillingPolicy
	validate   *validator.Validate

	// configs is nil when policy.FeeCacheTTL is not positive. Writes through this service
	// invalidate it; writes from another process are seen once the entry expires.
	configs *expirable.LRU[int32, domain.FeeConfig]
}

func NewFeeService(feeRepo repository.FeeRepository, memberRepo repository.MemberRepository, policy domain.BillingPolicy) FeeService {
	s := &feeService{
		feeRepo:    feeRepo,
		memberRepo: memberRepo,
		policy:     policy,
		validate:   validator.New(),
	}
	if policy.FeeCacheTTL > 0 {
		s.configs = expirable.NewLRU[int32, domain.FeeConfig](feeCacheSize, nil, policy.FeeCacheTTL)
	}
	return s
}

// lookupConfig returns nil without error when the tenant has no fee configuration.
func (s *feeService) lookupConfig(ctx context.Context, tenantID int32) (*domain.FeeConfig, error) {
	if s.configs != nil {
		if cfg, ok := s.configs.Get(tenantID); ok {
			return &cfg, nil
		}
	}
	cfg, err := s.feeRepo.GetConfig(ctx, tenantID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if s.configs != nil {
		s.configs.Add(tenantID, *cfg)
	}
	return cfg, nil
}

// lookupException returns nil without error when the member has no exception filed under tenantID.
func (s *feeService) lookupException(ctx context.Context, tenantID, memberID int32) (*domain.FeeException, error) {
	exc, err := s.feeRepo.GetException(ctx, memberID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if exc.TenantID != tenantID {
		logger.Warn("Ignoring fee exception filed under another tenant",
			"memberID", memberID, "tenantID", tenantID, "exceptionTenantID", exc.TenantID)
		return nil, nil
	}
	return exc, nil
}

func (s *feeService) GetEffectiveFee(ctx context.Context, tenantID, memberID int32) (*domain.EffectiveFee, error) {
	exc, err := s.lookupException(ctx, tenantID, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to load fee exception: %w", err)
	}

	cfg, err := s.lookupConfig(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load fee config: %w", err)
	}

	dueDay := s.policy.DefaultDueDay
	if cfg != nil {
		dueDay = cfg.DueDay
	}

	if exc != nil {
		if exc.IsExempt {
			return &domain.EffectiveFee{IsExempt: true, DueDay: dueDay, Source: domain.FeeSourceException}, nil
		}
		if exc.Amount != nil {
			return &domain.EffectiveFee{Amount: *exc.Amount, DueDay: dueDay, Source: domain.FeeSourceException}, nil
		}
	}

	if cfg == nil {
		return nil, fmt.Errorf("member %d of tenant %d: %w", memberID, tenantID, domain.ErrNotConfigured)
	}
	return &domain.EffectiveFee{Amount: cfg.Amount, DueDay: cfg.DueDay, Source: domain.FeeSourceConfig}, nil
}

func (s *feeService) GetFeeConfig(ctx context.Context, tenantID int32) (*domain.FeeConfig, error) {
	cfg, err := s.lookupConfig(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("tenant %d: %w", tenantID, domain.ErrNotConfigured)
	}
	return cfg, nil
}

func (s *feeService) SetFeeConfig(ctx context.Context, cfg *domain.FeeConfig) error {
	logger.EnterMethod("feeService.SetFeeConfig", "tenantID", cfg.TenantID, "amount", cfg.Amount.String(), "dueDay", cfg.DueDay)

	if err := s.validate.Struct(cfg); err != nil {
		logger.ExitMethodWithError("feeService.SetFeeConfig", err)
		return &ValidationError{Err: err}
	}
	if cfg.Amount.IsNegative() {
		err := invalid("fee amount must not be negative: %s", cfg.Amount)
		logger.ExitMethodWithError("feeService.SetFeeConfig", err)
		return err
	}

	if err := s.feeRepo.UpsertConfig(ctx, cfg); err != nil {
		logger.ExitMethodWithError("feeService.SetFeeConfig", err)
		return fmt.Errorf("failed to save fee config: %w", err)
	}
	if s.configs != nil {
		s.configs.Remove(cfg.TenantID)
	}

	logger.ExitMethod("feeService.SetFeeConfig", "tenantID", cfg.TenantID)
	return nil
}

func (s *feeService) SetException(ctx context.Context, exc *domain.FeeException) error {
	if err := s.validate.Struct(exc); err != nil {
		return &ValidationError{Err: err}
	}
	if !exc.IsExempt && exc.Amount == nil {
		return invalid("exception for member %d needs an amount or an exemption", exc.MemberID)
	}
	if exc.Amount != nil && exc.Amount.IsNegative() {
		return invalid("exception amount must not be negative: %s", exc.Amount)
	}

	member, err := s.memberRepo.GetByID(ctx, exc.MemberID)
	if err != nil {
		return err
	}
	if member.TenantID != exc.TenantID {
		return invalid("member %d does not belong to tenant %d", exc.MemberID, exc.TenantID)
	}

	if err := s.feeRepo.UpsertException(ctx, exc); err != nil {
		return fmt.Errorf("failed to save fee exception: %w", err)
	}
	logger.Info("Fee exception saved", "memberID", exc.MemberID, "tenantID", exc.TenantID, "exempt", exc.IsExempt)
	return nil
}

// RemoveException reports domain.ErrNotFound unless the member has an exception filed under tenantID.
func (s *feeService) RemoveException(ctx context.Context, tenantID, memberID int32) error {
	exc, err := s.lookupException(ctx, tenantID, memberID)
	if err != nil {
		return err
	}
	if exc == nil {
		return fmt.Errorf("fee exception for member %d of tenant %d: %w", memberID, tenantID, domain.ErrNotFound)
	}
	return s.feeRepo.DeleteException(ctx, memberID)
}

func (s *feeService) ListExceptions(ctx context.Context, tenantID int32) ([]domain.FeeException, error) {
	return s.feeRepo.ListExceptions(ctx, tenantID)
}

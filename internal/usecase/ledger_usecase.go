package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/iho/coopledger/internal/domain"
)

// LedgerUseCase builds day-granular cash-flow ledgers from stored records.
type LedgerUseCase struct {
	recordRepo RecordRepository
	memberRepo MemberRepository
	clock      Clock
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(recordRepo RecordRepository, memberRepo MemberRepository, clock Clock) *LedgerUseCase {
	return &LedgerUseCase{
		recordRepo: recordRepo,
		memberRepo: memberRepo,
		clock:      clock,
	}
}

// LedgerQuery narrows a ledger to a date range. Zero bounds are open.
type LedgerQuery struct {
	From time.Time
	To   time.Time
}

// MemberLedger returns one member's ledger.
func (uc *LedgerUseCase) MemberLedger(ctx context.Context, memberID string, q LedgerQuery) ([]domain.LedgerDay, error) {
	if _, err := uc.memberRepo.GetByID(ctx, memberID); err != nil {
		return nil, err
	}

	records, err := uc.recordRepo.ListByMember(ctx, memberID)
	if err != nil {
		return nil, err
	}

	return domain.FilterLedger(domain.BuildLedger(records), q.From, q.To), nil
}

// TenantLedger returns the society-wide ledger for a tenant.
func (uc *LedgerUseCase) TenantLedger(ctx context.Context, tenantID string, q LedgerQuery) ([]domain.LedgerDay, error) {
	records, err := uc.recordRepo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	return domain.FilterLedger(domain.BuildLedger(records), q.From, q.To), nil
}

// ReconciliationReport is the outcome of checking a tenant ledger.
type ReconciliationReport struct {
	CheckedAt  time.Time
	TenantID   string
	Problem    string
	Totals     domain.LedgerTotals
	Consistent bool
}

// ReconcileTenant rebuilds the tenant ledger and checks that its closing
// balance equals total cash in minus total cash out. An inconsistent ledger
// is reported, not returned as an error.
func (uc *LedgerUseCase) ReconcileTenant(ctx context.Context, tenantID string) (*ReconciliationReport, error) {
	days, err := uc.TenantLedger(ctx, tenantID, LedgerQuery{})
	if err != nil {
		return nil, err
	}

	report := &ReconciliationReport{
		TenantID:   tenantID,
		CheckedAt:  uc.clock.Now(),
		Consistent: true,
	}

	totals, err := domain.ReconcileLedger(days)
	report.Totals = totals
	if err != nil {
		if !errors.Is(err, domain.ErrLedgerUnbalanced) {
			return nil, err
		}
		report.Consistent = false
		report.Problem = err.Error()
	}

	return report, nil
}

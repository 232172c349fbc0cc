package usecase

import (
	"context"

	"github.com/iho/coopledger/internal/domain"
	"github.com/iho/coopledger/internal/infrastructure/metrics"
)

// DefaulterUseCase reports overdue loans.
type DefaulterUseCase struct {
	loanRepo   LoanRepository
	memberRepo MemberRepository
	clock      Clock
	metrics    *metrics.Metrics
}

// NewDefaulterUseCase creates a new DefaulterUseCase.
func NewDefaulterUseCase(loanRepo LoanRepository, memberRepo MemberRepository, clock Clock, m *metrics.Metrics) *DefaulterUseCase {
	return &DefaulterUseCase{
		loanRepo:   loanRepo,
		memberRepo: memberRepo,
		clock:      clock,
		metrics:    m,
	}
}

// Defaulters lists a tenant's overdue loans, worst first, with member contact
// details attached.
func (uc *DefaulterUseCase) Defaulters(ctx context.Context, tenantID string) ([]domain.DefaulterReportRow, error) {
	loans, err := uc.loanRepo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	members, err := uc.memberRepo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	entries := domain.ClassifyDefaulters(loans, uc.clock.Now())
	rows := domain.BuildDefaulterReport(entries, indexMembers(members))

	if uc.metrics != nil {
		counts := map[domain.Severity]int{domain.SeverityWatch: 0, domain.SeverityCritical: 0}
		for _, e := range entries {
			counts[e.Severity]++
		}
		for severity, n := range counts {
			uc.metrics.Defaulters.WithLabelValues(tenantID, string(severity)).Set(float64(n))
		}
	}

	return rows, nil
}

func indexMembers(members []domain.Member) map[string]domain.Member {
	idx := make(map[string]domain.Member, len(members))
	for _, m := range members {
		idx[m.ID] = m
	}
	return idx
}

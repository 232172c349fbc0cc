package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/iho/coopledger/internal/usecase"
)

// Source is the primary store a snapshot is captured from.
type Source struct {
	Members    usecase.MemberRepository
	Records    usecase.RecordRepository
	Loans      usecase.LoanRepository
	Maturities usecase.MaturityRepository
}

// Capture reads every row of one tenant from src.
func Capture(ctx context.Context, src Source, tenantID string, takenAt time.Time) (Snapshot, error) {
	snap := Snapshot{TakenAt: takenAt.UTC(), TenantID: tenantID}

	var err error
	if snap.Members, err = src.Members.ListByTenant(ctx, tenantID); err != nil {
		return Snapshot{}, fmt.Errorf("list members: %w", err)
	}
	if snap.Records, err = src.Records.ListByTenant(ctx, tenantID); err != nil {
		return Snapshot{}, fmt.Errorf("list records: %w", err)
	}
	if snap.Loans, err = src.Loans.ListByTenant(ctx, tenantID); err != nil {
		return Snapshot{}, fmt.Errorf("list loans: %w", err)
	}
	if snap.Maturities, err = src.Maturities.ListByTenant(ctx, tenantID); err != nil {
		return Snapshot{}, fmt.Errorf("list maturity records: %w", err)
	}

	return snap, nil
}

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/coopledger/internal/domain"
	"github.com/iho/coopledger/internal/usecase"
)

const maturityColumns = `id, tenant_id, member_id, status, start_date, maturity_date, total_deposit,
	monthly_interest_rate, current_interest, full_interest, adjusted_interest, loan_adjustment,
	months_completed, remaining_months, manual_override, claimed_at, created_at, updated_at`

// MaturityRepository implements usecase.MaturityRepository.
type MaturityRepository struct {
	db querier
}

// NewMaturityRepository creates a new MaturityRepository.
func NewMaturityRepository(pool *pgxpool.Pool) *MaturityRepository {
	return newMaturityRepository(pool)
}

func newMaturityRepository(db querier) *MaturityRepository {
	return &MaturityRepository{db: db}
}

// LockMember takes a transaction-scoped advisory lock keyed by the member ID.
// It also serializes members that do not have a maturity row yet.
func (r *MaturityRepository) LockMember(ctx context.Context, tx usecase.Transaction, memberID string) error {
	_, err := txQuerier(tx).Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, memberID)
	return err
}

// GetByMember retrieves a member's maturity record.
func (r *MaturityRepository) GetByMember(ctx context.Context, memberID string) (*domain.MaturityRecord, error) {
	return getMaturity(r.db.QueryRow(ctx, `SELECT `+maturityColumns+` FROM maturity_records WHERE member_id = $1`, memberID))
}

// GetByMemberTx retrieves a member's maturity record inside tx.
func (r *MaturityRepository) GetByMemberTx(ctx context.Context, tx usecase.Transaction, memberID string) (*domain.MaturityRecord, error) {
	return getMaturity(txQuerier(tx).QueryRow(ctx, `SELECT `+maturityColumns+` FROM maturity_records WHERE member_id = $1`, memberID))
}

// Upsert inserts the record or replaces the member's existing one. The row ID
// and creation time of an existing row are kept.
func (r *MaturityRepository) Upsert(ctx context.Context, tx usecase.Transaction, rec *domain.MaturityRecord) error {
	_, err := txQuerier(tx).Exec(ctx, `
		INSERT INTO maturity_records (`+maturityColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (member_id) DO UPDATE SET
			status = EXCLUDED.status,
			start_date = EXCLUDED.start_date,
			maturity_date = EXCLUDED.maturity_date,
			total_deposit = EXCLUDED.total_deposit,
			monthly_interest_rate = EXCLUDED.monthly_interest_rate,
			current_interest = EXCLUDED.current_interest,
			full_interest = EXCLUDED.full_interest,
			adjusted_interest = EXCLUDED.adjusted_interest,
			loan_adjustment = EXCLUDED.loan_adjustment,
			months_completed = EXCLUDED.months_completed,
			remaining_months = EXCLUDED.remaining_months,
			manual_override = EXCLUDED.manual_override,
			claimed_at = EXCLUDED.claimed_at,
			updated_at = EXCLUDED.updated_at`,
		rec.ID,
		rec.TenantID,
		rec.MemberID,
		string(rec.Status),
		rec.StartDate,
		rec.MaturityDate,
		rec.TotalDeposit,
		rec.MonthlyInterestRate,
		rec.CurrentInterest,
		rec.FullInterest,
		rec.AdjustedInterest,
		rec.LoanAdjustment,
		rec.MonthsCompleted,
		rec.RemainingMonths,
		rec.ManualOverride,
		rec.ClaimedAt,
		rec.CreatedAt,
		rec.UpdatedAt,
	)

	return err
}

// ListByTenant lists a tenant's maturity records.
func (r *MaturityRepository) ListByTenant(ctx context.Context, tenantID string) ([]domain.MaturityRecord, error) {
	rows, err := r.db.Query(ctx, `SELECT `+maturityColumns+` FROM maturity_records WHERE tenant_id = $1 ORDER BY member_id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.MaturityRecord, 0)
	for rows.Next() {
		rec, err := scanMaturity(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

func getMaturity(row pgx.Row) (*domain.MaturityRecord, error) {
	rec, err := scanMaturity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMaturityNotFound
		}
		return nil, err
	}

	return &rec, nil
}

func scanMaturity(row pgx.Row) (domain.MaturityRecord, error) {
	var (
		rec    domain.MaturityRecord
		status string
	)

	err := row.Scan(
		&rec.ID,
		&rec.TenantID,
		&rec.MemberID,
		&status,
		&rec.StartDate,
		&rec.MaturityDate,
		&rec.TotalDeposit,
		&rec.MonthlyInterestRate,
		&rec.CurrentInterest,
		&rec.FullInterest,
		&rec.AdjustedInterest,
		&rec.LoanAdjustment,
		&rec.MonthsCompleted,
		&rec.RemainingMonths,
		&rec.ManualOverride,
		&rec.ClaimedAt,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	rec.Status = domain.MaturityStatus(status)
	rec.StartDate = rec.StartDate.UTC()
	rec.MaturityDate = rec.MaturityDate.UTC()

	return rec, err
}

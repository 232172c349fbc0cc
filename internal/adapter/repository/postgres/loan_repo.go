package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/coopledger/internal/domain"
	"github.com/iho/coopledger/internal/usecase"
)

const loanColumns = `id, tenant_id, member_id, status, principal_amount, interest_rate_percent_per_month,
	remaining_balance, disbursed_date, next_due_date, created_at, updated_at`

// LoanRepository implements usecase.LoanRepository.
type LoanRepository struct {
	db querier
}

// NewLoanRepository creates a new LoanRepository.
func NewLoanRepository(pool *pgxpool.Pool) *LoanRepository {
	return newLoanRepository(pool)
}

func newLoanRepository(db querier) *LoanRepository {
	return &LoanRepository{db: db}
}

// Create inserts a loan within a transaction.
func (r *LoanRepository) Create(ctx context.Context, tx usecase.Transaction, loan *domain.Loan) error {
	_, err := txQuerier(tx).Exec(ctx, `
		INSERT INTO loans (`+loanColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		loan.ID,
		loan.TenantID,
		loan.MemberID,
		string(loan.Status),
		loan.PrincipalAmount,
		loan.InterestRatePercentPerMonth,
		loan.RemainingBalance,
		loan.DisbursedDate,
		loan.NextDueDate,
		loan.CreatedAt,
		loan.UpdatedAt,
	)

	return err
}

// GetByID retrieves a loan by ID.
func (r *LoanRepository) GetByID(ctx context.Context, id string) (*domain.Loan, error) {
	return getLoan(r.db.QueryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1`, id))
}

// GetByIDForUpdate retrieves a loan by ID with a FOR UPDATE lock.
func (r *LoanRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Loan, error) {
	return getLoan(txQuerier(tx).QueryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1 FOR UPDATE`, id))
}

// Update writes the loan's mutable state.
func (r *LoanRepository) Update(ctx context.Context, tx usecase.Transaction, loan *domain.Loan) error {
	tag, err := txQuerier(tx).Exec(ctx, `
		UPDATE loans
		SET status = $2, remaining_balance = $3, disbursed_date = $4, next_due_date = $5, updated_at = $6
		WHERE id = $1`,
		loan.ID,
		string(loan.Status),
		loan.RemainingBalance,
		loan.DisbursedDate,
		loan.NextDueDate,
		loan.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrLoanNotFound
	}

	return nil
}

// ListByMember lists a member's loans.
func (r *LoanRepository) ListByMember(ctx context.Context, memberID string) ([]domain.Loan, error) {
	return r.list(ctx, `SELECT `+loanColumns+` FROM loans WHERE member_id = $1 ORDER BY created_at, id`, memberID)
}

// ListByTenant lists a tenant's loans.
func (r *LoanRepository) ListByTenant(ctx context.Context, tenantID string) ([]domain.Loan, error) {
	return r.list(ctx, `SELECT `+loanColumns+` FROM loans WHERE tenant_id = $1 ORDER BY created_at, id`, tenantID)
}

func (r *LoanRepository) list(ctx context.Context, query string, args ...any) ([]domain.Loan, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	loans := make([]domain.Loan, 0)
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, loan)
	}

	return loans, rows.Err()
}

func getLoan(row pgx.Row) (*domain.Loan, error) {
	loan, err := scanLoan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, err
	}

	return &loan, nil
}

func scanLoan(row pgx.Row) (domain.Loan, error) {
	var (
		loan   domain.Loan
		status string
	)

	err := row.Scan(
		&loan.ID,
		&loan.TenantID,
		&loan.MemberID,
		&status,
		&loan.PrincipalAmount,
		&loan.InterestRatePercentPerMonth,
		&loan.RemainingBalance,
		&loan.DisbursedDate,
		&loan.NextDueDate,
		&loan.CreatedAt,
		&loan.UpdatedAt,
	)
	loan.Status = domain.LoanStatus(status)

	return loan, err
}

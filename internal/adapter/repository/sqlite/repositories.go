package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iho/coopledger/internal/domain"
	"github.com/iho/coopledger/internal/usecase"
)

const (
	memberColumns = `id, tenant_id, name, phone, monthly_contribution, join_date, created_at`

	recordColumns = `id, tenant_id, member_id, transaction_date, mode, kind, loan_reference_id,
	deposit_amount, loan_installment_amount, interest_amount, fine_amount, needs_review, created_at`

	loanColumns = `id, tenant_id, member_id, status, principal_amount, interest_rate_percent_per_month,
	remaining_balance, disbursed_date, next_due_date, created_at, updated_at`

	maturityColumns = `id, tenant_id, member_id, status, start_date, maturity_date, total_deposit,
	monthly_interest_rate, current_interest, full_interest, adjusted_interest, loan_adjustment,
	months_completed, remaining_months, manual_override, claimed_at, created_at, updated_at`
)

type scanner interface {
	Scan(dest ...any) error
}

// MemberRepository reads members from a snapshot.
type MemberRepository struct {
	db *sql.DB
}

// NewMemberRepository creates a new MemberRepository.
func NewMemberRepository(s *Store) *MemberRepository {
	return &MemberRepository{db: s.db}
}

func (r *MemberRepository) GetByID(ctx context.Context, id string) (*domain.Member, error) {
	m, err := scanMember(r.db.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMemberNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *MemberRepository) ListByTenant(ctx context.Context, tenantID string) ([]domain.Member, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+memberColumns+` FROM members WHERE tenant_id = ? ORDER BY name, id`, tenantID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanMember)
}

func scanMember(row scanner) (domain.Member, error) {
	var m domain.Member
	err := row.Scan(&m.ID, &m.TenantID, &m.Name, &m.Phone, &m.MonthlyContribution, &m.JoinDate, &m.CreatedAt)
	m.JoinDate = m.JoinDate.UTC()
	return m, err
}

// RecordRepository reads the transaction log from a snapshot.
type RecordRepository struct {
	db *sql.DB
}

// NewRecordRepository creates a new RecordRepository.
func NewRecordRepository(s *Store) *RecordRepository {
	return &RecordRepository{db: s.db}
}

func (r *RecordRepository) Create(ctx context.Context, tx usecase.Transaction, record *domain.TransactionRecord) error {
	return ErrReadOnly
}

func (r *RecordRepository) GetByID(ctx context.Context, id string) (*domain.TransactionRecord, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM transaction_records WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *RecordRepository) ListByMember(ctx context.Context, memberID string) ([]domain.TransactionRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM transaction_records
		WHERE member_id = ? ORDER BY transaction_date, id`, memberID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanRecord)
}

func (r *RecordRepository) ListByMemberTx(ctx context.Context, tx usecase.Transaction, memberID string) ([]domain.TransactionRecord, error) {
	return r.ListByMember(ctx, memberID)
}

func (r *RecordRepository) ListByMemberPage(ctx context.Context, memberID string, limit, offset int) ([]domain.TransactionRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM transaction_records
		WHERE member_id = ? ORDER BY transaction_date DESC, id DESC LIMIT ? OFFSET ?`, memberID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanRecord)
}

func (r *RecordRepository) ListByTenant(ctx context.Context, tenantID string) ([]domain.TransactionRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM transaction_records
		WHERE tenant_id = ? ORDER BY transaction_date, id`, tenantID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanRecord)
}

func scanRecord(row scanner) (domain.TransactionRecord, error) {
	var (
		rec  domain.TransactionRecord
		kind string
	)
	err := row.Scan(
		&rec.ID, &rec.TenantID, &rec.MemberID, &rec.TransactionDate, &rec.Mode, &kind, &rec.LoanReferenceID,
		&rec.DepositAmount, &rec.LoanInstallmentAmount, &rec.InterestAmount, &rec.FineAmount, &rec.NeedsReview, &rec.CreatedAt,
	)
	rec.Kind = domain.TransactionKind(kind)
	rec.TransactionDate = rec.TransactionDate.UTC()
	return rec, err
}

// LoanRepository reads loans from a snapshot.
type LoanRepository struct {
	db *sql.DB
}

// NewLoanRepository creates a new LoanRepository.
func NewLoanRepository(s *Store) *LoanRepository {
	return &LoanRepository{db: s.db}
}

func (r *LoanRepository) Create(ctx context.Context, tx usecase.Transaction, loan *domain.Loan) error {
	return ErrReadOnly
}

func (r *LoanRepository) Update(ctx context.Context, tx usecase.Transaction, loan *domain.Loan) error {
	return ErrReadOnly
}

func (r *LoanRepository) GetByID(ctx context.Context, id string) (*domain.Loan, error) {
	loan, err := scanLoan(r.db.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, err
	}
	return &loan, nil
}

func (r *LoanRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Loan, error) {
	return nil, ErrReadOnly
}

func (r *LoanRepository) ListByMember(ctx context.Context, memberID string) ([]domain.Loan, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE member_id = ? ORDER BY created_at, id`, memberID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanLoan)
}

func (r *LoanRepository) ListByTenant(ctx context.Context, tenantID string) ([]domain.Loan, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE tenant_id = ? ORDER BY created_at, id`, tenantID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanLoan)
}

func scanLoan(row scanner) (domain.Loan, error) {
	var (
		loan   domain.Loan
		status string
	)
	err := row.Scan(
		&loan.ID, &loan.TenantID, &loan.MemberID, &status, &loan.PrincipalAmount, &loan.InterestRatePercentPerMonth,
		&loan.RemainingBalance, &loan.DisbursedDate, &loan.NextDueDate, &loan.CreatedAt, &loan.UpdatedAt,
	)
	loan.Status = domain.LoanStatus(status)
	loan.DisbursedDate = utcPtr(loan.DisbursedDate)
	loan.NextDueDate = utcPtr(loan.NextDueDate)
	return loan, err
}

// MaturityRepository reads maturity records from a snapshot.
type MaturityRepository struct {
	db *sql.DB
}

// NewMaturityRepository creates a new MaturityRepository.
func NewMaturityRepository(s *Store) *MaturityRepository {
	return &MaturityRepository{db: s.db}
}

func (r *MaturityRepository) LockMember(ctx context.Context, tx usecase.Transaction, memberID string) error {
	return ErrReadOnly
}

func (r *MaturityRepository) Upsert(ctx context.Context, tx usecase.Transaction, record *domain.MaturityRecord) error {
	return ErrReadOnly
}

func (r *MaturityRepository) GetByMember(ctx context.Context, memberID string) (*domain.MaturityRecord, error) {
	rec, err := scanMaturity(r.db.QueryRowContext(ctx, `SELECT `+maturityColumns+` FROM maturity_records WHERE member_id = ?`, memberID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMaturityNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *MaturityRepository) GetByMemberTx(ctx context.Context, tx usecase.Transaction, memberID string) (*domain.MaturityRecord, error) {
	return r.GetByMember(ctx, memberID)
}

func (r *MaturityRepository) ListByTenant(ctx context.Context, tenantID string) ([]domain.MaturityRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+maturityColumns+` FROM maturity_records WHERE tenant_id = ? ORDER BY member_id`, tenantID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanMaturity)
}

func scanMaturity(row scanner) (domain.MaturityRecord, error) {
	var (
		rec    domain.MaturityRecord
		status string
	)
	err := row.Scan(
		&rec.ID, &rec.TenantID, &rec.MemberID, &status, &rec.StartDate, &rec.MaturityDate, &rec.TotalDeposit,
		&rec.MonthlyInterestRate, &rec.CurrentInterest, &rec.FullInterest, &rec.AdjustedInterest, &rec.LoanAdjustment,
		&rec.MonthsCompleted, &rec.RemainingMonths, &rec.ManualOverride, &rec.ClaimedAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	rec.Status = domain.MaturityStatus(status)
	rec.StartDate = rec.StartDate.UTC()
	rec.MaturityDate = rec.MaturityDate.UTC()
	return rec, err
}

func collect[T any](rows *sql.Rows, scan func(scanner) (T, error)) ([]T, error) {
	defer rows.Close()

	out := make([]T, 0)
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}

	return out, rows.Err()
}

var (
	_ usecase.MemberRepository   = (*MemberRepository)(nil)
	_ usecase.RecordRepository   = (*RecordRepository)(nil)
	_ usecase.LoanRepository     = (*LoanRepository)(nil)
	_ usecase.MaturityRepository = (*MaturityRepository)(nil)
)

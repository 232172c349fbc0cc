package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/coopledger/internal/domain"
	"github.com/iho/coopledger/internal/usecase"
)

const recordColumns = `id, tenant_id, member_id, transaction_date, mode, kind, loan_reference_id,
	deposit_amount, loan_installment_amount, interest_amount, fine_amount, needs_review, created_at`

const listByMemberQuery = `SELECT ` + recordColumns + ` FROM transaction_records
	WHERE member_id = $1 ORDER BY transaction_date, id`

// RecordRepository implements usecase.RecordRepository.
type RecordRepository struct {
	db querier
}

// NewRecordRepository creates a new RecordRepository.
func NewRecordRepository(pool *pgxpool.Pool) *RecordRepository {
	return newRecordRepository(pool)
}

func newRecordRepository(db querier) *RecordRepository {
	return &RecordRepository{db: db}
}

// Create appends a record within a transaction.
func (r *RecordRepository) Create(ctx context.Context, tx usecase.Transaction, record *domain.TransactionRecord) error {
	_, err := txQuerier(tx).Exec(ctx, `
		INSERT INTO transaction_records (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		record.ID,
		record.TenantID,
		record.MemberID,
		record.TransactionDate,
		record.Mode,
		string(record.Kind),
		record.LoanReferenceID,
		record.DepositAmount,
		record.LoanInstallmentAmount,
		record.InterestAmount,
		record.FineAmount,
		record.NeedsReview,
		record.CreatedAt,
	)

	return err
}

// GetByID retrieves a record by ID.
func (r *RecordRepository) GetByID(ctx context.Context, id string) (*domain.TransactionRecord, error) {
	row := r.db.QueryRow(ctx, `SELECT `+recordColumns+` FROM transaction_records WHERE id = $1`, id)

	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, err
	}

	return &record, nil
}

// ListByMember returns all of a member's records in log order.
func (r *RecordRepository) ListByMember(ctx context.Context, memberID string) ([]domain.TransactionRecord, error) {
	return listRecords(ctx, r.db, listByMemberQuery, memberID)
}

// ListByMemberTx returns all of a member's records in log order, read inside tx.
func (r *RecordRepository) ListByMemberTx(ctx context.Context, tx usecase.Transaction, memberID string) ([]domain.TransactionRecord, error) {
	return listRecords(ctx, txQuerier(tx), listByMemberQuery, memberID)
}

// ListByMemberPage returns a page of a member's records, newest first.
func (r *RecordRepository) ListByMemberPage(ctx context.Context, memberID string, limit, offset int) ([]domain.TransactionRecord, error) {
	return listRecords(ctx, r.db, `SELECT `+recordColumns+` FROM transaction_records
		WHERE member_id = $1 ORDER BY transaction_date DESC, id DESC LIMIT $2 OFFSET $3`, memberID, limit, offset)
}

// ListByTenant returns every record of a tenant in log order.
func (r *RecordRepository) ListByTenant(ctx context.Context, tenantID string) ([]domain.TransactionRecord, error) {
	return listRecords(ctx, r.db, `SELECT `+recordColumns+` FROM transaction_records
		WHERE tenant_id = $1 ORDER BY transaction_date, id`, tenantID)
}

func listRecords(ctx context.Context, db querier, query string, args ...any) ([]domain.TransactionRecord, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.TransactionRecord, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

func scanRecord(row pgx.Row) (domain.TransactionRecord, error) {
	var (
		rec  domain.TransactionRecord
		kind string
	)

	err := row.Scan(
		&rec.ID,
		&rec.TenantID,
		&rec.MemberID,
		&rec.TransactionDate,
		&rec.Mode,
		&kind,
		&rec.LoanReferenceID,
		&rec.DepositAmount,
		&rec.LoanInstallmentAmount,
		&rec.InterestAmount,
		&rec.FineAmount,
		&rec.NeedsReview,
		&rec.CreatedAt,
	)
	rec.Kind = domain.TransactionKind(kind)
	rec.TransactionDate = rec.TransactionDate.UTC()

	return rec, err
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/iho/coopledger/internal/domain"
)

// ErrReadOnly is returned by every mutating repository method. Snapshots are
// produced by Store.Write and never edited afterwards.
var ErrReadOnly = errors.New("sqlite snapshot is read-only")

// Decimals are kept as TEXT so no precision is lost.
const schema = `
CREATE TABLE IF NOT EXISTS snapshot_meta (
	tenant_id TEXT NOT NULL,
	taken_at  DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS members (
	id                   TEXT PRIMARY KEY,
	tenant_id            TEXT NOT NULL,
	name                 TEXT NOT NULL,
	phone                TEXT NOT NULL,
	monthly_contribution TEXT NOT NULL,
	join_date            DATETIME NOT NULL,
	created_at           DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS transaction_records (
	id                      TEXT PRIMARY KEY,
	tenant_id               TEXT NOT NULL,
	member_id               TEXT NOT NULL,
	transaction_date        DATETIME NOT NULL,
	mode                    TEXT NOT NULL,
	kind                    TEXT NOT NULL,
	loan_reference_id       TEXT,
	deposit_amount          TEXT NOT NULL,
	loan_installment_amount TEXT NOT NULL,
	interest_amount         TEXT NOT NULL,
	fine_amount             TEXT NOT NULL,
	needs_review            BOOLEAN NOT NULL,
	created_at              DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_member ON transaction_records (member_id, transaction_date);
CREATE TABLE IF NOT EXISTS loans (
	id                              TEXT PRIMARY KEY,
	tenant_id                       TEXT NOT NULL,
	member_id                       TEXT NOT NULL,
	status                          TEXT NOT NULL,
	principal_amount                TEXT NOT NULL,
	interest_rate_percent_per_month TEXT NOT NULL,
	remaining_balance               TEXT NOT NULL,
	disbursed_date                  DATETIME,
	next_due_date                   DATETIME,
	created_at                      DATETIME NOT NULL,
	updated_at                      DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS maturity_records (
	id                    TEXT PRIMARY KEY,
	tenant_id             TEXT NOT NULL,
	member_id             TEXT NOT NULL UNIQUE,
	status                TEXT NOT NULL,
	start_date            DATETIME NOT NULL,
	maturity_date         DATETIME NOT NULL,
	total_deposit         TEXT NOT NULL,
	monthly_interest_rate TEXT NOT NULL,
	current_interest      TEXT NOT NULL,
	full_interest         TEXT NOT NULL,
	adjusted_interest     TEXT NOT NULL,
	loan_adjustment       TEXT NOT NULL,
	months_completed      INTEGER NOT NULL,
	remaining_months      INTEGER NOT NULL,
	manual_override       BOOLEAN NOT NULL,
	claimed_at            DATETIME,
	created_at            DATETIME NOT NULL,
	updated_at            DATETIME NOT NULL
);
`

// Store is a single-tenant SQLite snapshot of the record store, used to
// compute ledgers and reports offline.
type Store struct {
	db       *sql.DB
	readOnly bool
}

// Open opens or creates a writable snapshot at path.
func Open(path string) (*Store, error) {
	return open(fmt.Sprintf("file:%s?_foreign_keys=on", path), false)
}

// OpenReadOnly opens an existing snapshot without write access.
func OpenReadOnly(path string) (*Store, error) {
	return open(fmt.Sprintf("file:%s?mode=ro", path), true)
}

func open(dsn string, readOnly bool) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open snapshot: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("could not connect to snapshot: %w", err)
	}

	if !readOnly {
		if _, err := db.Exec(schema); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("could not initialize snapshot schema: %w", err)
		}
	}

	return &Store{db: db, readOnly: readOnly}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Snapshot is the data captured for one tenant.
type Snapshot struct {
	TakenAt    time.Time
	TenantID   string
	Members    []domain.Member
	Records    []domain.TransactionRecord
	Loans      []domain.Loan
	Maturities []domain.MaturityRecord
}

// Info describes a stored snapshot.
type Info struct {
	TakenAt  time.Time
	TenantID string
}

// Write replaces the snapshot contents with snap in one transaction.
func (s *Store) Write(ctx context.Context, snap Snapshot) error {
	if s.readOnly {
		return ErrReadOnly
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"snapshot_meta", "members", "transaction_records", "loans", "maturity_records"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO snapshot_meta (tenant_id, taken_at) VALUES (?, ?)`, snap.TenantID, snap.TakenAt.UTC()); err != nil {
		return err
	}

	for _, m := range snap.Members {
		if _, err := tx.ExecContext(ctx, `INSERT INTO members (`+memberColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.TenantID, m.Name, m.Phone, m.MonthlyContribution, m.JoinDate.UTC(), m.CreatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("write member %s: %w", m.ID, err)
		}
	}

	for _, r := range snap.Records {
		if _, err := tx.ExecContext(ctx, `INSERT INTO transaction_records (`+recordColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.TenantID, r.MemberID, r.TransactionDate.UTC(), r.Mode, string(r.Kind), r.LoanReferenceID,
			r.DepositAmount, r.LoanInstallmentAmount, r.InterestAmount, r.FineAmount, r.NeedsReview, r.CreatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("write record %s: %w", r.ID, err)
		}
	}

	for _, l := range snap.Loans {
		if _, err := tx.ExecContext(ctx, `INSERT INTO loans (`+loanColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			l.ID, l.TenantID, l.MemberID, string(l.Status), l.PrincipalAmount, l.InterestRatePercentPerMonth,
			l.RemainingBalance, utcPtr(l.DisbursedDate), utcPtr(l.NextDueDate), l.CreatedAt.UTC(), l.UpdatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("write loan %s: %w", l.ID, err)
		}
	}

	for _, m := range snap.Maturities {
		if _, err := tx.ExecContext(ctx, `INSERT INTO maturity_records (`+maturityColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.TenantID, m.MemberID, string(m.Status), m.StartDate.UTC(), m.MaturityDate.UTC(), m.TotalDeposit,
			m.MonthlyInterestRate, m.CurrentInterest, m.FullInterest, m.AdjustedInterest, m.LoanAdjustment,
			m.MonthsCompleted, m.RemainingMonths, m.ManualOverride, utcPtr(m.ClaimedAt), m.CreatedAt.UTC(), m.UpdatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("write maturity %s: %w", m.ID, err)
		}
	}

	return tx.Commit()
}

// Info returns the snapshot's tenant and capture time.
func (s *Store) Info(ctx context.Context) (Info, error) {
	var info Info
	err := s.db.QueryRowContext(ctx, `SELECT tenant_id, taken_at FROM snapshot_meta LIMIT 1`).Scan(&info.TenantID, &info.TakenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return info, fmt.Errorf("snapshot is empty")
	}
	return info, err
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

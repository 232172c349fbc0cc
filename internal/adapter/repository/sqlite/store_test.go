package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/coopledger/internal/domain"
	"github.com/iho/coopledger/internal/usecase"
	"github.com/iho/coopledger/internal/usecase/mocks"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func testSnapshot() Snapshot {
	loanRef := "loan-1"
	disbursed := day(2024, 2, 1)
	due := day(2024, 3, 1)

	return Snapshot{
		TakenAt:  day(2024, 6, 1),
		TenantID: "coop-1",
		Members: []domain.Member{
			{ID: "m-1", TenantID: "coop-1", Name: "Asha", Phone: "9800000001", MonthlyContribution: dec("1000"), JoinDate: day(2024, 1, 1), CreatedAt: day(2024, 1, 1)},
			{ID: "m-2", TenantID: "coop-1", Name: "Binod", Phone: "9800000002", MonthlyContribution: dec("500"), JoinDate: day(2024, 1, 1), CreatedAt: day(2024, 1, 1)},
		},
		Records: []domain.TransactionRecord{
			{ID: "r-1", TenantID: "coop-1", MemberID: "m-1", TransactionDate: day(2024, 1, 5), Mode: "cash", Kind: domain.KindDeposit, DepositAmount: dec("1000.50"), CreatedAt: day(2024, 1, 5)},
			{ID: "r-2", TenantID: "coop-1", MemberID: "m-1", TransactionDate: day(2024, 2, 1), Mode: "loan disbursal", Kind: domain.KindDisbursement, LoanReferenceID: &loanRef, DepositAmount: dec("500"), CreatedAt: day(2024, 2, 1)},
			{ID: "r-3", TenantID: "coop-1", MemberID: "m-1", TransactionDate: day(2024, 3, 1), Mode: "cash", Kind: domain.KindEMI, LoanReferenceID: &loanRef, LoanInstallmentAmount: dec("105"), InterestAmount: dec("5"), CreatedAt: day(2024, 3, 1), NeedsReview: true},
		},
		Loans: []domain.Loan{
			{ID: "loan-1", TenantID: "coop-1", MemberID: "m-1", Status: domain.LoanStatusActive, PrincipalAmount: dec("500"), InterestRatePercentPerMonth: dec("1"), RemainingBalance: dec("400"), DisbursedDate: &disbursed, NextDueDate: &due, CreatedAt: day(2024, 1, 20), UpdatedAt: day(2024, 3, 1)},
		},
		Maturities: []domain.MaturityRecord{
			{ID: "mat-1", TenantID: "coop-1", MemberID: "m-1", Status: domain.MaturityStatusActive, StartDate: day(2024, 1, 5), MaturityDate: day(2027, 1, 5), TotalDeposit: dec("1000.50"), MonthlyInterestRate: dec("0.0033333333333333"), CurrentInterest: dec("13.34"), FullInterest: dec("120.06"), AdjustedInterest: dec("13.34"), LoanAdjustment: dec("0"), MonthsCompleted: 4, RemainingMonths: 32, CreatedAt: day(2024, 5, 1), UpdatedAt: day(2024, 5, 1)},
		},
	}
}

func writeSnapshot(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "snapshot.db")
	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Write(context.Background(), testSnapshot()))
	require.NoError(t, store.Close())

	return path
}

func openReadOnly(t *testing.T, path string) *Store {
	t.Helper()

	store, err := OpenReadOnly(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openReadOnly(t, writeSnapshot(t))

	info, err := store.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, "coop-1", info.TenantID)
	assert.True(t, info.TakenAt.Equal(day(2024, 6, 1)))

	records, err := NewRecordRepository(store).ListByMember(ctx, "m-1")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.True(t, records[0].DepositAmount.Equal(dec("1000.50")))
	assert.Equal(t, domain.KindDisbursement, records[1].Kind)
	require.NotNil(t, records[1].LoanReferenceID)
	assert.Equal(t, "loan-1", *records[1].LoanReferenceID)
	assert.True(t, records[2].NeedsReview)
	assert.Equal(t, time.UTC, records[0].TransactionDate.Location())

	loan, err := NewLoanRepository(store).GetByID(ctx, "loan-1")
	require.NoError(t, err)
	require.NotNil(t, loan.NextDueDate)
	assert.True(t, loan.NextDueDate.Equal(day(2024, 3, 1)))

	mat, err := NewMaturityRepository(store).GetByMember(ctx, "m-1")
	require.NoError(t, err)
	assert.True(t, mat.MonthlyInterestRate.Equal(dec("0.0033333333333333")))
	assert.Nil(t, mat.ClaimedAt)
	assert.Equal(t, 4, mat.MonthsCompleted)
}

func TestSnapshotNotFound(t *testing.T) {
	ctx := context.Background()
	store := openReadOnly(t, writeSnapshot(t))

	_, err := NewMemberRepository(store).GetByID(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrMemberNotFound)

	_, err = NewRecordRepository(store).GetByID(ctx, "nothing")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)

	_, err = NewLoanRepository(store).GetByID(ctx, "nothing")
	assert.ErrorIs(t, err, domain.ErrLoanNotFound)

	_, err = NewMaturityRepository(store).GetByMember(ctx, "m-2")
	assert.ErrorIs(t, err, domain.ErrMaturityNotFound)
}

func TestSnapshotIsReadOnly(t *testing.T) {
	ctx := context.Background()
	store := openReadOnly(t, writeSnapshot(t))

	assert.ErrorIs(t, store.Write(ctx, Snapshot{}), ErrReadOnly)
	assert.ErrorIs(t, NewRecordRepository(store).Create(ctx, nil, &domain.TransactionRecord{}), ErrReadOnly)
	assert.ErrorIs(t, NewLoanRepository(store).Update(ctx, nil, &domain.Loan{}), ErrReadOnly)
	assert.ErrorIs(t, NewMaturityRepository(store).Upsert(ctx, nil, &domain.MaturityRecord{}), ErrReadOnly)
}

func TestWriteReplacesPreviousSnapshot(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snapshot.db")

	store, err := Open(path)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Write(ctx, testSnapshot()))

	next := testSnapshot()
	next.Members = next.Members[:1]
	next.Records = nil
	require.NoError(t, store.Write(ctx, next))

	members, err := NewMemberRepository(store).ListByTenant(ctx, "coop-1")
	require.NoError(t, err)
	assert.Len(t, members, 1)

	records, err := NewRecordRepository(store).ListByTenant(ctx, "coop-1")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestUseCasesRunOverSnapshot(t *testing.T) {
	ctx := context.Background()
	store := openReadOnly(t, writeSnapshot(t))

	records := NewRecordRepository(store)
	loans := NewLoanRepository(store)
	members := NewMemberRepository(store)
	maturities := NewMaturityRepository(store)
	clock := mocks.NewFixedClock(day(2024, 6, 15))

	ledger := usecase.NewLedgerUseCase(records, members, clock)
	report, err := ledger.ReconcileTenant(ctx, "coop-1")
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.True(t, report.Totals.ClosingBalance.Equal(dec("610.50")), report.Totals.ClosingBalance.String())

	defaulters := usecase.NewDefaulterUseCase(loans, members, clock, nil)
	rows, err := defaulters.Defaulters(ctx, "coop-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Asha", rows[0].MemberName)
	assert.Equal(t, domain.SeverityCritical, rows[0].Severity)

	summaries := usecase.NewSummaryUseCase(records, loans, maturities, members, nil, 0, zerolog.Nop(), nil)
	summary, err := summaries.MemberSummary(ctx, "m-1")
	require.NoError(t, err)
	assert.True(t, summary.TotalDeposits.Equal(dec("1000.50")), summary.TotalDeposits.String())
	assert.Equal(t, 1, summary.ActiveLoans)
}

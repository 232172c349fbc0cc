package usecase_test

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/coopledger/internal/domain"
	"github.com/iho/coopledger/internal/usecase"
	"github.com/iho/coopledger/internal/usecase/mocks"
)

const testTenant = "tenant-1"

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func strPtr(s string) *string { return &s }

func member(id, name string) domain.Member {
	return domain.Member{
		ID:                  id,
		TenantID:            testTenant,
		Name:                name,
		Phone:               "555-" + id,
		MonthlyContribution: dec("1000"),
		JoinDate:            day(2021, 1, 1),
	}
}

func deposit(id, memberID string, date time.Time, amount string) domain.TransactionRecord {
	return domain.TransactionRecord{
		ID:              id,
		TenantID:        testTenant,
		MemberID:        memberID,
		TransactionDate: date,
		Mode:            "monthly deposit",
		Kind:            domain.KindDeposit,
		DepositAmount:   dec(amount),
	}
}

func activeLoan(id, memberID, principal, rate string, disbursed time.Time) domain.Loan {
	next := domain.AddMonths(disbursed, 1)
	return domain.Loan{
		ID:                          id,
		TenantID:                    testTenant,
		MemberID:                    memberID,
		Status:                      domain.LoanStatusActive,
		PrincipalAmount:             dec(principal),
		InterestRatePercentPerMonth: dec(rate),
		RemainingBalance:            dec(principal),
		DisbursedDate:               &disbursed,
		NextDueDate:                 &next,
	}
}

// harness wires every use case against in-memory repositories.
type harness struct {
	txManager *mocks.MemoryTransactionManager
	records   *mocks.MemoryRecordRepository
	loans     *mocks.MemoryLoanRepository
	maturity  *mocks.MemoryMaturityRepository
	members   *mocks.MemoryMemberRepository
	outbox    *mocks.MemoryOutboxRepository
	audit     *mocks.MemoryAuditRepository
	cache     *mocks.MemoryCache
	clock     *mocks.FixedClock
	idGen     *mocks.SequentialIDGenerator

	recordUC   *usecase.RecordUseCase
	loanUC     *usecase.LoanUseCase
	ledgerUC   *usecase.LedgerUseCase
	maturityUC *usecase.MaturityUseCase
	reportUC   *usecase.DefaulterUseCase
	summaryUC  *usecase.SummaryUseCase
}

type fixture struct {
	members  []domain.Member
	records  []domain.TransactionRecord
	loans    []domain.Loan
	maturity []domain.MaturityRecord
	now      time.Time
}

func newHarness(f fixture) *harness {
	if f.now.IsZero() {
		f.now = day(2024, 6, 15)
	}

	h := &harness{
		txManager: mocks.NewMemoryTransactionManager(),
		records:   mocks.NewMemoryRecordRepository(f.records...),
		loans:     mocks.NewMemoryLoanRepository(f.loans...),
		maturity:  mocks.NewMemoryMaturityRepository(f.maturity...),
		members:   mocks.NewMemoryMemberRepository(f.members...),
		outbox:    mocks.NewMemoryOutboxRepository(),
		audit:     mocks.NewMemoryAuditRepository(),
		cache:     mocks.NewMemoryCache(),
		clock:     mocks.NewFixedClock(f.now),
		idGen:     mocks.NewSequentialIDGenerator("id"),
	}

	logger := zerolog.Nop()

	h.recordUC = usecase.NewRecordUseCase(h.txManager, h.records, h.members, h.loans, h.outbox, h.cache, h.idGen, h.clock, logger, nil)
	h.loanUC = usecase.NewLoanUseCase(h.txManager, h.loans, h.records, h.members, h.recordUC, h.outbox, h.audit, h.cache, h.idGen, h.clock, logger, nil)
	h.ledgerUC = usecase.NewLedgerUseCase(h.records, h.members, h.clock)
	h.maturityUC = usecase.NewMaturityUseCase(usecase.MaturityUseCaseConfig{
		TxManager:    h.txManager,
		MaturityRepo: h.maturity,
		RecordRepo:   h.records,
		MemberRepo:   h.members,
		LoanRepo:     h.loans,
		OutboxRepo:   h.outbox,
		AuditRepo:    h.audit,
		Cache:        h.cache,
		IDGen:        h.idGen,
		Clock:        h.clock,
		Logger:       logger,
		Workers:      4,
	})
	h.reportUC = usecase.NewDefaulterUseCase(h.loans, h.members, h.clock, nil)
	h.summaryUC = usecase.NewSummaryUseCase(h.records, h.loans, h.maturity, h.members, h.cache, time.Minute, logger, nil)

	return h
}

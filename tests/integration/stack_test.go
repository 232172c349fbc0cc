package integration

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/iho/coopledger/internal/adapter/repository/postgres"
	"github.com/iho/coopledger/internal/usecase"
	"github.com/iho/coopledger/tests/testutil"
)

// stack wires the use cases against a real database. Cache is left out so
// every read hits PostgreSQL.
type stack struct {
	db           *testutil.TestDB
	recordRepo   *postgres.RecordRepository
	loanRepo     *postgres.LoanRepository
	maturityRepo *postgres.MaturityRepository
	outboxRepo   *postgres.OutboxRepository
	auditRepo    *postgres.AuditRepository
	records      *usecase.RecordUseCase
	loans        *usecase.LoanUseCase
	maturity     *usecase.MaturityUseCase
	ledger       *usecase.LedgerUseCase
}

func newStack(t *testing.T) *stack {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db := testutil.NewTestDB(t)
	t.Cleanup(db.Cleanup)

	pool := db.Pool
	txManager := postgres.NewTxManager(pool)
	recordRepo := postgres.NewRecordRepository(pool)
	loanRepo := postgres.NewLoanRepository(pool)
	maturityRepo := postgres.NewMaturityRepository(pool)
	outboxRepo := postgres.NewOutboxRepository(pool)
	auditRepo := postgres.NewAuditRepository(pool)
	idGen := postgres.NewULIDGenerator()
	clock := usecase.SystemClock{}
	logger := zerolog.Nop()

	records := usecase.NewRecordUseCase(txManager, recordRepo, db.Members, loanRepo, outboxRepo, nil, idGen, clock, logger, nil)

	return &stack{
		db:           db,
		recordRepo:   recordRepo,
		loanRepo:     loanRepo,
		maturityRepo: maturityRepo,
		outboxRepo:   outboxRepo,
		auditRepo:    auditRepo,
		records:      records,
		loans:        usecase.NewLoanUseCase(txManager, loanRepo, recordRepo, db.Members, records, outboxRepo, auditRepo, nil, idGen, clock, logger, nil),
		maturity: usecase.NewMaturityUseCase(usecase.MaturityUseCaseConfig{
			TxManager:    txManager,
			MaturityRepo: maturityRepo,
			RecordRepo:   recordRepo,
			MemberRepo:   db.Members,
			LoanRepo:     loanRepo,
			OutboxRepo:   outboxRepo,
			AuditRepo:    auditRepo,
			Retrier:      postgres.NewRetrier(5, logger),
			IDGen:        idGen,
			Clock:        clock,
			Logger:       logger,
			Workers:      4,
		}),
		ledger: usecase.NewLedgerUseCase(recordRepo, db.Members, clock),
	}
}

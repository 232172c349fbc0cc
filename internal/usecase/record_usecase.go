package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/coopledger/internal/domain"
	"github.com/iho/coopledger/internal/infrastructure/metrics"
)

// RecordUseCase ingests transaction records. Ingestion is the one place a
// record's kind is decided; an installment record also advances its loan in
// the same transaction.
type RecordUseCase struct {
	txManager  TransactionManager
	recordRepo RecordRepository
	memberRepo MemberRepository
	loanRepo   LoanRepository
	events     eventWriter
	cache      Cache
	idGen      IDGenerator
	clock      Clock
	logger     zerolog.Logger
	metrics    *metrics.Metrics
}

// NewRecordUseCase creates a new RecordUseCase. cache and m may be nil.
func NewRecordUseCase(
	txManager TransactionManager,
	recordRepo RecordRepository,
	memberRepo MemberRepository,
	loanRepo LoanRepository,
	outboxRepo OutboxRepository,
	cache Cache,
	idGen IDGenerator,
	clock Clock,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *RecordUseCase {
	return &RecordUseCase{
		txManager:  txManager,
		recordRepo: recordRepo,
		memberRepo: memberRepo,
		loanRepo:   loanRepo,
		events:     eventWriter{outboxRepo: outboxRepo, idGen: idGen},
		cache:      cache,
		idGen:      idGen,
		clock:      clock,
		logger:     logger,
		metrics:    m,
	}
}

// IngestRecordInput represents input for ingesting a record.
type IngestRecordInput struct {
	TransactionDate       time.Time
	LoanReferenceID       *string
	TenantID              string
	MemberID              string
	Mode                  string
	Kind                  domain.TransactionKind
	DepositAmount         decimal.Decimal
	LoanInstallmentAmount decimal.Decimal
	InterestAmount        decimal.Decimal
	FineAmount            decimal.Decimal
}

// IngestResult is what ingestion produced.
type IngestResult struct {
	Record    *domain.TransactionRecord
	Loan      *domain.Loan
	Split     *domain.InstallmentSplit
	Ambiguity *domain.ClassificationAmbiguity
}

// Ingest validates, classifies and stores a record. When the record carries an
// installment it must reference an active loan belonging to the same member,
// and that loan is amortized before commit.
func (uc *RecordUseCase) Ingest(ctx context.Context, input IngestRecordInput) (*IngestResult, error) {
	now := uc.clock.Now()

	record := &domain.TransactionRecord{
		ID:                    uc.idGen.Generate(),
		TenantID:              input.TenantID,
		MemberID:              strings.TrimSpace(input.MemberID),
		TransactionDate:       input.TransactionDate,
		Mode:                  strings.TrimSpace(input.Mode),
		Kind:                  input.Kind,
		LoanReferenceID:       input.LoanReferenceID,
		DepositAmount:         input.DepositAmount,
		LoanInstallmentAmount: input.LoanInstallmentAmount,
		InterestAmount:        input.InterestAmount,
		FineAmount:            input.FineAmount,
		CreatedAt:             now,
	}

	if err := record.Validate(); err != nil {
		return nil, err
	}

	if record.LoanInstallmentAmount.IsPositive() && record.LoanReferenceID == nil {
		return nil, domain.ErrMissingLoanRef
	}

	member, err := uc.memberRepo.GetByID(ctx, record.MemberID)
	if err != nil {
		return nil, err
	}
	if record.TenantID == "" {
		record.TenantID = member.TenantID
	}
	if record.TenantID != member.TenantID {
		return nil, domain.ErrTenantMismatch
	}

	result := &IngestResult{Record: record}

	kind, ambiguity, err := domain.ResolveKind(*record)
	if err != nil {
		return nil, err
	}
	record.Kind = kind
	if ambiguity != nil {
		record.NeedsReview = true
		result.Ambiguity = ambiguity
	}

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	if record.LoanReferenceID != nil {
		loan, split, err := uc.applyToLoan(txCtx, tx, record, now)
		if err != nil {
			return nil, err
		}
		result.Loan = loan
		result.Split = split
	}

	if err := uc.recordRepo.Create(txCtx, tx, record); err != nil {
		return nil, err
	}

	err = uc.events.emit(txCtx, tx, domain.AggregateTypeRecord, record.ID, domain.EventTypeRecordIngested, domain.RecordIngestedEvent{
		RecordID:    record.ID,
		MemberID:    record.MemberID,
		Kind:        string(record.Kind),
		Date:        record.TransactionDate.Format(time.DateOnly),
		NeedsReview: record.NeedsReview,
	}, now)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	if result.Ambiguity != nil {
		uc.logger.Warn().
			Str("record_id", record.ID).
			Str("member_id", record.MemberID).
			Str("mode", record.Mode).
			Str("assigned_kind", string(result.Ambiguity.Assigned)).
			Msg(result.Ambiguity.Reason)
	}

	if uc.metrics != nil {
		uc.metrics.RecordsIngested.WithLabelValues(string(record.Kind)).Inc()
		if result.Ambiguity != nil {
			uc.metrics.ClassificationAmbiguities.Inc()
		}
		if result.Split != nil {
			uc.metrics.InstallmentsApplied.Inc()
			uc.metrics.InstallmentAmount.Observe(result.Split.Amount.InexactFloat64())
			if result.Loan.Status == domain.LoanStatusClosed {
				uc.metrics.LoansClosed.Inc()
			}
		}
	}

	invalidateSummary(ctx, uc.cache, uc.logger, record.MemberID)

	return result, nil
}

// applyToLoan checks the referenced loan and, for installment records, locks
// and amortizes it. Records that only reference a loan (fines, interest,
// disbursement notes) leave it untouched.
func (uc *RecordUseCase) applyToLoan(ctx context.Context, tx Transaction, record *domain.TransactionRecord, now time.Time) (*domain.Loan, *domain.InstallmentSplit, error) {
	loan, err := uc.loanRepo.GetByIDForUpdate(ctx, tx, *record.LoanReferenceID)
	if err != nil {
		if errors.Is(err, domain.ErrLoanNotFound) {
			return nil, nil, domain.ErrUnknownLoanRef
		}
		return nil, nil, err
	}

	if loan.MemberID != record.MemberID {
		return nil, nil, domain.ErrMemberMismatch
	}

	if !record.LoanInstallmentAmount.IsPositive() {
		return loan, nil, nil
	}

	updated, split, err := loan.ApplyInstallment(*record)
	if err != nil {
		return nil, nil, err
	}
	updated.UpdatedAt = now

	if err := uc.loanRepo.Update(ctx, tx, &updated); err != nil {
		return nil, nil, err
	}

	err = uc.events.emit(ctx, tx, domain.AggregateTypeLoan, loan.ID, domain.EventTypeInstallmentApplied, domain.InstallmentAppliedEvent{
		LoanID:           loan.ID,
		RecordID:         record.ID,
		Amount:           split.Amount.String(),
		InterestPaid:     split.InterestPaid.String(),
		PrincipalPortion: split.PrincipalPortion.String(),
		RemainingBalance: split.BalanceAfter.String(),
	}, now)
	if err != nil {
		return nil, nil, err
	}

	if updated.Status == domain.LoanStatusClosed {
		err = uc.events.emit(ctx, tx, domain.AggregateTypeLoan, loan.ID, domain.EventTypeLoanClosed, domain.LoanClosedEvent{
			LoanID:   loan.ID,
			MemberID: loan.MemberID,
			ClosedAt: now.Format(time.RFC3339),
		}, now)
		if err != nil {
			return nil, nil, err
		}
	}

	return &updated, &split, nil
}

// GetRecord retrieves a record by ID.
func (uc *RecordUseCase) GetRecord(ctx context.Context, id string) (*domain.TransactionRecord, error) {
	return uc.recordRepo.GetByID(ctx, id)
}

// ListMemberRecordsInput represents input for listing a member's records.
type ListMemberRecordsInput struct {
	MemberID string
	Limit    int
	Offset   int
}

// ListMemberRecords lists a member's records, newest first.
func (uc *RecordUseCase) ListMemberRecords(ctx context.Context, input ListMemberRecordsInput) ([]domain.TransactionRecord, error) {
	limit, offset, err := domain.ValidatePagination(input.Limit, input.Offset)
	if err != nil {
		return nil, err
	}

	if _, err := uc.memberRepo.GetByID(ctx, input.MemberID); err != nil {
		return nil, err
	}

	return uc.recordRepo.ListByMemberPage(ctx, input.MemberID, limit, offset)
}

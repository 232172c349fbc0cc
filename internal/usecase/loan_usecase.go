package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/coopledger/internal/domain"
	"github.com/iho/coopledger/internal/infrastructure/metrics"
)

// disbursementMode labels the ledger record written when a loan pays out.
const disbursementMode = "loan disbursal"

// LoanUseCase handles loan origination and repayment.
type LoanUseCase struct {
	txManager  TransactionManager
	loanRepo   LoanRepository
	recordRepo RecordRepository
	memberRepo MemberRepository
	records    *RecordUseCase
	events     eventWriter
	cache      Cache
	idGen      IDGenerator
	clock      Clock
	logger     zerolog.Logger
	metrics    *metrics.Metrics
}

// NewLoanUseCase creates a new LoanUseCase. Installments are ingested through
// records so they share classification and amortization with POST /records.
func NewLoanUseCase(
	txManager TransactionManager,
	loanRepo LoanRepository,
	recordRepo RecordRepository,
	memberRepo MemberRepository,
	records *RecordUseCase,
	outboxRepo OutboxRepository,
	auditRepo AuditRepository,
	cache Cache,
	idGen IDGenerator,
	clock Clock,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *LoanUseCase {
	return &LoanUseCase{
		txManager:  txManager,
		loanRepo:   loanRepo,
		recordRepo: recordRepo,
		memberRepo: memberRepo,
		records:    records,
		events:     eventWriter{outboxRepo: outboxRepo, auditRepo: auditRepo, idGen: idGen, metrics: m},
		cache:      cache,
		idGen:      idGen,
		clock:      clock,
		logger:     logger,
		metrics:    m,
	}
}

// LoanLimit is what a member may borrow.
type LoanLimit struct {
	MemberID               string
	QualifyingDepositTotal decimal.Decimal
	EightyPercentLimit     decimal.Decimal
}

// GetLoanLimit computes the member's borrowing cap from qualifying deposits.
func (uc *LoanUseCase) GetLoanLimit(ctx context.Context, memberID string) (*LoanLimit, error) {
	if _, err := uc.memberRepo.GetByID(ctx, memberID); err != nil {
		return nil, err
	}

	records, err := uc.recordRepo.ListByMember(ctx, memberID)
	if err != nil {
		return nil, err
	}

	total := domain.QualifyingDepositTotal(records)

	return &LoanLimit{
		MemberID:               memberID,
		QualifyingDepositTotal: total,
		EightyPercentLimit:     domain.EightyPercentLimit(total),
	}, nil
}

// CreateLoanInput represents input for a loan application.
type CreateLoanInput struct {
	MemberID                    string
	PrincipalAmount             decimal.Decimal
	InterestRatePercentPerMonth decimal.Decimal
}

// CreateLoan records a pending loan application. The principal is capped at
// 80% of the member's qualifying deposits.
func (uc *LoanUseCase) CreateLoan(ctx context.Context, input CreateLoanInput) (*domain.Loan, error) {
	now := uc.clock.Now()

	loan := &domain.Loan{
		ID:                          uc.idGen.Generate(),
		MemberID:                    input.MemberID,
		Status:                      domain.LoanStatusPending,
		PrincipalAmount:             input.PrincipalAmount,
		InterestRatePercentPerMonth: input.InterestRatePercentPerMonth,
		RemainingBalance:            decimal.Zero,
		CreatedAt:                   now,
		UpdatedAt:                   now,
	}

	if err := loan.Validate(); err != nil {
		return nil, err
	}

	member, err := uc.memberRepo.GetByID(ctx, input.MemberID)
	if err != nil {
		return nil, err
	}
	loan.TenantID = member.TenantID

	limit, err := uc.GetLoanLimit(ctx, input.MemberID)
	if err != nil {
		return nil, err
	}
	if loan.PrincipalAmount.GreaterThan(limit.EightyPercentLimit) {
		uc.countError("limit_exceeded")
		return nil, fmt.Errorf("%w: limit is %s", domain.ErrLoanLimitExceeded, limit.EightyPercentLimit.StringFixed(2))
	}

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	if err := uc.loanRepo.Create(txCtx, tx, loan); err != nil {
		return nil, err
	}

	err = uc.events.emit(txCtx, tx, domain.AggregateTypeLoan, loan.ID, domain.EventTypeLoanCreated, map[string]any{
		"loan_id":   loan.ID,
		"member_id": loan.MemberID,
		"principal": loan.PrincipalAmount.String(),
		"rate":      loan.InterestRatePercentPerMonth.String(),
	}, now)
	if err != nil {
		return nil, err
	}

	if err := uc.events.audit(txCtx, tx, domain.AuditActionLoanCreate, domain.AggregateTypeLoan, loan.ID, nil, loan, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.LoansCreated.Inc()
	}

	return loan, nil
}

// GetLoan retrieves a loan by ID.
func (uc *LoanUseCase) GetLoan(ctx context.Context, id string) (*domain.Loan, error) {
	return uc.loanRepo.GetByID(ctx, id)
}

// ListMemberLoans lists a member's loans.
func (uc *LoanUseCase) ListMemberLoans(ctx context.Context, memberID string) ([]domain.Loan, error) {
	if _, err := uc.memberRepo.GetByID(ctx, memberID); err != nil {
		return nil, err
	}
	return uc.loanRepo.ListByMember(ctx, memberID)
}

// Disburse activates a pending loan and writes the matching cash-out record,
// so the ledger and the loan move together.
func (uc *LoanUseCase) Disburse(ctx context.Context, loanID string) (*domain.Loan, error) {
	now := uc.clock.Now()

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	loan, err := uc.loanRepo.GetByIDForUpdate(txCtx, tx, loanID)
	if err != nil {
		return nil, err
	}

	active, err := loan.Disburse(now)
	if err != nil {
		uc.countError("not_pending")
		return nil, err
	}

	if err := uc.loanRepo.Update(txCtx, tx, &active); err != nil {
		return nil, err
	}

	ref := active.ID
	record := &domain.TransactionRecord{
		ID:              uc.idGen.Generate(),
		TenantID:        active.TenantID,
		MemberID:        active.MemberID,
		TransactionDate: now,
		Mode:            disbursementMode,
		Kind:            domain.KindDisbursement,
		LoanReferenceID: &ref,
		DepositAmount:   active.PrincipalAmount,
		CreatedAt:       now,
	}
	if err := uc.recordRepo.Create(txCtx, tx, record); err != nil {
		return nil, err
	}

	err = uc.events.emit(txCtx, tx, domain.AggregateTypeLoan, active.ID, domain.EventTypeLoanDisbursed, domain.LoanDisbursedEvent{
		LoanID:      active.ID,
		MemberID:    active.MemberID,
		Principal:   active.PrincipalAmount.String(),
		NextDueDate: active.NextDueDate.Format(time.DateOnly),
		EventAt:     now.Format(time.RFC3339),
	}, now)
	if err != nil {
		return nil, err
	}

	if err := uc.events.audit(txCtx, tx, domain.AuditActionLoanDisburse, domain.AggregateTypeLoan, active.ID, loan, active, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.LoansDisbursed.Inc()
	}

	invalidateSummary(ctx, uc.cache, uc.logger, active.MemberID)

	return &active, nil
}

// Reject declines a pending loan.
func (uc *LoanUseCase) Reject(ctx context.Context, loanID string) (*domain.Loan, error) {
	now := uc.clock.Now()

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	loan, err := uc.loanRepo.GetByIDForUpdate(txCtx, tx, loanID)
	if err != nil {
		return nil, err
	}

	rejected, err := loan.Reject(now)
	if err != nil {
		uc.countError("not_pending")
		return nil, err
	}

	if err := uc.loanRepo.Update(txCtx, tx, &rejected); err != nil {
		return nil, err
	}

	err = uc.events.emit(txCtx, tx, domain.AggregateTypeLoan, rejected.ID, domain.EventTypeLoanRejected, map[string]any{
		"loan_id":   rejected.ID,
		"member_id": rejected.MemberID,
	}, now)
	if err != nil {
		return nil, err
	}

	if err := uc.events.audit(txCtx, tx, domain.AuditActionLoanReject, domain.AggregateTypeLoan, rejected.ID, loan, rejected, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.LoansRejected.Inc()
	}

	return &rejected, nil
}

// RecordInstallmentInput represents a repayment against a loan.
type RecordInstallmentInput struct {
	TransactionDate time.Time
	LoanID          string
	Mode            string
	Amount          decimal.Decimal
	InterestAmount  decimal.Decimal
	FineAmount      decimal.Decimal
}

// RecordInstallment writes an EMI record for the loan and amortizes it.
func (uc *LoanUseCase) RecordInstallment(ctx context.Context, input RecordInstallmentInput) (*IngestResult, error) {
	if !input.Amount.IsPositive() {
		return nil, domain.ErrInvalidInstallment
	}

	loan, err := uc.loanRepo.GetByID(ctx, input.LoanID)
	if err != nil {
		return nil, err
	}

	date := input.TransactionDate
	if date.IsZero() {
		date = uc.clock.Now()
	}

	ref := loan.ID
	result, err := uc.records.Ingest(ctx, IngestRecordInput{
		TransactionDate:       date,
		LoanReferenceID:       &ref,
		TenantID:              loan.TenantID,
		MemberID:              loan.MemberID,
		Mode:                  input.Mode,
		Kind:                  domain.KindEMI,
		LoanInstallmentAmount: input.Amount,
		InterestAmount:        input.InterestAmount,
		FineAmount:            input.FineAmount,
	})
	if err != nil {
		uc.countError("installment")
		return nil, err
	}

	return result, nil
}

func (uc *LoanUseCase) countError(kind string) {
	if uc.metrics != nil {
		uc.metrics.LoanErrors.WithLabelValues(kind).Inc()
	}
}

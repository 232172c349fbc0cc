package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/iho/coopledger/internal/domain"
	"github.com/iho/coopledger/internal/infrastructure/metrics"
)

// RecomputeOutcome is what happened to one member in a recomputation.
type RecomputeOutcome string

const (
	OutcomeUpdated   RecomputeOutcome = "updated"
	OutcomeUnchanged RecomputeOutcome = "unchanged"
	OutcomeSkipped   RecomputeOutcome = "skipped"
	OutcomeFailed    RecomputeOutcome = "failed"
)

// MaturityUseCase projects, persists and administers maturity records.
type MaturityUseCase struct {
	txManager    TransactionManager
	maturityRepo MaturityRepository
	recordRepo   RecordRepository
	memberRepo   MemberRepository
	loanRepo     LoanRepository
	events       eventWriter
	cache        Cache
	retrier      Retrier
	idGen        IDGenerator
	clock        Clock
	logger       zerolog.Logger
	metrics      *metrics.Metrics
	workers      int
}

// MaturityUseCaseConfig wires a MaturityUseCase. Cache, Retrier, AuditRepo,
// OutboxRepo and Metrics are optional.
type MaturityUseCaseConfig struct {
	TxManager    TransactionManager
	MaturityRepo MaturityRepository
	RecordRepo   RecordRepository
	MemberRepo   MemberRepository
	LoanRepo     LoanRepository
	OutboxRepo   OutboxRepository
	AuditRepo    AuditRepository
	Cache        Cache
	Retrier      Retrier
	IDGen        IDGenerator
	Clock        Clock
	Logger       zerolog.Logger
	Metrics      *metrics.Metrics
	Workers      int // Members recomputed concurrently in a batch
}

// NewMaturityUseCase creates a new MaturityUseCase.
func NewMaturityUseCase(cfg MaturityUseCaseConfig) *MaturityUseCase {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultMaturityWorkers
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}

	return &MaturityUseCase{
		txManager:    cfg.TxManager,
		maturityRepo: cfg.MaturityRepo,
		recordRepo:   cfg.RecordRepo,
		memberRepo:   cfg.MemberRepo,
		loanRepo:     cfg.LoanRepo,
		events:       eventWriter{outboxRepo: cfg.OutboxRepo, auditRepo: cfg.AuditRepo, idGen: cfg.IDGen, metrics: cfg.Metrics},
		cache:        cfg.Cache,
		retrier:      cfg.Retrier,
		idGen:        cfg.IDGen,
		clock:        cfg.Clock,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		workers:      cfg.Workers,
	}
}

// GetMaturity retrieves a member's maturity record.
func (uc *MaturityUseCase) GetMaturity(ctx context.Context, memberID string) (*domain.MaturityRecord, error) {
	return uc.maturityRepo.GetByMember(ctx, memberID)
}

// RecomputeResult is the outcome for one member.
type RecomputeResult struct {
	Record  *domain.MaturityRecord
	Outcome RecomputeOutcome
}

// Recompute projects one member's maturity and persists it if anything changed.
// A member without qualifying deposits is skipped, not failed.
func (uc *MaturityUseCase) Recompute(ctx context.Context, memberID string) (*RecomputeResult, error) {
	member, err := uc.memberRepo.GetByID(ctx, memberID)
	if err != nil {
		return nil, err
	}

	result, err := uc.recomputeWithRetry(ctx, *member, "")
	uc.countOutcome(result.Outcome)
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// BatchResult summarizes a tenant-wide recomputation run.
type BatchResult struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Failed     map[string]string
	RunID      string
	TenantID   string
	Processed  int
	Updated    int
	Unchanged  int
	Skipped    int

	mu sync.Mutex
}

func (r *BatchResult) add(memberID string, outcome RecomputeOutcome, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Processed++
	switch outcome {
	case OutcomeUpdated:
		r.Updated++
	case OutcomeUnchanged:
		r.Unchanged++
	case OutcomeSkipped:
		r.Skipped++
	default:
		msg := "unknown failure"
		if err != nil {
			msg = err.Error()
		}
		r.Failed[memberID] = msg
	}
}

// RecomputeAll recomputes every member of a tenant on a bounded worker pool.
// Each member is its own unit of work: one member's failure is recorded in
// the result and never stops the others.
func (uc *MaturityUseCase) RecomputeAll(ctx context.Context, tenantID string) (*BatchResult, error) {
	start := time.Now()

	members, err := uc.memberRepo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{
		RunID:     uuid.NewString(),
		TenantID:  tenantID,
		StartedAt: uc.clock.Now(),
		Failed:    make(map[string]string),
	}

	log := uc.logger.With().Str("run_id", result.RunID).Str("tenant_id", tenantID).Logger()
	log.Info().Int("members", len(members)).Int("workers", uc.workers).Msg("maturity batch started")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.workers)

	for _, member := range members {
		g.Go(func() error {
			res, err := uc.recomputeWithRetry(gctx, member, result.RunID)
			if err != nil {
				log.Error().Err(err).Str("member_id", member.ID).Msg("maturity recompute failed")
			}
			result.add(member.ID, res.Outcome, err)
			uc.countOutcome(res.Outcome)
			return nil
		})
	}
	_ = g.Wait()

	result.FinishedAt = uc.clock.Now()

	if uc.metrics != nil {
		uc.metrics.MaturityBatchDuration.Observe(time.Since(start).Seconds())
	}

	log.Info().
		Int("processed", result.Processed).
		Int("updated", result.Updated).
		Int("unchanged", result.Unchanged).
		Int("skipped", result.Skipped).
		Int("failed", len(result.Failed)).
		Dur("duration", time.Since(start)).
		Msg("maturity batch finished")

	if err := ctx.Err(); err != nil {
		return result, err
	}

	return result, nil
}

func (uc *MaturityUseCase) recomputeWithRetry(ctx context.Context, member domain.Member, runID string) (RecomputeResult, error) {
	var result RecomputeResult

	op := func() error {
		var err error
		result, err = uc.recomputeMember(ctx, member, runID)
		return err
	}

	var err error
	if uc.retrier != nil {
		err = uc.retrier.Retry(ctx, op)
	} else {
		err = op()
	}
	if err != nil {
		return RecomputeResult{Outcome: OutcomeFailed}, err
	}

	if result.Outcome == OutcomeUpdated {
		invalidateSummary(ctx, uc.cache, uc.logger, member.ID)
	}

	return result, nil
}

// recomputeMember performs one read-check-update cycle under the member's
// advisory lock. Records and the stored projection are both read after the
// lock is taken. The write is skipped when the projection equals the stored
// record, so repeated runs within a month touch nothing.
func (uc *MaturityUseCase) recomputeMember(ctx context.Context, member domain.Member, runID string) (RecomputeResult, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return RecomputeResult{}, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	if err := uc.maturityRepo.LockMember(txCtx, tx, member.ID); err != nil {
		return RecomputeResult{}, err
	}

	records, err := uc.recordRepo.ListByMemberTx(txCtx, tx, member.ID)
	if err != nil {
		return RecomputeResult{}, err
	}

	existing, err := uc.maturityRepo.GetByMemberTx(txCtx, tx, member.ID)
	if err != nil && !errors.Is(err, domain.ErrMaturityNotFound) {
		return RecomputeResult{}, err
	}

	// Claimed records are frozen at payout.
	if existing != nil && existing.Status == domain.MaturityStatusClaimed {
		return RecomputeResult{Record: existing, Outcome: OutcomeUnchanged}, nil
	}

	now := uc.clock.Now()

	projected, err := domain.ProjectMaturity(member.ID, records, existing, now)
	if errors.Is(err, domain.ErrNoQualifyingDeposits) {
		return RecomputeResult{Record: existing, Outcome: OutcomeSkipped}, nil
	}
	if err != nil {
		return RecomputeResult{}, err
	}

	if existing != nil && existing.Equal(projected) {
		return RecomputeResult{Record: existing, Outcome: OutcomeUnchanged}, nil
	}

	if projected.ID == "" {
		projected.ID = uc.idGen.Generate()
		projected.CreatedAt = now
	}
	if projected.TenantID == "" {
		projected.TenantID = member.TenantID
	}
	projected.UpdatedAt = now

	if err := uc.maturityRepo.Upsert(txCtx, tx, &projected); err != nil {
		return RecomputeResult{}, err
	}

	if err := uc.emitUpdated(txCtx, tx, projected, runID, now); err != nil {
		return RecomputeResult{}, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return RecomputeResult{}, err
	}

	return RecomputeResult{Record: &projected, Outcome: OutcomeUpdated}, nil
}

func (uc *MaturityUseCase) emitUpdated(ctx context.Context, tx Transaction, rec domain.MaturityRecord, runID string, now time.Time) error {
	return uc.events.emit(ctx, tx, domain.AggregateTypeMaturity, rec.ID, domain.EventTypeMaturityUpdated, domain.MaturityUpdatedEvent{
		MaturityID:       rec.ID,
		MemberID:         rec.MemberID,
		Status:           string(rec.Status),
		TotalDeposit:     rec.TotalDeposit.String(),
		AdjustedInterest: rec.AdjustedInterest.String(),
		MonthsCompleted:  rec.MonthsCompleted,
		RunID:            runID,
	}, now)
}

// OverrideInput sets or clears a manual override.
type OverrideInput struct {
	MemberID         string
	AdjustedInterest decimal.Decimal
	LoanAdjustment   decimal.Decimal
	Clear            bool
}

// Override pins (or, with Clear, releases) the adjusted interest and loan
// adjustment. The change is audited with before and after state.
func (uc *MaturityUseCase) Override(ctx context.Context, input OverrideInput) (*domain.MaturityRecord, error) {
	action := domain.AuditActionMaturityOverride
	if input.Clear {
		action = domain.AuditActionMaturityClearOverride
	}

	updated, err := uc.mutate(ctx, input.MemberID, action, func(rec domain.MaturityRecord, _ time.Time) (domain.MaturityRecord, error) {
		if input.Clear {
			return rec.ClearOverride()
		}
		return rec.ApplyOverride(input.AdjustedInterest, input.LoanAdjustment)
	})
	if err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.MaturityOverrides.Inc()
	}

	return updated, nil
}

// Claim pays out a matured record. Claimed records are frozen.
func (uc *MaturityUseCase) Claim(ctx context.Context, memberID string) (*domain.MaturityRecord, error) {
	claimed, err := uc.mutate(ctx, memberID, domain.AuditActionMaturityClaim, func(rec domain.MaturityRecord, now time.Time) (domain.MaturityRecord, error) {
		return rec.Claim(now)
	})
	if err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.MaturityClaims.Inc()
	}

	return claimed, nil
}

func (uc *MaturityUseCase) mutate(
	ctx context.Context,
	memberID string,
	action domain.AuditAction,
	change func(domain.MaturityRecord, time.Time) (domain.MaturityRecord, error),
) (*domain.MaturityRecord, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	if err := uc.maturityRepo.LockMember(txCtx, tx, memberID); err != nil {
		return nil, err
	}

	existing, err := uc.maturityRepo.GetByMemberTx(txCtx, tx, memberID)
	if err != nil {
		return nil, err
	}

	now := uc.clock.Now()

	updated, err := change(*existing, now)
	if err != nil {
		return nil, err
	}
	updated.UpdatedAt = now

	if err := uc.maturityRepo.Upsert(txCtx, tx, &updated); err != nil {
		return nil, err
	}

	if action == domain.AuditActionMaturityClaim {
		err = uc.events.emit(txCtx, tx, domain.AggregateTypeMaturity, updated.ID, domain.EventTypeMaturityClaimed, domain.MaturityClaimedEvent{
			MaturityID:     updated.ID,
			MemberID:       updated.MemberID,
			MaturityAmount: updated.MaturityAmount().String(),
			ClaimedAt:      now.Format(time.RFC3339),
		}, now)
	} else {
		err = uc.emitUpdated(txCtx, tx, updated, "", now)
	}
	if err != nil {
		return nil, err
	}

	if err := uc.events.audit(txCtx, tx, action, domain.AggregateTypeMaturity, updated.ID, existing, updated, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	invalidateSummary(ctx, uc.cache, uc.logger, memberID)

	return &updated, nil
}

// Report builds the maturity report for a tenant, one row per member with a
// maturity record, ordered by member name.
func (uc *MaturityUseCase) Report(ctx context.Context, tenantID string) ([]domain.MaturityReportRow, error) {
	members, err := uc.memberRepo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	records, err := uc.maturityRepo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	loans, err := uc.loanRepo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	return BuildMaturityReport(members, records, loans), nil
}

// BuildMaturityReport joins members, maturity records and loans into report
// rows. It is shared with the offline snapshot commands.
func BuildMaturityReport(members []domain.Member, records []domain.MaturityRecord, loans []domain.Loan) []domain.MaturityReportRow {
	byMember := make(map[string]domain.MaturityRecord, len(records))
	for _, r := range records {
		byMember[r.MemberID] = r
	}

	loansByMember := make(map[string][]domain.Loan)
	for _, l := range loans {
		loansByMember[l.MemberID] = append(loansByMember[l.MemberID], l)
	}

	rows := make([]domain.MaturityReportRow, 0, len(records))
	for _, m := range members {
		rec, ok := byMember[m.ID]
		if !ok {
			continue
		}
		rows = append(rows, domain.BuildMaturityReportRow(m, rec, loansByMember[m.ID]))
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].MemberName != rows[j].MemberName {
			return rows[i].MemberName < rows[j].MemberName
		}
		return rows[i].MemberID < rows[j].MemberID
	})

	return rows
}

func (uc *MaturityUseCase) countOutcome(outcome RecomputeOutcome) {
	if uc.metrics != nil && outcome != "" {
		uc.metrics.MaturityRecomputations.WithLabelValues(string(outcome)).Inc()
	}
}

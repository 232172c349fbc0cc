package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/coopledger/internal/domain"
	"github.com/iho/coopledger/internal/infrastructure/metrics"
)

// ErrCacheMiss is returned by Cache implementations when a key is absent.
var ErrCacheMiss = errors.New("cache miss")

const summaryCachePrefix = "summary:"

func summaryCacheKey(memberID string) string {
	return summaryCachePrefix + memberID
}

// invalidateSummary drops a cached member summary. Failures are logged and
// otherwise ignored; the entry expires on its own.
func invalidateSummary(ctx context.Context, cache Cache, logger zerolog.Logger, memberID string) {
	if cache == nil {
		return
	}
	if err := cache.Delete(ctx, summaryCacheKey(memberID)); err != nil {
		logger.Warn().Err(err).Str("member_id", memberID).Msg("failed to invalidate member summary")
	}
}

// SummaryUseCase builds member financial summaries, cached per member.
type SummaryUseCase struct {
	recordRepo   RecordRepository
	loanRepo     LoanRepository
	maturityRepo MaturityRepository
	memberRepo   MemberRepository
	cache        Cache
	ttl          time.Duration
	logger       zerolog.Logger
	metrics      *metrics.Metrics
}

// NewSummaryUseCase creates a new SummaryUseCase. cache may be nil.
func NewSummaryUseCase(
	recordRepo RecordRepository,
	loanRepo LoanRepository,
	maturityRepo MaturityRepository,
	memberRepo MemberRepository,
	cache Cache,
	ttl time.Duration,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *SummaryUseCase {
	if ttl <= 0 {
		ttl = DefaultSummaryCacheTTL
	}

	return &SummaryUseCase{
		recordRepo:   recordRepo,
		loanRepo:     loanRepo,
		maturityRepo: maturityRepo,
		memberRepo:   memberRepo,
		cache:        cache,
		ttl:          ttl,
		logger:       logger,
		metrics:      m,
	}
}

// MemberSummary returns the member's summary, from cache when possible.
func (uc *SummaryUseCase) MemberSummary(ctx context.Context, memberID string) (*domain.MemberSummary, error) {
	if cached, ok := uc.fromCache(ctx, memberID); ok {
		return cached, nil
	}

	member, err := uc.memberRepo.GetByID(ctx, memberID)
	if err != nil {
		return nil, err
	}

	records, err := uc.recordRepo.ListByMember(ctx, memberID)
	if err != nil {
		return nil, err
	}

	loans, err := uc.loanRepo.ListByMember(ctx, memberID)
	if err != nil {
		return nil, err
	}

	maturity, err := uc.maturityRepo.GetByMember(ctx, memberID)
	if err != nil && !errors.Is(err, domain.ErrMaturityNotFound) {
		return nil, err
	}

	summary := domain.Summarize(domain.SummaryInput{
		Member:   *member,
		Records:  records,
		Ledger:   domain.BuildLedger(records),
		Loans:    loans,
		Maturity: maturity,
	})

	uc.toCache(ctx, memberID, &summary)

	return &summary, nil
}

func (uc *SummaryUseCase) fromCache(ctx context.Context, memberID string) (*domain.MemberSummary, bool) {
	if uc.cache == nil {
		return nil, false
	}

	data, err := uc.cache.Get(ctx, summaryCacheKey(memberID))
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			uc.logger.Warn().Err(err).Str("member_id", memberID).Msg("summary cache read failed")
		}
		uc.countCache("miss")
		return nil, false
	}

	var summary domain.MemberSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		uc.logger.Warn().Err(err).Str("member_id", memberID).Msg("discarding corrupt summary cache entry")
		uc.countCache("miss")
		return nil, false
	}

	uc.countCache("hit")
	return &summary, true
}

func (uc *SummaryUseCase) toCache(ctx context.Context, memberID string, summary *domain.MemberSummary) {
	if uc.cache == nil {
		return
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return
	}

	if err := uc.cache.Set(ctx, summaryCacheKey(memberID), data, uc.ttl); err != nil {
		uc.logger.Warn().Err(err).Str("member_id", memberID).Msg("summary cache write failed")
	}
}

func (uc *SummaryUseCase) countCache(result string) {
	if uc.metrics != nil {
		uc.metrics.SummaryCacheHits.WithLabelValues(result).Inc()
	}
}

package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/coopledger/internal/usecase"
)

// TenantSource lists the tenants a batch covers.
type TenantSource interface {
	ListTenants(ctx context.Context) ([]string, error)
}

// BatchRunner recomputes every member of one tenant.
type BatchRunner interface {
	RecomputeAll(ctx context.Context, tenantID string) (*usecase.BatchResult, error)
}

// MaturityScheduler runs the maturity batch for every tenant once per
// calendar month. It polls on an interval and fires when the month observed
// by its clock differs from the last completed run. A month whose run had
// failures is retried on the next poll.
type MaturityScheduler struct {
	tenants  TenantSource
	runner   BatchRunner
	clock    usecase.Clock
	logger   zerolog.Logger
	interval time.Duration

	mu      sync.Mutex
	lastRun monthKey
}

// Config for MaturityScheduler.
type Config struct {
	Tenants  TenantSource
	Runner   BatchRunner
	Clock    usecase.Clock
	Logger   zerolog.Logger
	Interval time.Duration // Poll interval
}

type monthKey struct {
	year  int
	month time.Month
}

func (k monthKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.year, k.month)
}

func monthOf(t time.Time) monthKey {
	t = t.UTC()
	return monthKey{year: t.Year(), month: t.Month()}
}

// NewMaturityScheduler creates a new MaturityScheduler.
func NewMaturityScheduler(cfg Config) *MaturityScheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Clock == nil {
		cfg.Clock = usecase.SystemClock{}
	}

	return &MaturityScheduler{
		tenants:  cfg.Tenants,
		runner:   cfg.Runner,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		interval: cfg.Interval,
	}
}

// Start polls until ctx is cancelled. The first poll happens immediately.
func (s *MaturityScheduler) Start(ctx context.Context) error {
	s.logger.Info().Dur("interval", s.interval).Msg("maturity scheduler started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("maturity scheduler shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *MaturityScheduler) poll(ctx context.Context) {
	month := monthOf(s.clock.Now())

	s.mu.Lock()
	due := s.lastRun != month
	s.mu.Unlock()

	if !due {
		return
	}

	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error().Err(err).Str("month", month.String()).Msg("maturity batch incomplete, will retry")
		return
	}

	s.mu.Lock()
	s.lastRun = month
	s.mu.Unlock()
}

// RunOnce runs the batch for every tenant now. A failing tenant does not stop
// the others; the returned error reports how many tenants failed.
func (s *MaturityScheduler) RunOnce(ctx context.Context) ([]*usecase.BatchResult, error) {
	tenants, err := s.tenants.ListTenants(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}

	results := make([]*usecase.BatchResult, 0, len(tenants))
	failedTenants := 0

	for _, tenantID := range tenants {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		result, err := s.runner.RecomputeAll(ctx, tenantID)
		if err != nil {
			failedTenants++
			s.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("maturity batch failed")
			continue
		}

		results = append(results, result)
		if len(result.Failed) > 0 {
			failedTenants++
		}
	}

	s.logger.Info().Int("tenants", len(tenants)).Int("failed_tenants", failedTenants).Msg("maturity run finished")

	if failedTenants > 0 {
		return results, fmt.Errorf("maturity batch failed for %d of %d tenants", failedTenants, len(tenants))
	}

	return results, nil
}

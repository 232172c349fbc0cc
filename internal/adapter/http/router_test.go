package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/coopledger/internal/adapter/http/handler"
	apimiddleware "github.com/iho/coopledger/internal/adapter/http/middleware"
	"github.com/iho/coopledger/internal/domain"
	"github.com/iho/coopledger/internal/infrastructure/metrics"
	"github.com/iho/coopledger/internal/usecase"
)

func TestNewRouter_HealthEndpointAvailable(t *testing.T) {
	router := NewRouter(newRouterConfig())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected /health to return 200, got %d", rec.Code)
	}
}

func TestNewRouter_RateLimiterBlocksExcessRequests(t *testing.T) {
	rl := apimiddleware.NewRateLimiter(1, 1)
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.RateLimiter = rl
	}))

	req1 := httptest.NewRequest(http.MethodGet, "/health", nil)
	req1.RemoteAddr = "1.2.3.4:1234"
	rec1 := httptest.NewRecorder()
	router.ServeHTTP(rec1, req1)
	if rec1.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", rec1.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/health", nil)
	req2.RemoteAddr = "1.2.3.4:1234"
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be throttled, got %d", rec2.Code)
	}
}

func TestNewRouter_IdempotencyMiddlewareInvokesStore(t *testing.T) {
	store := &stubIdempotencyStore{}
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.IdempotencyStore = store
	}))

	body := `{"member_id":"m-1","principal_amount":"800","interest_rate_percent_per_month":"1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/loans/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apimiddleware.IdempotencyKeyHeader, "key-123")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !store.checkCalled || !store.updateCalled {
		t.Fatalf("expected idempotency store to be used, got %+v", store)
	}
}

func TestNewRouter_PropagatesActor(t *testing.T) {
	maturity := &stubMaturityService{}
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.MaturityHandler = handler.NewMaturityHandler(maturity)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/members/m-1/maturity/claim", nil)
	req.Header.Set(apimiddleware.ActorIDHeader, "treasurer")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if maturity.claimActor.ID != "treasurer" || maturity.claimActor.RequestID == "" {
		t.Fatalf("expected actor with request id in context, got %+v", maturity.claimActor)
	}
}

func TestNewRouter_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.Metrics = m
		cfg.MetricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}))

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/loans/loan-1", nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `coopledger_http_requests_total{method="GET",path="/api/v1/loans/{id}",status="200"} 1`) {
		t.Fatalf("expected request counter in metrics output, got:\n%s", rec.Body.String())
	}
}

func TestNewRouter_RegistersKeyRoutes(t *testing.T) {
	router := NewRouter(newRouterConfig())

	chiRoutes, ok := router.(chi.Router)
	if !ok {
		t.Fatal("router does not implement chi.Routes")
	}

	seen := map[string]bool{}
	if err := chi.Walk(chiRoutes, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		seen[method+" "+route] = true
		return nil
	}); err != nil {
		t.Fatalf("walk failed: %v", err)
	}

	expected := []string{
		"GET /health",
		"GET /ready",
		"GET /metrics",
		"POST /api/v1/records/",
		"GET /api/v1/members/{id}/records",
		"GET /api/v1/members/{id}/ledger",
		"GET /api/v1/members/{id}/loan-limit",
		"GET /api/v1/members/{id}/loans",
		"GET /api/v1/members/{id}/summary",
		"GET /api/v1/members/{id}/maturity",
		"POST /api/v1/members/{id}/maturity/recompute",
		"POST /api/v1/members/{id}/maturity/override",
		"POST /api/v1/members/{id}/maturity/claim",
		"POST /api/v1/loans/",
		"GET /api/v1/loans/{id}",
		"POST /api/v1/loans/{id}/disburse",
		"POST /api/v1/loans/{id}/reject",
		"POST /api/v1/loans/{id}/installments",
		"GET /api/v1/tenants/{id}/ledger",
		"GET /api/v1/tenants/{id}/ledger/reconcile",
		"POST /api/v1/tenants/{id}/maturity/recompute",
		"GET /api/v1/tenants/{id}/reports/maturity",
		"GET /api/v1/tenants/{id}/reports/defaulters",
	}

	for _, route := range expected {
		if !seen[route] {
			t.Fatalf("expected route %s to be registered", route)
		}
	}
}

func newRouterConfig(opts ...func(*RouterConfig)) RouterConfig {
	cfg := RouterConfig{
		HealthHandler:   handler.NewHealthHandler(nil, nil),
		RecordHandler:   handler.NewRecordHandler(stubRecordService{}),
		LedgerHandler:   handler.NewLedgerHandler(stubLedgerService{}),
		LoanHandler:     handler.NewLoanHandler(stubLoanService{}),
		MaturityHandler: handler.NewMaturityHandler(&stubMaturityService{}),
		ReportHandler:   handler.NewReportHandler(stubReportService{}, stubReportService{}),
		Logger:          zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}

type stubRecordService struct{}

func (stubRecordService) Ingest(ctx context.Context, input usecase.IngestRecordInput) (*usecase.IngestResult, error) {
	return &usecase.IngestResult{Record: &domain.TransactionRecord{ID: "rec"}}, nil
}

func (stubRecordService) GetRecord(ctx context.Context, id string) (*domain.TransactionRecord, error) {
	return &domain.TransactionRecord{ID: id}, nil
}

func (stubRecordService) ListMemberRecords(ctx context.Context, input usecase.ListMemberRecordsInput) ([]domain.TransactionRecord, error) {
	return []domain.TransactionRecord{}, nil
}

type stubLedgerService struct{}

func (stubLedgerService) MemberLedger(ctx context.Context, memberID string, q usecase.LedgerQuery) ([]domain.LedgerDay, error) {
	return []domain.LedgerDay{}, nil
}

func (stubLedgerService) TenantLedger(ctx context.Context, tenantID string, q usecase.LedgerQuery) ([]domain.LedgerDay, error) {
	return []domain.LedgerDay{}, nil
}

func (stubLedgerService) ReconcileTenant(ctx context.Context, tenantID string) (*usecase.ReconciliationReport, error) {
	return &usecase.ReconciliationReport{TenantID: tenantID, Consistent: true}, nil
}

type stubLoanService struct{}

func (stubLoanService) CreateLoan(ctx context.Context, input usecase.CreateLoanInput) (*domain.Loan, error) {
	return &domain.Loan{ID: "loan", MemberID: input.MemberID, Status: domain.LoanStatusPending, PrincipalAmount: input.PrincipalAmount}, nil
}

func (stubLoanService) GetLoan(ctx context.Context, id string) (*domain.Loan, error) {
	return &domain.Loan{ID: id}, nil
}

func (stubLoanService) ListMemberLoans(ctx context.Context, memberID string) ([]domain.Loan, error) {
	return []domain.Loan{}, nil
}

func (stubLoanService) Disburse(ctx context.Context, loanID string) (*domain.Loan, error) {
	return &domain.Loan{ID: loanID, Status: domain.LoanStatusActive}, nil
}

func (stubLoanService) Reject(ctx context.Context, loanID string) (*domain.Loan, error) {
	return &domain.Loan{ID: loanID, Status: domain.LoanStatusRejected}, nil
}

func (stubLoanService) RecordInstallment(ctx context.Context, input usecase.RecordInstallmentInput) (*usecase.IngestResult, error) {
	return &usecase.IngestResult{Record: &domain.TransactionRecord{ID: "rec"}}, nil
}

func (stubLoanService) GetLoanLimit(ctx context.Context, memberID string) (*usecase.LoanLimit, error) {
	return &usecase.LoanLimit{MemberID: memberID, QualifyingDepositTotal: decimal.Zero, EightyPercentLimit: decimal.Zero}, nil
}

type stubMaturityService struct {
	claimActor domain.Actor
}

func (s *stubMaturityService) GetMaturity(ctx context.Context, memberID string) (*domain.MaturityRecord, error) {
	return &domain.MaturityRecord{MemberID: memberID}, nil
}

func (s *stubMaturityService) Recompute(ctx context.Context, memberID string) (*usecase.RecomputeResult, error) {
	return &usecase.RecomputeResult{Outcome: usecase.OutcomeUnchanged}, nil
}

func (s *stubMaturityService) RecomputeAll(ctx context.Context, tenantID string) (*usecase.BatchResult, error) {
	return &usecase.BatchResult{TenantID: tenantID, Failed: map[string]string{}}, nil
}

func (s *stubMaturityService) Override(ctx context.Context, input usecase.OverrideInput) (*domain.MaturityRecord, error) {
	return &domain.MaturityRecord{MemberID: input.MemberID, ManualOverride: !input.Clear}, nil
}

func (s *stubMaturityService) Claim(ctx context.Context, memberID string) (*domain.MaturityRecord, error) {
	s.claimActor, _ = domain.ActorFromContext(ctx)
	now := time.Now()
	return &domain.MaturityRecord{MemberID: memberID, Status: domain.MaturityStatusClaimed, ClaimedAt: &now}, nil
}

func (s *stubMaturityService) Report(ctx context.Context, tenantID string) ([]domain.MaturityReportRow, error) {
	return []domain.MaturityReportRow{}, nil
}

type stubReportService struct{}

func (stubReportService) Defaulters(ctx context.Context, tenantID string) ([]domain.DefaulterReportRow, error) {
	return []domain.DefaulterReportRow{}, nil
}

func (stubReportService) MemberSummary(ctx context.Context, memberID string) (*domain.MemberSummary, error) {
	return &domain.MemberSummary{MemberID: memberID}, nil
}

type stubIdempotencyStore struct {
	checkCalled  bool
	updateCalled bool
}

func (s *stubIdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	s.checkCalled = true
	return false, nil, nil
}

func (s *stubIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	s.updateCalled = true
	return nil
}

func (s *stubIdempotencyStore) Release(ctx context.Context, key string) error {
	return nil
}

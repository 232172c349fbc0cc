package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/coopledger/internal/adapter/http/dto"
	"github.com/iho/coopledger/internal/adapter/http/middleware"
	"github.com/iho/coopledger/internal/adapter/repository/sqlite"
	"github.com/iho/coopledger/internal/domain"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func writeTestSnapshot(t *testing.T) string {
	t.Helper()

	due := day(2024, 3, 1)
	disbursed := day(2024, 2, 1)
	loanRef := "loan-1"

	path := filepath.Join(t.TempDir(), "snapshot.db")
	store, err := sqlite.Open(path)
	if err != nil {
		t.Fatalf("open snapshot: %v", err)
	}
	defer store.Close()

	snap := sqlite.Snapshot{
		TakenAt:  day(2024, 6, 1),
		TenantID: "coop-1",
		Members: []domain.Member{
			{ID: "m-1", TenantID: "coop-1", Name: "Asha", Phone: "9800000001", MonthlyContribution: decimal.NewFromInt(1000), JoinDate: day(2024, 1, 1), CreatedAt: day(2024, 1, 1)},
		},
		Records: []domain.TransactionRecord{
			{ID: "r-1", TenantID: "coop-1", MemberID: "m-1", TransactionDate: day(2024, 1, 5), Mode: "cash", Kind: domain.KindDeposit, DepositAmount: decimal.NewFromInt(1000), CreatedAt: day(2024, 1, 5)},
			{ID: "r-2", TenantID: "coop-1", MemberID: "m-1", TransactionDate: day(2024, 2, 1), Mode: "loan disbursal", Kind: domain.KindDisbursement, LoanReferenceID: &loanRef, DepositAmount: decimal.NewFromInt(500), CreatedAt: day(2024, 2, 1)},
		},
		Loans: []domain.Loan{
			{ID: "loan-1", TenantID: "coop-1", MemberID: "m-1", Status: domain.LoanStatusActive, PrincipalAmount: decimal.NewFromInt(500), InterestRatePercentPerMonth: decimal.NewFromInt(1), RemainingBalance: decimal.NewFromInt(500), DisbursedDate: &disbursed, NextDueDate: &due, CreatedAt: day(2024, 1, 20), UpdatedAt: day(2024, 2, 1)},
		},
	}
	if err := store.Write(context.Background(), snap); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}

	return path
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("expected short unchanged, got %q", got)
	}

	if got := truncate("longerstring", 6); got != "lon..." {
		t.Fatalf("expected lon..., got %q", got)
	}
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := printJSON(&buf, struct {
		A int `json:"a"`
	}{A: 1}); err != nil {
		t.Fatalf("printJSON failed: %v", err)
	}

	expected := "{\n  \"a\": 1\n}\n"
	if buf.String() != expected {
		t.Fatalf("unexpected json output:\n%s", buf.String())
	}
}

func TestUnknownOutputFormat(t *testing.T) {
	_, err := runCLI(t, "--output", "xml", "member", "summary", "m-1")
	if err == nil || !strings.Contains(err.Error(), "unknown output format") {
		t.Fatalf("expected output format error, got %v", err)
	}
}

func TestLedgerReconcileInconsistent(t *testing.T) {
	var gotActor string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/tenants/coop-1/ledger/reconcile" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotActor = r.Header.Get(middleware.ActorIDHeader)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(dto.ReconciliationResponse{
			TenantID:       "coop-1",
			Problem:        "closing balance 10 differs from 12",
			CashIn:         "100",
			CashOut:        "88",
			ClosingBalance: "10",
			Days:           3,
		})
	}))
	defer server.Close()

	out, err := runCLI(t, "--url", server.URL, "--actor", "treasurer", "ledger", "reconcile", "coop-1")
	if !errors.Is(err, errInconsistentLedger) {
		t.Fatalf("expected inconsistent ledger error, got %v", err)
	}
	if gotActor != "treasurer" {
		t.Fatalf("expected actor header treasurer, got %q", gotActor)
	}
	if !strings.Contains(out, "INCONSISTENT") || !strings.Contains(out, "closing balance 10 differs from 12") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestMaturityRecomputeSendsIdempotencyKey(t *testing.T) {
	var gotKey, gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get(middleware.IdempotencyKeyHeader)
		gotMethod = r.Method
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(dto.BatchResponse{
			RunID:     "run-1",
			TenantID:  "coop-1",
			Processed: 3,
			Updated:   2,
			Unchanged: 1,
			Failed:    []dto.BatchFailure{},
		})
	}))
	defer server.Close()

	out, err := runCLI(t, "--url", server.URL, "maturity", "recompute", "coop-1", "--idempotency-key", "batch-2024-06")
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if gotMethod != http.MethodPost || gotKey != "batch-2024-06" {
		t.Fatalf("expected POST with idempotency key, got %s %q", gotMethod, gotKey)
	}
	if !strings.Contains(out, "run-1") || !strings.Contains(out, "Updated:") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestMaturityRecomputeReportsFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(dto.BatchResponse{
			RunID:     "run-2",
			Processed: 2,
			Updated:   1,
			Failed:    []dto.BatchFailure{{MemberID: "m-9", Error: "deadlock detected"}},
		})
	}))
	defer server.Close()

	out, err := runCLI(t, "--url", server.URL, "maturity", "recompute", "coop-1")
	if err == nil || !strings.Contains(err.Error(), "1 of 2 members failed") {
		t.Fatalf("expected failure count error, got %v", err)
	}
	if !strings.Contains(out, "m-9") {
		t.Fatalf("expected failed member in output:\n%s", out)
	}
}

func TestMemberSummaryAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(dto.ErrorResponse{Error: "member not found"})
	}))
	defer server.Close()

	_, err := runCLI(t, "--url", server.URL, "member", "summary", "missing")
	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected apiError, got %v", err)
	}
	if apiErr.Status != http.StatusNotFound || apiErr.Message != "member not found" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
}

func TestReportDefaultersJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/tenants/coop-1/reports/defaulters" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(dto.DefaultersResponse{Rows: []dto.DefaulterRowResponse{
			{DueDate: "2024-03-01", MemberID: "m-1", Member: "Asha", LoanID: "loan-1", Balance: "500", Status: "critical", OverdueDays: 92},
		}})
	}))
	defer server.Close()

	out, err := runCLI(t, "--url", server.URL, "-o", "json", "report", "defaulters", "coop-1")
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}

	var got dto.DefaultersResponse
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not json: %v\n%s", err, out)
	}
	if len(got.Rows) != 1 || got.Rows[0].OverdueDays != 92 {
		t.Fatalf("unexpected rows %+v", got.Rows)
	}
}

func TestOfflineRequiresSnapshotPath(t *testing.T) {
	t.Setenv("SQLITE_PATH", "")

	_, err := runCLI(t, "offline", "defaulters")
	if err == nil || !strings.Contains(err.Error(), "--sqlite is required") {
		t.Fatalf("expected missing --sqlite error, got %v", err)
	}
}

func TestOfflineSnapshotPathFromEnvironment(t *testing.T) {
	t.Setenv("SQLITE_PATH", writeTestSnapshot(t))

	out, err := runCLI(t, "offline", "defaulters")
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if !strings.Contains(out, "loan-1") {
		t.Fatalf("expected defaulter loan-1 in output:\n%s", out)
	}
}

func TestOfflineDefaulters(t *testing.T) {
	path := writeTestSnapshot(t)

	out, err := runCLI(t, "offline", "defaulters", "--sqlite", path)
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if !strings.Contains(out, "loan-1") || !strings.Contains(out, "Asha") {
		t.Fatalf("expected overdue loan in output:\n%s", out)
	}
}

func TestOfflineDefaultersBeforeDueDate(t *testing.T) {
	path := writeTestSnapshot(t)

	out, err := runCLI(t, "offline", "defaulters", "--sqlite", path, "--as-of", "2024-02-15")
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if strings.Contains(out, "loan-1") {
		t.Fatalf("loan is not yet due, got:\n%s", out)
	}
}

func TestOfflineLedgerAndReconcile(t *testing.T) {
	path := writeTestSnapshot(t)

	out, err := runCLI(t, "-o", "json", "offline", "ledger", "--sqlite", path, "--member", "m-1")
	if err != nil {
		t.Fatalf("ledger failed: %v", err)
	}
	var ledger dto.LedgerResponse
	if err := json.Unmarshal([]byte(out), &ledger); err != nil {
		t.Fatalf("output is not json: %v\n%s", err, out)
	}
	if len(ledger.Days) != 2 {
		t.Fatalf("expected 2 ledger days, got %d", len(ledger.Days))
	}
	if ledger.Days[1].RunningBalance != "500" {
		t.Fatalf("expected running balance 500, got %s", ledger.Days[1].RunningBalance)
	}

	out, err = runCLI(t, "offline", "reconcile", "--sqlite", path)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if !strings.Contains(out, "CONSISTENT") {
		t.Fatalf("expected consistent ledger:\n%s", out)
	}
}

func TestOfflineSummary(t *testing.T) {
	path := writeTestSnapshot(t)

	out, err := runCLI(t, "-o", "json", "offline", "summary", "m-1", "--sqlite", path)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}

	var summary dto.SummaryResponse
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("output is not json: %v\n%s", err, out)
	}
	if summary.Member != "Asha" || summary.TotalDeposits != "1000" {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestDatabaseSettingsPrefersFlags(t *testing.T) {
	url, path, err := databaseSettings("postgres://flag", "db/migrations")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "postgres://flag" || path != "db/migrations" {
		t.Fatalf("expected flag values, got %s %s", url, path)
	}
}

func TestDatabaseSettingsFallsBackToEnvironment(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env")

	url, path, err := databaseSettings("", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "postgres://env" || path != "internal/infrastructure/postgres/migrations" {
		t.Fatalf("unexpected settings %s %s", url, path)
	}
}

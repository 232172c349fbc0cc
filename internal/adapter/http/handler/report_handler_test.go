package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/iho/coopledger/internal/adapter/http/dto"
	"github.com/iho/coopledger/internal/domain"
)

type defaulterServiceStub struct {
	fn func(ctx context.Context, tenantID string) ([]domain.DefaulterReportRow, error)
}

func (s defaulterServiceStub) Defaulters(ctx context.Context, tenantID string) ([]domain.DefaulterReportRow, error) {
	return s.fn(ctx, tenantID)
}

type summaryServiceStub struct {
	fn func(ctx context.Context, memberID string) (*domain.MemberSummary, error)
}

func (s summaryServiceStub) MemberSummary(ctx context.Context, memberID string) (*domain.MemberSummary, error) {
	return s.fn(ctx, memberID)
}

func TestReportHandler_Defaulters(t *testing.T) {
	var gotTenant string
	h := NewReportHandler(defaulterServiceStub{fn: func(ctx context.Context, tenantID string) ([]domain.DefaulterReportRow, error) {
		gotTenant = tenantID
		return []domain.DefaulterReportRow{
			{DefaulterEntry: domain.DefaulterEntry{LoanID: "l-1", Severity: domain.SeverityCritical, DaysOverdue: 61}, MemberName: "Asha"},
			{DefaulterEntry: domain.DefaulterEntry{LoanID: "l-2", Severity: domain.SeverityWatch, DaysOverdue: 60}, MemberName: "Ravi"},
		}, nil
	}}, nil)

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/tenants/coop/reports/defaulters", nil), "id", "coop")
	rec := httptest.NewRecorder()
	h.Defaulters(rec, req)

	if rec.Code != http.StatusOK || gotTenant != "coop" {
		t.Fatalf("unexpected status %d for tenant %q", rec.Code, gotTenant)
	}

	var resp dto.DefaultersResponse
	decodeBody(t, rec, &resp)
	if len(resp.Rows) != 2 || resp.Rows[0].Status != "Critical" || resp.Rows[1].OverdueDays != 60 {
		t.Fatalf("unexpected report %+v", resp)
	}
}

func TestReportHandler_Summary(t *testing.T) {
	h := NewReportHandler(nil, summaryServiceStub{fn: func(ctx context.Context, memberID string) (*domain.MemberSummary, error) {
		if memberID != "m-1" {
			return nil, domain.ErrMemberNotFound
		}
		return &domain.MemberSummary{
			MemberID:           memberID,
			MemberName:         "Asha",
			TotalDeposits:      decimal.NewFromInt(1000),
			EightyPercentLimit: decimal.NewFromInt(800),
		}, nil
	}})

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/members/m-1/summary", nil), "id", "m-1")
	rec := httptest.NewRecorder()
	h.Summary(rec, req)

	var resp dto.SummaryResponse
	decodeBody(t, rec, &resp)
	if rec.Code != http.StatusOK || resp.EightyPercentLimit != "800" {
		t.Fatalf("unexpected response %d %+v", rec.Code, resp)
	}

	req = withURLParam(httptest.NewRequest(http.MethodGet, "/members/m-2/summary", nil), "id", "m-2")
	rec = httptest.NewRecorder()
	h.Summary(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

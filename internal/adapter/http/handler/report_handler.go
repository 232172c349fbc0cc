package handler

import (
	"context"
	"net/http"

	"github.com/iho/coopledger/internal/adapter/http/dto"
	"github.com/iho/coopledger/internal/domain"
)

// DefaulterService defines the behavior needed for the defaulters report.
type DefaulterService interface {
	Defaulters(ctx context.Context, tenantID string) ([]domain.DefaulterReportRow, error)
}

// SummaryService defines the behavior needed for member summaries.
type SummaryService interface {
	MemberSummary(ctx context.Context, memberID string) (*domain.MemberSummary, error)
}

// ReportHandler serves read-only reports.
type ReportHandler struct {
	defaulterUC DefaulterService
	summaryUC   SummaryService
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(defaulterUC DefaulterService, summaryUC SummaryService) *ReportHandler {
	return &ReportHandler{
		defaulterUC: defaulterUC,
		summaryUC:   summaryUC,
	}
}

// Defaulters lists a tenant's overdue loans, worst first.
func (h *ReportHandler) Defaulters(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	rows, err := h.defaulterUC.Defaulters(r.Context(), tenantID)
	if err != nil {
		writeDomainError(w, "failed to build defaulters report", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.DefaultersFromDomain(rows))
}

// Summary returns a member's financial summary.
func (h *ReportHandler) Summary(w http.ResponseWriter, r *http.Request) {
	memberID, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	summary, err := h.summaryUC.MemberSummary(r.Context(), memberID)
	if err != nil {
		writeDomainError(w, "failed to build summary", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SummaryFromDomain(summary))
}

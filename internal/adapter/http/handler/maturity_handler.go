package handler

import (
	"context"
	"net/http"

	"github.com/iho/coopledger/internal/adapter/http/dto"
	"github.com/iho/coopledger/internal/domain"
	"github.com/iho/coopledger/internal/usecase"
)

// MaturityService defines the behavior needed by MaturityHandler.
type MaturityService interface {
	GetMaturity(ctx context.Context, memberID string) (*domain.MaturityRecord, error)
	Recompute(ctx context.Context, memberID string) (*usecase.RecomputeResult, error)
	RecomputeAll(ctx context.Context, tenantID string) (*usecase.BatchResult, error)
	Override(ctx context.Context, input usecase.OverrideInput) (*domain.MaturityRecord, error)
	Claim(ctx context.Context, memberID string) (*domain.MaturityRecord, error)
	Report(ctx context.Context, tenantID string) ([]domain.MaturityReportRow, error)
}

// MaturityHandler handles maturity projection requests.
type MaturityHandler struct {
	maturityUC MaturityService
}

// NewMaturityHandler creates a new MaturityHandler.
func NewMaturityHandler(maturityUC MaturityService) *MaturityHandler {
	return &MaturityHandler{maturityUC: maturityUC}
}

// Get returns a member's stored maturity record.
func (h *MaturityHandler) Get(w http.ResponseWriter, r *http.Request) {
	memberID, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	rec, err := h.maturityUC.GetMaturity(r.Context(), memberID)
	if err != nil {
		writeDomainError(w, "failed to get maturity", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.MaturityFromDomain(rec))
}

// Recompute projects one member's maturity now.
func (h *MaturityHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	memberID, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	result, err := h.maturityUC.Recompute(r.Context(), memberID)
	if err != nil {
		writeDomainError(w, "failed to recompute maturity", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RecomputeFromUseCase(result))
}

// RecomputeTenant runs the batch for every member of a tenant. Per-member
// failures are reported in the body, not as an error status.
func (h *MaturityHandler) RecomputeTenant(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	result, err := h.maturityUC.RecomputeAll(r.Context(), tenantID)
	if err != nil {
		writeDomainError(w, "failed to recompute tenant", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BatchFromUseCase(result))
}

// Override pins or clears the adjusted interest and loan adjustment.
func (h *MaturityHandler) Override(w http.ResponseWriter, r *http.Request) {
	memberID, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	var req dto.OverrideMaturityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	input, err := req.ToUseCaseInput(memberID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	rec, err := h.maturityUC.Override(r.Context(), input)
	if err != nil {
		writeDomainError(w, "failed to override maturity", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.MaturityFromDomain(rec))
}

// Claim pays out a matured record.
func (h *MaturityHandler) Claim(w http.ResponseWriter, r *http.Request) {
	memberID, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	rec, err := h.maturityUC.Claim(r.Context(), memberID)
	if err != nil {
		writeDomainError(w, "failed to claim maturity", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.MaturityFromDomain(rec))
}

// Report lists every member's maturity position for a tenant.
func (h *MaturityHandler) Report(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	rows, err := h.maturityUC.Report(r.Context(), tenantID)
	if err != nil {
		writeDomainError(w, "failed to build maturity report", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.MaturityReportFromDomain(rows))
}

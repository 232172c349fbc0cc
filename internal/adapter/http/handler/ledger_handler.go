package handler

import (
	"context"
	"net/http"

	"github.com/iho/coopledger/internal/adapter/http/dto"
	"github.com/iho/coopledger/internal/domain"
	"github.com/iho/coopledger/internal/usecase"
)

// LedgerService defines the behavior needed by LedgerHandler.
type LedgerService interface {
	MemberLedger(ctx context.Context, memberID string, q usecase.LedgerQuery) ([]domain.LedgerDay, error)
	TenantLedger(ctx context.Context, tenantID string, q usecase.LedgerQuery) ([]domain.LedgerDay, error)
	ReconcileTenant(ctx context.Context, tenantID string) (*usecase.ReconciliationReport, error)
}

// LedgerHandler serves day-granular cash-flow ledgers.
type LedgerHandler struct {
	ledgerUC LedgerService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerUC LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerUC: ledgerUC}
}

// Member returns a member's ledger, optionally bounded by ?from= and ?to=.
func (h *LedgerHandler) Member(w http.ResponseWriter, r *http.Request) {
	memberID, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	q, ok := ledgerQuery(w, r)
	if !ok {
		return
	}

	days, err := h.ledgerUC.MemberLedger(r.Context(), memberID, q)
	if err != nil {
		writeDomainError(w, "failed to build ledger", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.LedgerFromDomain(days))
}

// Tenant returns the society-wide ledger.
func (h *LedgerHandler) Tenant(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	q, ok := ledgerQuery(w, r)
	if !ok {
		return
	}

	days, err := h.ledgerUC.TenantLedger(r.Context(), tenantID, q)
	if err != nil {
		writeDomainError(w, "failed to build ledger", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.LedgerFromDomain(days))
}

// Reconcile checks the tenant ledger. An inconsistent ledger is a 409 with
// the same body as a consistent one.
func (h *LedgerHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	report, err := h.ledgerUC.ReconcileTenant(r.Context(), tenantID)
	if err != nil {
		writeDomainError(w, "failed to reconcile ledger", err)
		return
	}

	status := http.StatusOK
	if !report.Consistent {
		status = http.StatusConflict
	}

	writeJSON(w, status, dto.ReconciliationFromUseCase(report))
}

func ledgerQuery(w http.ResponseWriter, r *http.Request) (usecase.LedgerQuery, bool) {
	from, err := parseDateQuery(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid query", err.Error())
		return usecase.LedgerQuery{}, false
	}

	to, err := parseDateQuery(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid query", err.Error())
		return usecase.LedgerQuery{}, false
	}

	return usecase.LedgerQuery{From: from, To: to}, true
}

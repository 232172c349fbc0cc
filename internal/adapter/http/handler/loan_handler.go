package handler

import (
	"context"
	"net/http"

	"github.com/iho/coopledger/internal/adapter/http/dto"
	"github.com/iho/coopledger/internal/domain"
	"github.com/iho/coopledger/internal/usecase"
)

// LoanService defines the behavior needed by LoanHandler.
type LoanService interface {
	CreateLoan(ctx context.Context, input usecase.CreateLoanInput) (*domain.Loan, error)
	GetLoan(ctx context.Context, id string) (*domain.Loan, error)
	ListMemberLoans(ctx context.Context, memberID string) ([]domain.Loan, error)
	Disburse(ctx context.Context, loanID string) (*domain.Loan, error)
	Reject(ctx context.Context, loanID string) (*domain.Loan, error)
	RecordInstallment(ctx context.Context, input usecase.RecordInstallmentInput) (*usecase.IngestResult, error)
	GetLoanLimit(ctx context.Context, memberID string) (*usecase.LoanLimit, error)
}

// LoanHandler handles loan origination and repayment requests.
type LoanHandler struct {
	loanUC LoanService
}

// NewLoanHandler creates a new LoanHandler.
func NewLoanHandler(loanUC LoanService) *LoanHandler {
	return &LoanHandler{loanUC: loanUC}
}

// Create records a loan application.
func (h *LoanHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateLoanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	input, err := req.ToUseCaseInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	loan, err := h.loanUC.CreateLoan(r.Context(), input)
	if err != nil {
		writeDomainError(w, "failed to create loan", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.LoanFromDomain(loan))
}

// Get retrieves a loan by ID.
func (h *LoanHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	loan, err := h.loanUC.GetLoan(r.Context(), id)
	if err != nil {
		writeDomainError(w, "failed to get loan", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.LoanFromDomain(loan))
}

// ListByMember lists a member's loans.
func (h *LoanHandler) ListByMember(w http.ResponseWriter, r *http.Request) {
	memberID, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	loans, err := h.loanUC.ListMemberLoans(r.Context(), memberID)
	if err != nil {
		writeDomainError(w, "failed to list loans", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListLoansResponse{
		Loans: dto.LoansFromDomain(loans),
		Total: int64(len(loans)),
	})
}

// Disburse pays out a pending loan.
func (h *LoanHandler) Disburse(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "failed to disburse loan", h.loanUC.Disburse)
}

// Reject declines a pending loan.
func (h *LoanHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "failed to reject loan", h.loanUC.Reject)
}

func (h *LoanHandler) transition(w http.ResponseWriter, r *http.Request, message string, fn func(context.Context, string) (*domain.Loan, error)) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	loan, err := fn(r.Context(), id)
	if err != nil {
		writeDomainError(w, message, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.LoanFromDomain(loan))
}

// RecordInstallment records an EMI against a loan and amortizes it.
func (h *LoanHandler) RecordInstallment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	var req dto.RecordInstallmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	input, err := req.ToUseCaseInput(id)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	result, err := h.loanUC.RecordInstallment(r.Context(), input)
	if err != nil {
		writeDomainError(w, "failed to record installment", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.IngestFromUseCase(result))
}

// Limit returns the member's qualifying deposit total and 80% borrowing cap.
func (h *LoanHandler) Limit(w http.ResponseWriter, r *http.Request) {
	memberID, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	limit, err := h.loanUC.GetLoanLimit(r.Context(), memberID)
	if err != nil {
		writeDomainError(w, "failed to compute loan limit", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.LoanLimitFromUseCase(limit))
}

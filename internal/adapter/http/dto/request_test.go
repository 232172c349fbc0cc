package dto

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/coopledger/internal/domain"
)

func TestIngestRecordRequest_ToUseCaseInput(t *testing.T) {
	loanID := "loan-1"

	tests := []struct {
		name        string
		request     *IngestRecordRequest
		expectError bool
	}{
		{
			name: "valid deposit",
			request: &IngestRecordRequest{
				TenantID:        "coop",
				MemberID:        "m-1",
				TransactionDate: "2024-03-05",
				Mode:            "Cash",
				DepositAmount:   "1000.50",
			},
		},
		{
			name: "rfc3339 date with installment",
			request: &IngestRecordRequest{
				TenantID:              "coop",
				MemberID:              "m-1",
				TransactionDate:       "2024-03-05T10:30:00+05:30",
				Kind:                  " EMI ",
				LoanReferenceID:       &loanID,
				LoanInstallmentAmount: "500",
			},
		},
		{
			name:        "missing date",
			request:     &IngestRecordRequest{TenantID: "coop", MemberID: "m-1", DepositAmount: "1"},
			expectError: true,
		},
		{
			name:        "malformed date",
			request:     &IngestRecordRequest{TransactionDate: "05/03/2024", DepositAmount: "1"},
			expectError: true,
		},
		{
			name:        "invalid amount",
			request:     &IngestRecordRequest{TransactionDate: "2024-03-05", DepositAmount: "ten"},
			expectError: true,
		},
		{
			name:        "sub-cent amount",
			request:     &IngestRecordRequest{TransactionDate: "2024-03-05", DepositAmount: "500.004"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.request.ToUseCaseInput()
			if tt.expectError {
				if !errors.Is(err, domain.ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.TransactionDate.Location() != time.UTC {
				t.Fatalf("expected UTC date, got %v", got.TransactionDate.Location())
			}
			if got.MemberID != tt.request.MemberID || got.TenantID != tt.request.TenantID {
				t.Fatalf("ids not carried over: %+v", got)
			}
		})
	}
}

func TestIngestRecordRequest_NormalizesKindAndAmounts(t *testing.T) {
	loanID := "loan-1"
	req := &IngestRecordRequest{
		TransactionDate:       "2024-03-05",
		Kind:                  " EMI ",
		LoanReferenceID:       &loanID,
		LoanInstallmentAmount: "500",
		InterestAmount:        "25.5",
	}

	got, err := req.ToUseCaseInput()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Kind != domain.KindEMI {
		t.Fatalf("expected kind emi, got %q", got.Kind)
	}
	if !got.LoanInstallmentAmount.Equal(decimal.NewFromInt(500)) || !got.InterestAmount.Equal(decimal.RequireFromString("25.5")) {
		t.Fatalf("unexpected amounts: %+v", got)
	}
	if !got.DepositAmount.IsZero() || !got.FineAmount.IsZero() {
		t.Fatalf("expected omitted amounts to be zero: %+v", got)
	}
	if got.LoanReferenceID == nil || *got.LoanReferenceID != "loan-1" {
		t.Fatalf("expected loan reference to be kept")
	}
}

func TestCreateLoanRequest_ToUseCaseInput(t *testing.T) {
	req := &CreateLoanRequest{MemberID: "m-1", PrincipalAmount: "800", InterestRatePercentPerMonth: "1"}

	got, err := req.ToUseCaseInput()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.MemberID != "m-1" || !got.PrincipalAmount.Equal(decimal.NewFromInt(800)) || !got.InterestRatePercentPerMonth.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("unexpected input: %+v", got)
	}

	req.PrincipalAmount = "lots"
	if _, err := req.ToUseCaseInput(); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseAmount_Precision(t *testing.T) {
	tests := []struct {
		value string
		want  string
		err   error
	}{
		{value: "", want: "0"},
		{value: " 500.5 ", want: "500.5"},
		{value: "500.00", want: "500"},
		{value: "500.000", want: "500"},
		{value: "500.004", err: domain.ErrAmountPrecision},
		{value: "0.001", err: domain.ErrAmountPrecision},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := ParseAmount("amount", tt.value)
			if tt.err != nil {
				if !errors.Is(err, tt.err) || !errors.Is(err, domain.ErrValidation) {
					t.Fatalf("expected %v, got %v", tt.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestCreateLoanRequest_RatePrecision(t *testing.T) {
	req := &CreateLoanRequest{MemberID: "m-1", PrincipalAmount: "800", InterestRatePercentPerMonth: "1.2345"}
	got, err := req.ToUseCaseInput()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.InterestRatePercentPerMonth.Equal(decimal.RequireFromString("1.2345")) {
		t.Fatalf("unexpected rate %s", got.InterestRatePercentPerMonth)
	}

	req.InterestRatePercentPerMonth = "1.23456"
	if _, err := req.ToUseCaseInput(); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	req.InterestRatePercentPerMonth = "1"
	req.PrincipalAmount = "800.001"
	if _, err := req.ToUseCaseInput(); !errors.Is(err, domain.ErrAmountPrecision) {
		t.Fatalf("expected precision error, got %v", err)
	}
}

func TestRecordInstallmentRequest_ToUseCaseInput(t *testing.T) {
	req := &RecordInstallmentRequest{Mode: "Cash", Amount: "500"}

	got, err := req.ToUseCaseInput("loan-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.LoanID != "loan-1" || !got.TransactionDate.IsZero() || !got.Amount.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("unexpected input: %+v", got)
	}

	req.TransactionDate = "2024-04-01"
	got, err = req.ToUseCaseInput("loan-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.TransactionDate.Equal(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date: %v", got.TransactionDate)
	}

	req.TransactionDate = "tomorrow"
	if _, err := req.ToUseCaseInput("loan-1"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestOverrideMaturityRequest_ToUseCaseInput(t *testing.T) {
	req := &OverrideMaturityRequest{AdjustedInterest: "120", LoanAdjustment: "300"}

	got, err := req.ToUseCaseInput("m-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.MemberID != "m-1" || got.Clear || !got.AdjustedInterest.Equal(decimal.NewFromInt(120)) || !got.LoanAdjustment.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("unexpected input: %+v", got)
	}

	clearReq := &OverrideMaturityRequest{AdjustedInterest: "not parsed", Clear: true}
	got, err = clearReq.ToUseCaseInput("m-1")
	if err != nil {
		t.Fatalf("clear should ignore amounts, got %v", err)
	}
	if !got.Clear || !got.AdjustedInterest.IsZero() {
		t.Fatalf("unexpected clear input: %+v", got)
	}
}

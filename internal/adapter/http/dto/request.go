package dto

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/coopledger/internal/domain"
	"github.com/iho/coopledger/internal/usecase"
)

// IngestRecordRequest represents a request to ingest a transaction record.
type IngestRecordRequest struct {
	LoanReferenceID       *string `json:"loan_reference_id,omitempty"`
	TenantID              string  `json:"tenant_id"`
	MemberID              string  `json:"member_id"`
	TransactionDate       string  `json:"transaction_date"`
	Mode                  string  `json:"mode"`
	Kind                  string  `json:"kind,omitempty"`
	DepositAmount         string  `json:"deposit_amount,omitempty"`
	LoanInstallmentAmount string  `json:"loan_installment_amount,omitempty"`
	InterestAmount        string  `json:"interest_amount,omitempty"`
	FineAmount            string  `json:"fine_amount,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *IngestRecordRequest) ToUseCaseInput() (usecase.IngestRecordInput, error) {
	date, err := ParseDate("transaction_date", r.TransactionDate)
	if err != nil {
		return usecase.IngestRecordInput{}, err
	}

	amounts, err := parseAmounts(map[string]string{
		"deposit_amount":          r.DepositAmount,
		"loan_installment_amount": r.LoanInstallmentAmount,
		"interest_amount":         r.InterestAmount,
		"fine_amount":             r.FineAmount,
	})
	if err != nil {
		return usecase.IngestRecordInput{}, err
	}

	return usecase.IngestRecordInput{
		TransactionDate:       date,
		LoanReferenceID:       r.LoanReferenceID,
		TenantID:              r.TenantID,
		MemberID:              r.MemberID,
		Mode:                  r.Mode,
		Kind:                  domain.TransactionKind(strings.ToLower(strings.TrimSpace(r.Kind))),
		DepositAmount:         amounts["deposit_amount"],
		LoanInstallmentAmount: amounts["loan_installment_amount"],
		InterestAmount:        amounts["interest_amount"],
		FineAmount:            amounts["fine_amount"],
	}, nil
}

// CreateLoanRequest represents a loan application.
type CreateLoanRequest struct {
	MemberID                    string `json:"member_id"`
	PrincipalAmount             string `json:"principal_amount"`
	InterestRatePercentPerMonth string `json:"interest_rate_percent_per_month"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateLoanRequest) ToUseCaseInput() (usecase.CreateLoanInput, error) {
	principal, err := ParseAmount("principal_amount", r.PrincipalAmount)
	if err != nil {
		return usecase.CreateLoanInput{}, err
	}

	rate, err := ParseRate("interest_rate_percent_per_month", r.InterestRatePercentPerMonth)
	if err != nil {
		return usecase.CreateLoanInput{}, err
	}

	return usecase.CreateLoanInput{
		MemberID:                    r.MemberID,
		PrincipalAmount:             principal,
		InterestRatePercentPerMonth: rate,
	}, nil
}

// RecordInstallmentRequest represents a repayment against a loan. An empty
// transaction date means today.
type RecordInstallmentRequest struct {
	TransactionDate string `json:"transaction_date,omitempty"`
	Mode            string `json:"mode"`
	Amount          string `json:"amount"`
	InterestAmount  string `json:"interest_amount,omitempty"`
	FineAmount      string `json:"fine_amount,omitempty"`
}

// ToUseCaseInput converts to use case input for loanID.
func (r *RecordInstallmentRequest) ToUseCaseInput(loanID string) (usecase.RecordInstallmentInput, error) {
	var date time.Time
	if r.TransactionDate != "" {
		parsed, err := ParseDate("transaction_date", r.TransactionDate)
		if err != nil {
			return usecase.RecordInstallmentInput{}, err
		}
		date = parsed
	}

	amounts, err := parseAmounts(map[string]string{
		"amount":          r.Amount,
		"interest_amount": r.InterestAmount,
		"fine_amount":     r.FineAmount,
	})
	if err != nil {
		return usecase.RecordInstallmentInput{}, err
	}

	return usecase.RecordInstallmentInput{
		TransactionDate: date,
		LoanID:          loanID,
		Mode:            r.Mode,
		Amount:          amounts["amount"],
		InterestAmount:  amounts["interest_amount"],
		FineAmount:      amounts["fine_amount"],
	}, nil
}

// OverrideMaturityRequest pins or clears a manual maturity override.
type OverrideMaturityRequest struct {
	AdjustedInterest string `json:"adjusted_interest,omitempty"`
	LoanAdjustment   string `json:"loan_adjustment,omitempty"`
	Clear            bool   `json:"clear,omitempty"`
}

// ToUseCaseInput converts to use case input for memberID.
func (r *OverrideMaturityRequest) ToUseCaseInput(memberID string) (usecase.OverrideInput, error) {
	input := usecase.OverrideInput{MemberID: memberID, Clear: r.Clear}
	if r.Clear {
		return input, nil
	}

	amounts, err := parseAmounts(map[string]string{
		"adjusted_interest": r.AdjustedInterest,
		"loan_adjustment":   r.LoanAdjustment,
	})
	if err != nil {
		return usecase.OverrideInput{}, err
	}

	input.AdjustedInterest = amounts["adjusted_interest"]
	input.LoanAdjustment = amounts["loan_adjustment"]

	return input, nil
}

// ParseAmount parses a money amount with at most two decimal places. An
// empty string is zero.
func ParseAmount(field, value string) (decimal.Decimal, error) {
	d, err := parseDecimal(field, value)
	if err != nil {
		return decimal.Zero, err
	}
	if err := domain.ValidateMoneyScale(d); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s", err, field)
	}
	return d, nil
}

// ParseRate parses a percentage rate with at most four decimal places. An
// empty string is zero.
func ParseRate(field, value string) (decimal.Decimal, error) {
	d, err := parseDecimal(field, value)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.Equal(d.Round(domain.RateScale)) {
		return decimal.Zero, fmt.Errorf("%w: %s carries more than %d decimal places", domain.ErrValidation, field, domain.RateScale)
	}
	return d, nil
}

func parseDecimal(field, value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, nil
	}

	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s is not a decimal number", domain.ErrValidation, field)
	}
	return d, nil
}

// ParseDate parses a calendar date (YYYY-MM-DD) or an RFC 3339 timestamp
// into UTC.
func ParseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: %s is required", domain.ErrValidation, field)
	}

	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}

	return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", domain.ErrValidation, field)
}

func parseAmounts(fields map[string]string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(fields))
	for field, value := range fields {
		d, err := ParseAmount(field, value)
		if err != nil {
			return nil, err
		}
		out[field] = d
	}
	return out, nil
}

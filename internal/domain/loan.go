package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// LoanStatus is the lifecycle state of a loan.
type LoanStatus string

const (
	LoanStatusPending  LoanStatus = "pending"
	LoanStatusActive   LoanStatus = "active"
	LoanStatusClosed   LoanStatus = "closed"
	LoanStatusRejected LoanStatus = "rejected"
)

// IsTerminal reports whether no further transitions are possible.
func (s LoanStatus) IsTerminal() bool {
	return s == LoanStatusClosed || s == LoanStatusRejected
}

// Loan is a member loan amortized on the reducing-balance method.
type Loan struct {
	CreatedAt                   time.Time
	UpdatedAt                   time.Time
	DisbursedDate               *time.Time
	NextDueDate                 *time.Time
	ID                          string
	TenantID                    string
	MemberID                    string
	Status                      LoanStatus
	PrincipalAmount             decimal.Decimal
	InterestRatePercentPerMonth decimal.Decimal
	RemainingBalance            decimal.Decimal
}

// Validate checks a loan application before it is stored.
func (l *Loan) Validate() error {
	if strings.TrimSpace(l.MemberID) == "" {
		return ErrMissingMember
	}
	if err := ValidatePrincipal(l.PrincipalAmount); err != nil {
		return err
	}
	return ValidateMonthlyRate(l.InterestRatePercentPerMonth)
}

// IsDisbursed reports whether money has left the society for this loan.
func (l Loan) IsDisbursed() bool {
	return l.DisbursedDate != nil
}

// Disburse moves a pending loan to active with the full principal outstanding.
// The first installment falls due one calendar month after disbursement.
func (l Loan) Disburse(now time.Time) (Loan, error) {
	if l.Status != LoanStatusPending {
		return l, ErrLoanNotPending
	}

	disbursed := now
	due := AddMonths(now, 1)

	l.Status = LoanStatusActive
	l.RemainingBalance = l.PrincipalAmount
	l.DisbursedDate = &disbursed
	l.NextDueDate = &due
	l.UpdatedAt = now

	return l, nil
}

// Reject moves a pending loan to rejected.
func (l Loan) Reject(now time.Time) (Loan, error) {
	if l.Status != LoanStatusPending {
		return l, ErrLoanNotPending
	}

	l.Status = LoanStatusRejected
	l.RemainingBalance = decimal.Zero
	l.UpdatedAt = now

	return l, nil
}

// InstallmentSplit is how one installment divides between interest and
// principal.
type InstallmentSplit struct {
	Amount           decimal.Decimal
	InterestDue      decimal.Decimal
	InterestPaid     decimal.Decimal
	PrincipalPortion decimal.Decimal
	Excess           decimal.Decimal
	BalanceBefore    decimal.Decimal
	BalanceAfter     decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// SplitInstallment applies the reducing-balance rule: interest for the month
// is charged on the current balance, the remainder of the installment reduces
// principal, and the balance never goes below zero.
func SplitInstallment(balance, ratePercentPerMonth, amount decimal.Decimal) InstallmentSplit {
	interestDue := balance.Mul(ratePercentPerMonth).Div(hundred).Round(2)

	principal := decimal.Max(decimal.Zero, amount.Sub(interestDue))
	interestPaid := amount.Sub(principal)

	after := balance.Sub(principal)
	excess := decimal.Zero
	if after.IsNegative() {
		excess = after.Neg()
		after = decimal.Zero
	}

	return InstallmentSplit{
		Amount:           amount,
		InterestDue:      interestDue,
		InterestPaid:     interestPaid,
		PrincipalPortion: principal.Sub(excess),
		Excess:           excess,
		BalanceBefore:    balance,
		BalanceAfter:     after,
	}
}

// ApplyInstallment reduces the loan by the record's installment. The loan must
// be active and the record must reference it. A loan whose balance reaches
// zero is closed; otherwise the next due date moves one month forward.
func (l Loan) ApplyInstallment(r TransactionRecord) (Loan, InstallmentSplit, error) {
	if !r.LoanInstallmentAmount.IsPositive() {
		return l, InstallmentSplit{}, ErrInvalidInstallment
	}

	if r.LoanReferenceID != nil && *r.LoanReferenceID != l.ID {
		return l, InstallmentSplit{}, ErrLoanMismatch
	}

	if r.MemberID != "" && r.MemberID != l.MemberID {
		return l, InstallmentSplit{}, ErrMemberMismatch
	}

	if l.Status != LoanStatusActive {
		return l, InstallmentSplit{}, ErrLoanNotActive
	}

	split := SplitInstallment(l.RemainingBalance, l.InterestRatePercentPerMonth, r.LoanInstallmentAmount)
	l.RemainingBalance = split.BalanceAfter

	if l.RemainingBalance.IsZero() {
		l.Status = LoanStatusClosed
		l.NextDueDate = nil
		return l, split, nil
	}

	base := r.TransactionDate
	if l.NextDueDate != nil {
		base = *l.NextDueDate
	}
	next := AddMonths(base, 1)
	l.NextDueDate = &next

	return l, split, nil
}

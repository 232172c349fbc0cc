package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// MemberSummary is a member's financial position.
type MemberSummary struct {
	LastActivity         *time.Time
	MemberID             string
	MemberName           string
	MaturityStatus       MaturityStatus
	TotalDeposits        decimal.Decimal
	LoanTaken            decimal.Decimal
	PrincipalPaid        decimal.Decimal
	InterestPaid         decimal.Decimal
	ActiveLoanBalance    decimal.Decimal
	NetWorth             decimal.Decimal
	TotalFines           decimal.Decimal
	LedgerClosingBalance decimal.Decimal
	EightyPercentLimit   decimal.Decimal
	MaturityAmount       decimal.Decimal
	ActiveLoans          int
}

// SummaryInput gathers everything Summarize reads. Any field may be empty.
type SummaryInput struct {
	Member   Member
	Records  []TransactionRecord
	Ledger   []LedgerDay
	Loans    []Loan
	Maturity *MaturityRecord
}

// Summarize aggregates a member's records, ledger, loans and maturity into a
// MemberSummary. It never fails; missing inputs contribute zero.
//
// Principal and interest paid are recovered by replaying each disbursed loan's
// installment records in date order through SplitInstallment, starting from
// the full principal.
func Summarize(in SummaryInput) MemberSummary {
	s := MemberSummary{
		MemberID:             in.Member.ID,
		MemberName:           in.Member.Name,
		TotalDeposits:        QualifyingDepositTotal(in.Records),
		LoanTaken:            decimal.Zero,
		PrincipalPaid:        decimal.Zero,
		InterestPaid:         decimal.Zero,
		ActiveLoanBalance:    decimal.Zero,
		TotalFines:           decimal.Zero,
		LedgerClosingBalance: decimal.Zero,
		MaturityAmount:       decimal.Zero,
	}
	s.EightyPercentLimit = EightyPercentLimit(s.TotalDeposits)

	for _, r := range in.Records {
		s.TotalFines = s.TotalFines.Add(r.FineAmount)

		if s.LastActivity == nil || r.TransactionDate.After(*s.LastActivity) {
			last := r.TransactionDate
			s.LastActivity = &last
		}
	}

	if n := len(in.Ledger); n > 0 {
		s.LedgerClosingBalance = in.Ledger[n-1].RunningBalance
	}

	for _, l := range in.Loans {
		if l.Status == LoanStatusActive {
			s.ActiveLoanBalance = s.ActiveLoanBalance.Add(l.RemainingBalance)
			s.ActiveLoans++
		}

		if !l.IsDisbursed() {
			continue
		}

		s.LoanTaken = s.LoanTaken.Add(l.PrincipalAmount)

		principal, interest := replayInstallments(l, in.Records)
		s.PrincipalPaid = s.PrincipalPaid.Add(principal)
		s.InterestPaid = s.InterestPaid.Add(interest)
	}

	s.NetWorth = s.TotalDeposits.Sub(s.ActiveLoanBalance).Add(s.InterestPaid)

	if in.Maturity != nil {
		s.MaturityStatus = in.Maturity.Status
		s.MaturityAmount = in.Maturity.MaturityAmount()
	}

	return s
}

func replayInstallments(loan Loan, records []TransactionRecord) (decimal.Decimal, decimal.Decimal) {
	installments := make([]TransactionRecord, 0)
	for _, r := range records {
		if r.ReferencesLoan(loan.ID) && r.LoanInstallmentAmount.IsPositive() {
			installments = append(installments, r)
		}
	}

	sort.SliceStable(installments, func(i, j int) bool {
		if !installments[i].TransactionDate.Equal(installments[j].TransactionDate) {
			return installments[i].TransactionDate.Before(installments[j].TransactionDate)
		}
		return installments[i].ID < installments[j].ID
	})

	principalPaid := decimal.Zero
	interestPaid := decimal.Zero
	balance := loan.PrincipalAmount

	for _, r := range installments {
		if balance.IsZero() {
			break
		}

		split := SplitInstallment(balance, loan.InterestRatePercentPerMonth, r.LoanInstallmentAmount)
		principalPaid = principalPaid.Add(split.PrincipalPortion)
		interestPaid = interestPaid.Add(split.InterestPaid)
		balance = split.BalanceAfter
	}

	return principalPaid, interestPaid
}

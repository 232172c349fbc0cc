package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// LedgerDay is the derived cash-flow row for one calendar date. It is
// recomputed from records on demand and never stored as a source of truth.
type LedgerDay struct {
	Date               time.Time
	DepositTotal       decimal.Decimal
	EMITotal           decimal.Decimal
	LoanDisbursedTotal decimal.Decimal
	InterestTotal      decimal.Decimal
	FineTotal          decimal.Decimal
	CashIn             decimal.Decimal
	CashOut            decimal.Decimal
	NetFlow            decimal.Decimal
	RunningBalance     decimal.Decimal
}

func (d *LedgerDay) add(r TransactionRecord) {
	if r.EffectiveKind() == KindDisbursement {
		d.LoanDisbursedTotal = d.LoanDisbursedTotal.Add(r.DepositAmount)
	} else {
		d.DepositTotal = d.DepositTotal.Add(r.DepositAmount)
	}

	d.EMITotal = d.EMITotal.Add(r.LoanInstallmentAmount)
	d.InterestTotal = d.InterestTotal.Add(r.InterestAmount)
	d.FineTotal = d.FineTotal.Add(r.FineAmount)
}

// BuildLedger folds records into one LedgerDay per distinct transaction date,
// ascending, with a running balance seeded at zero. Input order does not
// matter and the input slice is not modified.
func BuildLedger(records []TransactionRecord) []LedgerDay {
	if len(records) == 0 {
		return []LedgerDay{}
	}

	byDate := make(map[time.Time]*LedgerDay)
	for _, r := range records {
		date := DateOf(r.TransactionDate)

		day, ok := byDate[date]
		if !ok {
			day = &LedgerDay{Date: date}
			byDate[date] = day
		}

		day.add(r)
	}

	days := make([]LedgerDay, 0, len(byDate))
	for _, day := range byDate {
		days = append(days, *day)
	}

	sort.Slice(days, func(i, j int) bool {
		return days[i].Date.Before(days[j].Date)
	})

	running := decimal.Zero
	for i := range days {
		day := &days[i]
		day.CashIn = day.DepositTotal.Add(day.EMITotal).Add(day.InterestTotal).Add(day.FineTotal)
		day.CashOut = day.LoanDisbursedTotal
		day.NetFlow = day.CashIn.Sub(day.CashOut)

		running = running.Add(day.NetFlow)
		day.RunningBalance = running
	}

	return days
}

// LedgerTotals summarizes a ledger for reconciliation.
type LedgerTotals struct {
	Days           int
	CashIn         decimal.Decimal
	CashOut        decimal.Decimal
	NetFlow        decimal.Decimal
	ClosingBalance decimal.Decimal
}

// ReconcileLedger recomputes the invariants of a built ledger: every day's
// cash columns agree with its component totals, each running balance extends
// the previous one by that day's net flow, and the closing balance equals
// total cash in minus total cash out.
func ReconcileLedger(days []LedgerDay) (LedgerTotals, error) {
	totals := LedgerTotals{Days: len(days)}

	previous := decimal.Zero
	for _, day := range days {
		cashIn := day.DepositTotal.Add(day.EMITotal).Add(day.InterestTotal).Add(day.FineTotal)
		if !cashIn.Equal(day.CashIn) || !day.CashOut.Equal(day.LoanDisbursedTotal) {
			return totals, fmt.Errorf("%w: cash columns disagree on %s", ErrLedgerUnbalanced, day.Date.Format(time.DateOnly))
		}

		if !day.NetFlow.Equal(day.CashIn.Sub(day.CashOut)) {
			return totals, fmt.Errorf("%w: net flow disagrees on %s", ErrLedgerUnbalanced, day.Date.Format(time.DateOnly))
		}

		if !day.RunningBalance.Equal(previous.Add(day.NetFlow)) {
			return totals, fmt.Errorf("%w: running balance breaks on %s", ErrLedgerUnbalanced, day.Date.Format(time.DateOnly))
		}

		previous = day.RunningBalance
		totals.CashIn = totals.CashIn.Add(day.CashIn)
		totals.CashOut = totals.CashOut.Add(day.CashOut)
		totals.NetFlow = totals.NetFlow.Add(day.NetFlow)
	}

	totals.ClosingBalance = previous
	if !totals.ClosingBalance.Equal(totals.CashIn.Sub(totals.CashOut)) {
		return totals, ErrLedgerUnbalanced
	}

	return totals, nil
}

// FilterLedger returns the days within [from, to]; zero bounds are open.
// Running balances are kept as computed over the full history.
func FilterLedger(days []LedgerDay, from, to time.Time) []LedgerDay {
	out := make([]LedgerDay, 0, len(days))
	for _, day := range days {
		if !from.IsZero() && day.Date.Before(DateOf(from)) {
			continue
		}
		if !to.IsZero() && day.Date.After(DateOf(to)) {
			continue
		}
		out = append(out, day)
	}
	return out
}

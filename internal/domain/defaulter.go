package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Severity grades how far behind a defaulting loan is.
type Severity string

const (
	SeverityWatch    Severity = "Watch"
	SeverityCritical Severity = "Critical"
)

// CriticalOverdueDays is the overdue threshold above which a loan is Critical.
const CriticalOverdueDays = 60

// DefaulterEntry is one overdue loan.
type DefaulterEntry struct {
	DueDate          time.Time
	MemberID         string
	LoanID           string
	Severity         Severity
	PrincipalAmount  decimal.Decimal
	RemainingBalance decimal.Decimal
	DaysOverdue      int
}

// ClassifyDefaulters lists active loans whose next due date is at least one
// whole day behind now and which still carry a balance, worst first.
func ClassifyDefaulters(loans []Loan, now time.Time) []DefaulterEntry {
	entries := make([]DefaulterEntry, 0)

	for _, l := range loans {
		if l.Status != LoanStatusActive || l.NextDueDate == nil || !l.RemainingBalance.IsPositive() {
			continue
		}
		if !l.NextDueDate.Before(now) {
			continue
		}

		days := DaysBetween(*l.NextDueDate, now)
		if days < 1 {
			continue
		}

		severity := SeverityWatch
		if days > CriticalOverdueDays {
			severity = SeverityCritical
		}

		entries = append(entries, DefaulterEntry{
			DueDate:          *l.NextDueDate,
			MemberID:         l.MemberID,
			LoanID:           l.ID,
			Severity:         severity,
			PrincipalAmount:  l.PrincipalAmount,
			RemainingBalance: l.RemainingBalance,
			DaysOverdue:      days,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].DaysOverdue != entries[j].DaysOverdue {
			return entries[i].DaysOverdue > entries[j].DaysOverdue
		}
		return entries[i].LoanID < entries[j].LoanID
	})

	return entries
}

// DefaulterReportRow is an entry joined with the member registry.
type DefaulterReportRow struct {
	DefaulterEntry
	MemberName string
	Phone      string
}

// BuildDefaulterReport attaches member names and phones to entries, keeping
// their order. Unknown members are reported with empty contact fields.
func BuildDefaulterReport(entries []DefaulterEntry, members map[string]Member) []DefaulterReportRow {
	rows := make([]DefaulterReportRow, 0, len(entries))
	for _, e := range entries {
		m := members[e.MemberID]
		rows = append(rows, DefaulterReportRow{
			DefaulterEntry: e,
			MemberName:     m.Name,
			Phone:          m.Phone,
		})
	}
	return rows
}

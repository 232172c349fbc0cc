package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MaturityCycleMonths is the length of a deposit maturity cycle.
const MaturityCycleMonths = 36

var (
	// CycleInterestRate is the flat interest paid over a full cycle.
	CycleInterestRate = decimal.RequireFromString("0.12")

	// MonthlyInterestRate is the cycle rate spread evenly over the cycle: the
	// fraction of a deposit earned per cycle month (0.12 / 36, about 0.00333),
	// so 36 months earn exactly CycleInterestRate. It is the same for every
	// member and unrelated to loan rates.
	MonthlyInterestRate = CycleInterestRate.Div(decimal.NewFromInt(MaturityCycleMonths))

	cycleMonths = decimal.NewFromInt(MaturityCycleMonths)
)

// MaturityStatus is the state of a member's maturity cycle.
type MaturityStatus string

const (
	MaturityStatusActive  MaturityStatus = "active"
	MaturityStatusMatured MaturityStatus = "matured"
	MaturityStatusClaimed MaturityStatus = "claimed"
)

// MaturityRecord is the persisted projection of a member's deposits over the
// maturity cycle. It is recomputed in place, never recreated.
type MaturityRecord struct {
	StartDate           time.Time
	MaturityDate        time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
	ClaimedAt           *time.Time
	ID                  string
	TenantID            string
	MemberID            string
	Status              MaturityStatus
	TotalDeposit        decimal.Decimal
	MonthlyInterestRate decimal.Decimal
	CurrentInterest     decimal.Decimal
	FullInterest        decimal.Decimal
	AdjustedInterest    decimal.Decimal
	LoanAdjustment      decimal.Decimal
	MonthsCompleted     int
	RemainingMonths     int
	ManualOverride      bool
}

// MaturityAmount is what the society owes the member at the end of the cycle.
func (m MaturityRecord) MaturityAmount() decimal.Decimal {
	return m.TotalDeposit.Add(m.AdjustedInterest)
}

// Equal compares every computed and admin-set field. Identity and timestamps
// other than ClaimedAt are ignored, so an unchanged projection compares equal
// to the stored row.
func (m MaturityRecord) Equal(other MaturityRecord) bool {
	if (m.ClaimedAt == nil) != (other.ClaimedAt == nil) {
		return false
	}
	if m.ClaimedAt != nil && !m.ClaimedAt.Equal(*other.ClaimedAt) {
		return false
	}

	return m.MemberID == other.MemberID &&
		m.Status == other.Status &&
		m.StartDate.Equal(other.StartDate) &&
		m.MaturityDate.Equal(other.MaturityDate) &&
		m.MonthsCompleted == other.MonthsCompleted &&
		m.RemainingMonths == other.RemainingMonths &&
		m.ManualOverride == other.ManualOverride &&
		m.TotalDeposit.Equal(other.TotalDeposit) &&
		m.MonthlyInterestRate.Equal(other.MonthlyInterestRate) &&
		m.CurrentInterest.Equal(other.CurrentInterest) &&
		m.FullInterest.Equal(other.FullInterest) &&
		m.AdjustedInterest.Equal(other.AdjustedInterest) &&
		m.LoanAdjustment.Equal(other.LoanAdjustment)
}

// ProjectMaturity computes a member's maturity record from their records as of
// now. existing may be nil; when given, its identity, manual override, loan
// adjustment and claim carry over unchanged.
//
// Records that are loan-related or carry no deposit are ignored. A member with
// no qualifying deposit gets ErrNoQualifyingDeposits and must be skipped.
func ProjectMaturity(memberID string, records []TransactionRecord, existing *MaturityRecord, now time.Time) (MaturityRecord, error) {
	total := decimal.Zero
	var start time.Time

	for _, r := range records {
		if r.MemberID != "" && r.MemberID != memberID {
			continue
		}
		if !r.DepositAmount.IsPositive() || r.LoanRelated() {
			continue
		}

		total = total.Add(r.DepositAmount)

		date := DateOf(r.TransactionDate)
		if start.IsZero() || date.Before(start) {
			start = date
		}
	}

	if start.IsZero() {
		return MaturityRecord{}, ErrNoQualifyingDeposits
	}

	months := MonthsBetween(start, now)

	rec := MaturityRecord{
		MemberID:            memberID,
		TotalDeposit:        total,
		StartDate:           start,
		MaturityDate:        AddMonths(start, MaturityCycleMonths),
		MonthsCompleted:     months,
		RemainingMonths:     max(0, MaturityCycleMonths-months),
		MonthlyInterestRate: MonthlyInterestRate,
		CurrentInterest:     total.Mul(CycleInterestRate).Mul(decimal.NewFromInt(int64(months))).Div(cycleMonths).Round(2),
		FullInterest:        total.Mul(CycleInterestRate).Round(2),
		LoanAdjustment:      decimal.Zero,
	}
	rec.AdjustedInterest = rec.FullInterest

	if existing != nil {
		rec.ID = existing.ID
		rec.TenantID = existing.TenantID
		rec.CreatedAt = existing.CreatedAt
		rec.UpdatedAt = existing.UpdatedAt

		if existing.ManualOverride {
			rec.ManualOverride = true
			rec.AdjustedInterest = existing.AdjustedInterest
			rec.LoanAdjustment = existing.LoanAdjustment
		}

		if existing.ClaimedAt != nil {
			claimed := *existing.ClaimedAt
			rec.ClaimedAt = &claimed
		}
	}

	rec.Status = rec.deriveStatus()

	return rec, nil
}

func (m MaturityRecord) deriveStatus() MaturityStatus {
	switch {
	case m.ClaimedAt != nil:
		return MaturityStatusClaimed
	case m.MonthsCompleted >= MaturityCycleMonths:
		return MaturityStatusMatured
	default:
		return MaturityStatusActive
	}
}

// ApplyOverride pins the adjusted interest and loan adjustment so later
// projections keep them. A claimed record cannot be changed.
func (m MaturityRecord) ApplyOverride(adjustedInterest, loanAdjustment decimal.Decimal) (MaturityRecord, error) {
	if m.Status == MaturityStatusClaimed {
		return m, ErrMaturityClaimed
	}
	if adjustedInterest.IsNegative() || loanAdjustment.IsNegative() {
		return m, ErrInvalidOverride
	}
	if err := ValidateMoneyScale(adjustedInterest); err != nil {
		return m, err
	}
	if err := ValidateMoneyScale(loanAdjustment); err != nil {
		return m, err
	}

	m.ManualOverride = true
	m.AdjustedInterest = adjustedInterest
	m.LoanAdjustment = loanAdjustment

	return m, nil
}

// ClearOverride drops a manual override and returns to the computed interest.
func (m MaturityRecord) ClearOverride() (MaturityRecord, error) {
	if m.Status == MaturityStatusClaimed {
		return m, ErrMaturityClaimed
	}

	m.ManualOverride = false
	m.AdjustedInterest = m.FullInterest
	m.LoanAdjustment = decimal.Zero

	return m, nil
}

// Claim marks a matured record as paid out. Claimed is terminal. The status
// turns matured once 36 month boundaries have passed, which can be up to a
// month before MaturityDate, so the payout also waits for that date.
func (m MaturityRecord) Claim(now time.Time) (MaturityRecord, error) {
	switch m.Status {
	case MaturityStatusClaimed:
		return m, ErrMaturityClaimed
	case MaturityStatusMatured:
	default:
		return m, ErrMaturityNotMatured
	}

	if DateOf(now).Before(DateOf(m.MaturityDate)) {
		return m, fmt.Errorf("%w: matures on %s", ErrMaturityNotMatured, m.MaturityDate.Format(time.DateOnly))
	}

	claimed := now
	m.ClaimedAt = &claimed
	m.Status = MaturityStatusClaimed

	return m, nil
}

// MaturityReportRow is one line of the maturity report.
type MaturityReportRow struct {
	JoinDate          time.Time
	MaturityDate      time.Time
	MemberID          string
	MemberName        string
	Status            MaturityStatus
	CurrentDeposit    decimal.Decimal
	TargetDeposit     decimal.Decimal
	ProjectedInterest decimal.Decimal
	MaturityAmount    decimal.Decimal
	OutstandingLoan   decimal.Decimal
	NetPayable        decimal.Decimal
}

// BuildMaturityReportRow joins a maturity record with the member and their
// loans. OutstandingLoan is the balance of active loans plus the admin loan
// adjustment; NetPayable may go negative when loans exceed the payout.
func BuildMaturityReportRow(member Member, rec MaturityRecord, loans []Loan) MaturityReportRow {
	outstanding := rec.LoanAdjustment
	for _, l := range loans {
		if l.MemberID == member.ID && l.Status == LoanStatusActive {
			outstanding = outstanding.Add(l.RemainingBalance)
		}
	}

	target := member.TargetDeposit()
	if target.IsZero() {
		target = rec.TotalDeposit
	}

	amount := rec.MaturityAmount()

	return MaturityReportRow{
		MemberID:          member.ID,
		MemberName:        member.Name,
		JoinDate:          member.JoinDate,
		MaturityDate:      rec.MaturityDate,
		Status:            rec.Status,
		CurrentDeposit:    rec.TotalDeposit,
		TargetDeposit:     target,
		ProjectedInterest: rec.AdjustedInterest,
		MaturityAmount:    amount,
		OutstandingLoan:   outstanding,
		NetPayable:        amount.Sub(outstanding),
	}
}

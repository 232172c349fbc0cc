package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Member is a society member as known to the registry. The engine only reads
// members; registration happens elsewhere.
type Member struct {
	JoinDate            time.Time
	CreatedAt           time.Time
	ID                  string
	TenantID            string
	Name                string
	Phone               string
	MonthlyContribution decimal.Decimal
}

// TargetDeposit is the amount the member commits to over one maturity cycle.
func (m Member) TargetDeposit() decimal.Decimal {
	return m.MonthlyContribution.Mul(decimal.NewFromInt(MaturityCycleMonths))
}

// Validate checks member fields.
func (m *Member) Validate() error {
	if m.TenantID == "" {
		return ErrMissingTenant
	}
	if m.MonthlyContribution.IsNegative() {
		return ErrNegativeAmount
	}
	return ValidateMemberName(m.Name)
}

package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Validation constants
const (
	// MoneyScale is the number of decimal places money is stored with.
	MoneyScale = 2
	// RateScale is the number of decimal places a loan rate is stored with.
	RateScale = 4

	MaxModeLength         = 120
	MaxNameLength         = 255
	MaxLoanPrincipal      = "1000000000" // 1 billion
	MaxMonthlyRatePercent = "10"
)

// ValidateMode validates the free-text channel label.
func ValidateMode(mode string) error {
	if utf8.RuneCountInString(mode) > MaxModeLength {
		return ErrModeTooLong
	}
	return nil
}

// ValidateMoneyScale rejects amounts with more decimal places than the store
// keeps, so nothing is rounded silently on write.
func ValidateMoneyScale(amount decimal.Decimal) error {
	if !amount.Equal(amount.Round(MoneyScale)) {
		return ErrAmountPrecision
	}
	return nil
}

// ValidatePrincipal validates a requested loan principal.
func ValidatePrincipal(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidPrincipal
	}
	if err := ValidateMoneyScale(amount); err != nil {
		return err
	}

	maxAmount, _ := decimal.NewFromString(MaxLoanPrincipal)
	if amount.GreaterThan(maxAmount) {
		return fmt.Errorf("%w: maximum principal is %s", ErrInvalidPrincipal, MaxLoanPrincipal)
	}

	return nil
}

// ValidateMonthlyRate validates a loan's interest rate in percent per month.
func ValidateMonthlyRate(rate decimal.Decimal) error {
	maxRate, _ := decimal.NewFromString(MaxMonthlyRatePercent)
	if rate.IsNegative() || rate.GreaterThan(maxRate) {
		return fmt.Errorf("%w: must be between 0 and %s", ErrInvalidRate, MaxMonthlyRatePercent)
	}
	if !rate.Equal(rate.Round(RateScale)) {
		return fmt.Errorf("%w: at most %d decimal places", ErrInvalidRate, RateScale)
	}
	return nil
}

// ValidateMemberName validates a member display name.
func ValidateMemberName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: member name cannot be empty", ErrValidation)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: member name exceeds %d characters", ErrValidation, MaxNameLength)
	}
	return nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int, error) {
	const MaxPageSize = 1000
	const DefaultPageSize = 50

	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset, nil
}

package postgres

import (
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

func sqlPattern(fragment string) string {
	return regexp.QuoteMeta(fragment)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func utcDay(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func strPtr(s string) *string {
	return &s
}

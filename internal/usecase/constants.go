package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking tables
	DefaultTransactionTimeout = 10 * time.Second

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour

	// DefaultSummaryCacheTTL is how long a member summary stays cached
	DefaultSummaryCacheTTL = 10 * time.Minute

	// DefaultMaturityWorkers bounds concurrent members in a maturity batch
	DefaultMaturityWorkers = 8

	// systemActor is recorded in audit logs when no admin is in context
	systemActor = "system"
)

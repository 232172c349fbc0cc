package domain

import (
	"errors"
	"fmt"
)

var (
	// Error families. Concrete errors wrap one of these so callers can branch
	// with errors.Is without knowing every case.
	ErrValidation   = errors.New("validation failed")
	ErrInvalidState = errors.New("invalid state")

	// Record errors
	ErrRecordNotFound   = errors.New("transaction record not found")
	ErrMissingMember    = fmt.Errorf("%w: member id is required", ErrValidation)
	ErrNegativeAmount   = fmt.Errorf("%w: amounts must not be negative", ErrValidation)
	ErrAmountPrecision  = fmt.Errorf("%w: amounts carry at most %d decimal places", ErrValidation, MoneyScale)
	ErrEmptyRecord      = fmt.Errorf("%w: record carries no amount", ErrValidation)
	ErrMemberMismatch   = fmt.Errorf("%w: record belongs to another member", ErrValidation)
	ErrInvalidKind      = fmt.Errorf("%w: unknown transaction kind", ErrValidation)
	ErrKindConflict     = fmt.Errorf("%w: kind files loan money as a non-loan record", ErrValidation)
	ErrMissingDate      = fmt.Errorf("%w: transaction date is required", ErrValidation)
	ErrModeTooLong      = fmt.Errorf("%w: mode exceeds %d characters", ErrValidation, MaxModeLength)
	ErrMemberNotFound   = errors.New("member not found")
	ErrTenantMismatch   = fmt.Errorf("%w: member belongs to another tenant", ErrValidation)
	ErrMissingTenant    = fmt.Errorf("%w: tenant id is required", ErrValidation)
	ErrLedgerUnbalanced = errors.New("ledger is inconsistent: running balance does not match net flow")

	// Loan errors
	ErrLoanNotFound       = errors.New("loan not found")
	ErrInvalidInstallment = fmt.Errorf("%w: installment amount must be positive", ErrValidation)
	ErrLoanMismatch       = fmt.Errorf("%w: record does not reference this loan", ErrValidation)
	ErrInvalidPrincipal   = fmt.Errorf("%w: principal must be positive", ErrValidation)
	ErrInvalidRate        = fmt.Errorf("%w: monthly interest rate out of range", ErrValidation)
	ErrLoanLimitExceeded  = fmt.Errorf("%w: principal exceeds 80%% of qualifying deposits", ErrValidation)
	ErrMissingLoanRef     = fmt.Errorf("%w: installment requires a loan reference", ErrValidation)
	ErrUnknownLoanRef     = fmt.Errorf("%w: referenced loan does not exist", ErrValidation)
	ErrLoanNotActive      = fmt.Errorf("%w: loan is not active", ErrInvalidState)
	ErrLoanNotPending     = fmt.Errorf("%w: loan is not pending", ErrInvalidState)

	// Maturity errors
	ErrMaturityNotFound     = errors.New("maturity record not found")
	ErrNoQualifyingDeposits = errors.New("member has no qualifying deposits")
	ErrInvalidOverride      = fmt.Errorf("%w: adjusted interest and loan adjustment must not be negative", ErrValidation)
	ErrMaturityClaimed      = fmt.Errorf("%w: maturity already claimed", ErrInvalidState)
	ErrMaturityNotMatured   = fmt.Errorf("%w: maturity cycle not completed", ErrInvalidState)
)

package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind is the canonical classification of a record, assigned once
// at ingestion.
type TransactionKind string

const (
	KindDeposit      TransactionKind = "deposit"
	KindEMI          TransactionKind = "emi"
	KindDisbursement TransactionKind = "disbursement"
	KindInterest     TransactionKind = "interest"
	KindFine         TransactionKind = "fine"
	KindDonation     TransactionKind = "donation"
	KindAdjustment   TransactionKind = "adjustment"
)

var validKinds = map[TransactionKind]bool{
	KindDeposit:      true,
	KindEMI:          true,
	KindDisbursement: true,
	KindInterest:     true,
	KindFine:         true,
	KindDonation:     true,
	KindAdjustment:   true,
}

// IsValid reports whether k is a known kind.
func (k TransactionKind) IsValid() bool {
	return validKinds[k]
}

// IsLoanRelated reports whether the kind moves loan money.
func (k TransactionKind) IsLoanRelated() bool {
	return k == KindEMI || k == KindDisbursement
}

// TransactionRecord is one immutable row of the append-only transaction log.
type TransactionRecord struct {
	TransactionDate       time.Time
	CreatedAt             time.Time
	LoanReferenceID       *string
	ID                    string
	TenantID              string
	MemberID              string
	Mode                  string
	Kind                  TransactionKind
	DepositAmount         decimal.Decimal
	LoanInstallmentAmount decimal.Decimal
	InterestAmount        decimal.Decimal
	FineAmount            decimal.Decimal
	NeedsReview           bool
}

// Validate checks the record invariants.
func (r *TransactionRecord) Validate() error {
	if strings.TrimSpace(r.MemberID) == "" {
		return ErrMissingMember
	}

	if r.TransactionDate.IsZero() {
		return ErrMissingDate
	}

	if err := ValidateMode(r.Mode); err != nil {
		return err
	}

	if r.Kind != "" && !r.Kind.IsValid() {
		return ErrInvalidKind
	}

	amounts := []decimal.Decimal{r.DepositAmount, r.LoanInstallmentAmount, r.InterestAmount, r.FineAmount}

	total := decimal.Zero
	for _, a := range amounts {
		if a.IsNegative() {
			return ErrNegativeAmount
		}
		if err := ValidateMoneyScale(a); err != nil {
			return err
		}
		total = total.Add(a)
	}

	if total.IsZero() {
		return ErrEmptyRecord
	}

	return nil
}

// LoanRelated reports whether the record is loan money. A loan reference or a
// loan kind always counts. Loan wording in the mode counts too, unless the
// mode also reads as a deposit and an explicit kind settled that ambiguity.
func (r TransactionRecord) LoanRelated() bool {
	if r.LoanReferenceID != nil || r.Kind.IsLoanRelated() {
		return true
	}
	if !IsLoanRelated(r) {
		return false
	}
	if r.Kind == "" {
		return true
	}
	_, ambiguity := ClassifyRecord(r)
	return ambiguity == nil
}

// EffectiveKind returns the stored kind, or the classified one for legacy rows
// and for rows whose stored kind disagrees with LoanRelated.
func (r TransactionRecord) EffectiveKind() TransactionKind {
	if r.Kind != "" && (r.Kind.IsLoanRelated() || !r.LoanRelated()) {
		return r.Kind
	}
	kind, _ := ClassifyRecord(r)
	return kind
}

// ReferencesLoan reports whether the record is linked to loanID.
func (r TransactionRecord) ReferencesLoan(loanID string) bool {
	return r.LoanReferenceID != nil && *r.LoanReferenceID == loanID
}

var (
	loanModeMarkers     = []string{"loan", "disbursal", "approved"}
	depositModeMarkers  = []string{"deposit", "saving", "share", "monthly"}
	donationModeMarkers = []string{"donation", "charity"}
)

// IsLoanRelated is the mode heuristic: a record is loan-related when it
// references a loan or its mode mentions "loan", "disbursal" or "approved".
func IsLoanRelated(r TransactionRecord) bool {
	if r.LoanReferenceID != nil {
		return true
	}
	return containsAny(strings.ToLower(r.Mode), loanModeMarkers)
}

// ClassificationAmbiguity flags a record whose mode mixes loan and deposit
// wording without a loan reference. Such records are classified as deposits
// and should be reviewed by a human.
type ClassificationAmbiguity struct {
	RecordID string
	MemberID string
	Mode     string
	Assigned TransactionKind
	Reason   string
}

// ClassifyRecord assigns a TransactionKind from the record's amounts, loan
// reference and mode. The second return value is non-nil when the mode could
// not be classified confidently.
func ClassifyRecord(r TransactionRecord) (TransactionKind, *ClassificationAmbiguity) {
	mode := strings.ToLower(r.Mode)
	linked := r.LoanReferenceID != nil
	loanWording := containsAny(mode, loanModeMarkers)

	switch {
	case r.LoanInstallmentAmount.IsPositive():
		return KindEMI, nil

	case linked || loanWording:
		if !linked && r.DepositAmount.IsPositive() && containsAny(mode, depositModeMarkers) {
			return KindDeposit, &ClassificationAmbiguity{
				RecordID: r.ID,
				MemberID: r.MemberID,
				Mode:     r.Mode,
				Assigned: KindDeposit,
				Reason:   "mode mentions both loan and deposit wording without a loan reference",
			}
		}
		if r.DepositAmount.IsPositive() {
			return KindDisbursement, nil
		}
		if r.InterestAmount.IsPositive() {
			return KindInterest, nil
		}
		if r.FineAmount.IsPositive() {
			return KindFine, nil
		}
		return KindAdjustment, nil

	case r.DepositAmount.IsPositive() && containsAny(mode, donationModeMarkers):
		return KindDonation, nil
	case r.DepositAmount.IsPositive():
		return KindDeposit, nil
	case r.InterestAmount.IsPositive():
		return KindInterest, nil
	case r.FineAmount.IsPositive():
		return KindFine, nil
	default:
		return KindAdjustment, nil
	}
}

// ResolveKind returns the kind to store for r. Without an explicit kind the
// classifier decides. An explicit kind wins and clears any ambiguity, except
// that it may not file a record the classifier sees as loan money under a
// non-loan kind.
func ResolveKind(r TransactionRecord) (TransactionKind, *ClassificationAmbiguity, error) {
	classified, ambiguity := ClassifyRecord(r)
	if r.Kind == "" {
		return classified, ambiguity, nil
	}
	if !r.Kind.IsValid() {
		return "", nil, ErrInvalidKind
	}
	if ambiguity == nil && classified.IsLoanRelated() && !r.Kind.IsLoanRelated() {
		return "", nil, fmt.Errorf("%w: %s given, mode %q reads as %s", ErrKindConflict, r.Kind, r.Mode, classified)
	}
	return r.Kind, nil, nil
}

// QualifyingDepositTotal sums positive deposit amounts over records that are
// not loan-related.
func QualifyingDepositTotal(records []TransactionRecord) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		if r.DepositAmount.IsPositive() && !r.LoanRelated() {
			total = total.Add(r.DepositAmount)
		}
	}
	return total
}

// EightyPercentLimit is the maximum loan principal a member may be offered.
func EightyPercentLimit(qualifyingTotal decimal.Decimal) decimal.Decimal {
	return qualifyingTotal.Mul(loanLimitRatio)
}

var loanLimitRatio = decimal.RequireFromString("0.8")

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

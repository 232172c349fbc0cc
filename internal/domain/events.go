package domain

import "time"

// Event types
const (
	EventTypeRecordIngested     = "record.ingested"
	EventTypeLoanCreated        = "loan.created"
	EventTypeLoanDisbursed      = "loan.disbursed"
	EventTypeLoanRejected       = "loan.rejected"
	EventTypeLoanClosed         = "loan.closed"
	EventTypeInstallmentApplied = "installment.applied"
	EventTypeMaturityUpdated    = "maturity.updated"
	EventTypeMaturityClaimed    = "maturity.claimed"
)

// Aggregate types
const (
	AggregateTypeRecord   = "record"
	AggregateTypeLoan     = "loan"
	AggregateTypeMaturity = "maturity"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// RecordIngestedEvent payload
type RecordIngestedEvent struct {
	RecordID    string `json:"record_id"`
	MemberID    string `json:"member_id"`
	Kind        string `json:"kind"`
	Date        string `json:"date"`
	NeedsReview bool   `json:"needs_review"`
}

// LoanDisbursedEvent payload
type LoanDisbursedEvent struct {
	LoanID      string `json:"loan_id"`
	MemberID    string `json:"member_id"`
	Principal   string `json:"principal"`
	NextDueDate string `json:"next_due_date"`
	EventAt     string `json:"event_at"`
}

// InstallmentAppliedEvent payload
type InstallmentAppliedEvent struct {
	LoanID           string `json:"loan_id"`
	RecordID         string `json:"record_id"`
	Amount           string `json:"amount"`
	InterestPaid     string `json:"interest_paid"`
	PrincipalPortion string `json:"principal_portion"`
	RemainingBalance string `json:"remaining_balance"`
}

// LoanClosedEvent payload
type LoanClosedEvent struct {
	LoanID   string `json:"loan_id"`
	MemberID string `json:"member_id"`
	ClosedAt string `json:"closed_at"`
}

// MaturityUpdatedEvent payload
type MaturityUpdatedEvent struct {
	MaturityID       string `json:"maturity_id"`
	MemberID         string `json:"member_id"`
	Status           string `json:"status"`
	TotalDeposit     string `json:"total_deposit"`
	AdjustedInterest string `json:"adjusted_interest"`
	MonthsCompleted  int    `json:"months_completed"`
	RunID            string `json:"run_id,omitempty"`
}

// MaturityClaimedEvent payload
type MaturityClaimedEvent struct {
	MaturityID     string `json:"maturity_id"`
	MemberID       string `json:"member_id"`
	MaturityAmount string `json:"maturity_amount"`
	ClaimedAt      string `json:"claimed_at"`
}

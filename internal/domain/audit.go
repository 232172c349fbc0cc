package domain

import (
	"context"
	"encoding/json"
	"time"
)

// AuditLog is a trail entry for admin actions on member money.
type AuditLog struct {
	ID           string
	ActorID      string // Who performed the action
	Action       string // What action (maturity.override, loan.disburse, etc.)
	ResourceType string // Type of resource (loan, maturity)
	ResourceID   string
	IPAddress    string
	UserAgent    string
	RequestID    string
	BeforeState  JSON
	AfterState   JSON
	Status       string // success, failure, error
	ErrorMessage string
	CreatedAt    time.Time
}

// JSON is a type alias for JSON data
type JSON map[string]any

// AuditAction represents different types of auditable actions
type AuditAction string

const (
	// Loan actions
	AuditActionLoanCreate   AuditAction = "loan.create"
	AuditActionLoanDisburse AuditAction = "loan.disburse"
	AuditActionLoanReject   AuditAction = "loan.reject"

	// Maturity actions
	AuditActionMaturityOverride      AuditAction = "maturity.override"
	AuditActionMaturityClearOverride AuditAction = "maturity.clear_override"
	AuditActionMaturityClaim         AuditAction = "maturity.claim"
)

// AuditStatus represents the status of an audited action
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailure AuditStatus = "failure"
	AuditStatusError   AuditStatus = "error"
)

// Actor identifies who triggered an audited change.
type Actor struct {
	ID        string
	IPAddress string
	UserAgent string
	RequestID string
}

type actorContextKey struct{}

// ContextWithActor stores the acting admin in ctx.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the actor stored by ContextWithActor.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}

// MarshalState converts a domain object to JSON for audit logging
func MarshalState(v any) JSON {
	if v == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return JSON{"error": "failed to marshal state"}
	}

	var result JSON
	if err := json.Unmarshal(data, &result); err != nil {
		return JSON{"error": "failed to unmarshal state"}
	}

	return result
}

// AuditFilter defines filters for querying audit logs
type AuditFilter struct {
	ActorID      string
	Action       string
	ResourceType string
	ResourceID   string
	StartDate    *time.Time
	EndDate      *time.Time
	Limit        int
	Offset       int
}

package usecase

import (
	"context"
	"time"

	"github.com/iho/coopledger/internal/domain"
)

// RecordRepository defines data access for the append-only transaction log.
type RecordRepository interface {
	Create(ctx context.Context, tx Transaction, record *domain.TransactionRecord) error
	GetByID(ctx context.Context, id string) (*domain.TransactionRecord, error)
	ListByMember(ctx context.Context, memberID string) ([]domain.TransactionRecord, error)
	ListByMemberTx(ctx context.Context, tx Transaction, memberID string) ([]domain.TransactionRecord, error)
	ListByMemberPage(ctx context.Context, memberID string, limit, offset int) ([]domain.TransactionRecord, error)
	ListByTenant(ctx context.Context, tenantID string) ([]domain.TransactionRecord, error)
}

// LoanRepository defines data access for loans.
type LoanRepository interface {
	Create(ctx context.Context, tx Transaction, loan *domain.Loan) error
	GetByID(ctx context.Context, id string) (*domain.Loan, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.Loan, error)
	Update(ctx context.Context, tx Transaction, loan *domain.Loan) error
	ListByMember(ctx context.Context, memberID string) ([]domain.Loan, error)
	ListByTenant(ctx context.Context, tenantID string) ([]domain.Loan, error)
}

// MaturityRepository defines data access for maturity records, one per member.
type MaturityRepository interface {
	// LockMember serializes read-check-update cycles for one member until tx ends.
	LockMember(ctx context.Context, tx Transaction, memberID string) error
	GetByMember(ctx context.Context, memberID string) (*domain.MaturityRecord, error)
	GetByMemberTx(ctx context.Context, tx Transaction, memberID string) (*domain.MaturityRecord, error)
	Upsert(ctx context.Context, tx Transaction, record *domain.MaturityRecord) error
	ListByTenant(ctx context.Context, tenantID string) ([]domain.MaturityRecord, error)
}

// MemberRepository reads the member registry.
type MemberRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Member, error)
	ListByTenant(ctx context.Context, tenantID string) ([]domain.Member, error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	GetByAggregate(ctx context.Context, aggregateType, aggregateID string, limit, offset int) ([]*domain.OutboxEvent, error)
	DeletePublished(ctx context.Context, before time.Time) error
}

// AuditRepository defines data access for audit logs.
type AuditRepository interface {
	CreateTx(ctx context.Context, tx Transaction, log *domain.AuditLog) error
	List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Retrier re-runs an operation on transient storage conflicts.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// Cache defines caching operations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// IdempotencyPendingMarker is stored under a key while its first request is
// still in flight.
const IdempotencyPendingMarker = "processing"

// IsIdempotencyPending reports whether a stored value is the in-flight marker
// rather than a completed response.
func IsIdempotencyPending(value []byte) bool {
	return string(value) == IdempotencyPendingMarker
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release drops a key whose request failed so the client may retry it.
	Release(ctx context.Context, key string) error
}

// Clock supplies the current time so month-bound computations are testable.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

package mocks

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/iho/coopledger/internal/domain"
	"github.com/iho/coopledger/internal/usecase"
)

// MemoryTransactionManager hands out MemoryTransactions and counts their outcomes.
type MemoryTransactionManager struct {
	mu        sync.Mutex
	Begins    int
	Commits   int
	Rollbacks int

	BeginFunc  func(ctx context.Context) (usecase.Transaction, error)
	CommitFunc func(ctx context.Context) error
}

func NewMemoryTransactionManager() *MemoryTransactionManager {
	return &MemoryTransactionManager{}
}

func (m *MemoryTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Begins++
	return &MemoryTransaction{manager: m}, nil
}

// Committed returns the number of committed transactions.
func (m *MemoryTransactionManager) Committed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Commits
}

// MemoryTransaction is a no-op transaction. Rollback after Commit is ignored.
// Locks taken through it are released when it finishes.
type MemoryTransaction struct {
	manager  *MemoryTransactionManager
	done     bool
	releases []func()
}

func (t *MemoryTransaction) Commit(ctx context.Context) error {
	if t.manager.CommitFunc != nil {
		if err := t.manager.CommitFunc(ctx); err != nil {
			return err
		}
	}
	t.manager.mu.Lock()
	t.done = true
	t.manager.Commits++
	releases := t.takeReleases()
	t.manager.mu.Unlock()

	for _, release := range releases {
		release()
	}
	return nil
}

func (t *MemoryTransaction) Rollback(ctx context.Context) error {
	t.manager.mu.Lock()
	if t.done {
		t.manager.mu.Unlock()
		return nil
	}
	t.done = true
	t.manager.Rollbacks++
	releases := t.takeReleases()
	t.manager.mu.Unlock()

	for _, release := range releases {
		release()
	}
	return nil
}

func (t *MemoryTransaction) onFinish(release func()) {
	t.manager.mu.Lock()
	defer t.manager.mu.Unlock()
	t.releases = append(t.releases, release)
}

func (t *MemoryTransaction) takeReleases() []func() {
	releases := t.releases
	t.releases = nil
	return releases
}

// MemoryRecordRepository stores transaction records in memory.
type MemoryRecordRepository struct {
	mu      sync.RWMutex
	records map[string]domain.TransactionRecord

	CreateFunc         func(ctx context.Context, tx usecase.Transaction, record *domain.TransactionRecord) error
	ListByMemberFunc   func(ctx context.Context, memberID string) ([]domain.TransactionRecord, error)
	ListByMemberTxFunc func(ctx context.Context, tx usecase.Transaction, memberID string) ([]domain.TransactionRecord, error)
}

func NewMemoryRecordRepository(records ...domain.TransactionRecord) *MemoryRecordRepository {
	m := &MemoryRecordRepository{records: make(map[string]domain.TransactionRecord)}
	for _, r := range records {
		m.records[r.ID] = r
	}
	return m
}

func (m *MemoryRecordRepository) Create(ctx context.Context, tx usecase.Transaction, record *domain.TransactionRecord) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, record)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.ID] = *record
	return nil
}

func (m *MemoryRecordRepository) GetByID(ctx context.Context, id string) (*domain.TransactionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.records[id]; ok {
		return &r, nil
	}
	return nil, domain.ErrRecordNotFound
}

func (m *MemoryRecordRepository) ListByMember(ctx context.Context, memberID string) ([]domain.TransactionRecord, error) {
	if m.ListByMemberFunc != nil {
		return m.ListByMemberFunc(ctx, memberID)
	}
	return m.filter(func(r domain.TransactionRecord) bool { return r.MemberID == memberID }), nil
}

func (m *MemoryRecordRepository) ListByMemberTx(ctx context.Context, tx usecase.Transaction, memberID string) ([]domain.TransactionRecord, error) {
	if m.ListByMemberTxFunc != nil {
		return m.ListByMemberTxFunc(ctx, tx, memberID)
	}
	return m.ListByMember(ctx, memberID)
}

func (m *MemoryRecordRepository) ListByMemberPage(ctx context.Context, memberID string, limit, offset int) ([]domain.TransactionRecord, error) {
	all, _ := m.ListByMember(ctx, memberID)
	if offset >= len(all) {
		return []domain.TransactionRecord{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *MemoryRecordRepository) ListByTenant(ctx context.Context, tenantID string) ([]domain.TransactionRecord, error) {
	return m.filter(func(r domain.TransactionRecord) bool { return r.TenantID == tenantID }), nil
}

// All returns every stored record in log order.
func (m *MemoryRecordRepository) All() []domain.TransactionRecord {
	return m.filter(func(domain.TransactionRecord) bool { return true })
}

func (m *MemoryRecordRepository) filter(keep func(domain.TransactionRecord) bool) []domain.TransactionRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []domain.TransactionRecord{}
	for _, r := range m.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TransactionDate.Equal(out[j].TransactionDate) {
			return out[i].TransactionDate.Before(out[j].TransactionDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// MemoryLoanRepository stores loans in memory.
type MemoryLoanRepository struct {
	mu    sync.RWMutex
	loans map[string]domain.Loan

	UpdateFunc func(ctx context.Context, tx usecase.Transaction, loan *domain.Loan) error
}

func NewMemoryLoanRepository(loans ...domain.Loan) *MemoryLoanRepository {
	m := &MemoryLoanRepository{loans: make(map[string]domain.Loan)}
	for _, l := range loans {
		m.loans[l.ID] = l
	}
	return m
}

func (m *MemoryLoanRepository) Create(ctx context.Context, tx usecase.Transaction, loan *domain.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loans[loan.ID] = *loan
	return nil
}

func (m *MemoryLoanRepository) GetByID(ctx context.Context, id string) (*domain.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if l, ok := m.loans[id]; ok {
		return &l, nil
	}
	return nil, domain.ErrLoanNotFound
}

func (m *MemoryLoanRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Loan, error) {
	return m.GetByID(ctx, id)
}

func (m *MemoryLoanRepository) Update(ctx context.Context, tx usecase.Transaction, loan *domain.Loan) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, tx, loan)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.loans[loan.ID]; !ok {
		return domain.ErrLoanNotFound
	}
	m.loans[loan.ID] = *loan
	return nil
}

func (m *MemoryLoanRepository) ListByMember(ctx context.Context, memberID string) ([]domain.Loan, error) {
	return m.filter(func(l domain.Loan) bool { return l.MemberID == memberID }), nil
}

func (m *MemoryLoanRepository) ListByTenant(ctx context.Context, tenantID string) ([]domain.Loan, error) {
	return m.filter(func(l domain.Loan) bool { return l.TenantID == tenantID }), nil
}

func (m *MemoryLoanRepository) filter(keep func(domain.Loan) bool) []domain.Loan {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []domain.Loan{}
	for _, l := range m.loans {
		if keep(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// MemoryMaturityRepository stores maturity records keyed by member.
type MemoryMaturityRepository struct {
	mu          sync.RWMutex
	records     map[string]domain.MaturityRecord
	memberLocks map[string]*sync.Mutex
	Upserts     int
	Locks       int

	UpsertFunc func(ctx context.Context, tx usecase.Transaction, record *domain.MaturityRecord) error
}

func NewMemoryMaturityRepository(records ...domain.MaturityRecord) *MemoryMaturityRepository {
	m := &MemoryMaturityRepository{
		records:     make(map[string]domain.MaturityRecord),
		memberLocks: make(map[string]*sync.Mutex),
	}
	for _, r := range records {
		m.records[r.MemberID] = r
	}
	return m
}

// LockMember holds a per-member lock until tx commits or rolls back, like the
// transaction-scoped advisory lock it stands in for. Transactions that are not
// MemoryTransactions only count the call.
func (m *MemoryMaturityRepository) LockMember(ctx context.Context, tx usecase.Transaction, memberID string) error {
	m.mu.Lock()
	m.Locks++
	lock, ok := m.memberLocks[memberID]
	if !ok {
		lock = &sync.Mutex{}
		m.memberLocks[memberID] = lock
	}
	m.mu.Unlock()

	mt, ok := tx.(*MemoryTransaction)
	if !ok {
		return nil
	}
	lock.Lock()
	mt.onFinish(lock.Unlock)
	return nil
}

func (m *MemoryMaturityRepository) GetByMember(ctx context.Context, memberID string) (*domain.MaturityRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.records[memberID]; ok {
		return &r, nil
	}
	return nil, domain.ErrMaturityNotFound
}

func (m *MemoryMaturityRepository) GetByMemberTx(ctx context.Context, tx usecase.Transaction, memberID string) (*domain.MaturityRecord, error) {
	return m.GetByMember(ctx, memberID)
}

func (m *MemoryMaturityRepository) Upsert(ctx context.Context, tx usecase.Transaction, record *domain.MaturityRecord) error {
	if m.UpsertFunc != nil {
		if err := m.UpsertFunc(ctx, tx, record); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Upserts++
	m.records[record.MemberID] = *record
	return nil
}

func (m *MemoryMaturityRepository) ListByTenant(ctx context.Context, tenantID string) ([]domain.MaturityRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []domain.MaturityRecord{}
	for _, r := range m.records {
		if r.TenantID == tenantID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MemberID < out[j].MemberID })
	return out, nil
}

// UpsertCount returns how many writes reached the repository.
func (m *MemoryMaturityRepository) UpsertCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Upserts
}

// MemoryMemberRepository is a fixed member registry.
type MemoryMemberRepository struct {
	members map[string]domain.Member
	order   []string

	ListByTenantFunc func(ctx context.Context, tenantID string) ([]domain.Member, error)
}

func NewMemoryMemberRepository(members ...domain.Member) *MemoryMemberRepository {
	m := &MemoryMemberRepository{members: make(map[string]domain.Member)}
	for _, mem := range members {
		m.members[mem.ID] = mem
		m.order = append(m.order, mem.ID)
	}
	return m
}

func (m *MemoryMemberRepository) GetByID(ctx context.Context, id string) (*domain.Member, error) {
	if mem, ok := m.members[id]; ok {
		return &mem, nil
	}
	return nil, domain.ErrMemberNotFound
}

func (m *MemoryMemberRepository) ListByTenant(ctx context.Context, tenantID string) ([]domain.Member, error) {
	if m.ListByTenantFunc != nil {
		return m.ListByTenantFunc(ctx, tenantID)
	}
	out := []domain.Member{}
	for _, id := range m.order {
		if mem := m.members[id]; mem.TenantID == tenantID {
			out = append(out, mem)
		}
	}
	return out, nil
}

// MemoryOutboxRepository collects outbox events.
type MemoryOutboxRepository struct {
	mu     sync.Mutex
	Events []*domain.OutboxEvent
}

func NewMemoryOutboxRepository() *MemoryOutboxRepository {
	return &MemoryOutboxRepository{}
}

func (m *MemoryOutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
	return nil
}

func (m *MemoryOutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.OutboxEvent
	for _, e := range m.Events {
		if !e.Published && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemoryOutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.Events {
		if e.ID == id {
			e.Published = true
			e.PublishedAt = &publishedAt
		}
	}
	return nil
}

func (m *MemoryOutboxRepository) GetByAggregate(ctx context.Context, aggregateType, aggregateID string, limit, offset int) ([]*domain.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.OutboxEvent
	for _, e := range m.Events {
		if e.AggregateType == aggregateType && e.AggregateID == aggregateID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemoryOutboxRepository) DeletePublished(ctx context.Context, before time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.Events[:0]
	for _, e := range m.Events {
		if e.Published && e.PublishedAt != nil && e.PublishedAt.Before(before) {
			continue
		}
		kept = append(kept, e)
	}
	m.Events = kept
	return nil
}

// Types returns the event types in emission order.
func (m *MemoryOutboxRepository) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, 0, len(m.Events))
	for _, e := range m.Events {
		types = append(types, e.EventType)
	}
	return types
}

// MemoryAuditRepository collects audit logs.
type MemoryAuditRepository struct {
	mu   sync.Mutex
	Logs []*domain.AuditLog
}

func NewMemoryAuditRepository() *MemoryAuditRepository {
	return &MemoryAuditRepository{}
}

func (m *MemoryAuditRepository) CreateTx(ctx context.Context, tx usecase.Transaction, log *domain.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, log)
	return nil
}

func (m *MemoryAuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.AuditLog
	for _, l := range m.Logs {
		if filter.ResourceID != "" && filter.ResourceID != l.ResourceID {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

// MemoryCache is a map-backed cache without expiry.
type MemoryCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	Deletes []string
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: make(map[string][]byte)}
}

func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, usecase.ErrCacheMiss
}

func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	m.Deletes = append(m.Deletes, key)
	return nil
}

// Has reports whether key is cached.
func (m *MemoryCache) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

// MemoryIdempotencyStore is a map-backed idempotency store.
type MemoryIdempotencyStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{data: make(map[string][]byte)}
}

func (m *MemoryIdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.data[key]; ok {
		return true, existing, nil
	}
	if response != nil {
		m.data[key] = response
	} else {
		m.data[key] = []byte("processing")
	}
	return false, nil, nil
}

func (m *MemoryIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = response
	return nil
}

func (m *MemoryIdempotencyStore) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// SequentialIDGenerator returns prefix-1, prefix-2, ...
type SequentialIDGenerator struct {
	mu      sync.Mutex
	prefix  string
	counter int
}

func NewSequentialIDGenerator(prefix string) *SequentialIDGenerator {
	return &SequentialIDGenerator{prefix: prefix}
}

func (g *SequentialIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return g.prefix + "-" + strconv.Itoa(g.counter)
}

// FixedClock always returns the same instant.
type FixedClock struct {
	mu sync.Mutex
	T  time.Time
}

func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{T: t}
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.T
}

// Set moves the clock.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.T = t
}

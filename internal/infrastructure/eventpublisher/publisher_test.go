package eventpublisher

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"

	"github.com/iho/coopledger/internal/domain"
	"github.com/iho/coopledger/internal/infrastructure/metrics"
	"github.com/iho/coopledger/internal/usecase"
	"github.com/iho/coopledger/internal/usecase/mocks"
)

func TestProcessEventsPublishesAndMarks(t *testing.T) {
	repo := &stubOutboxRepo{
		events: []*domain.OutboxEvent{{ID: "evt-1", EventType: domain.EventTypeLoanDisbursed}},
	}
	pub := &stubPublisher{}
	ep := newTestPublisher(repo, pub)

	if err := ep.processEvents(context.Background()); err != nil {
		t.Fatalf("processEvents failed: %v", err)
	}

	if len(pub.published) != 1 {
		t.Fatalf("expected one published event, got %d", len(pub.published))
	}
	if len(repo.marked) != 1 || repo.marked[0] != "evt-1" {
		t.Fatalf("expected event to be marked published, got %#v", repo.marked)
	}
}

func TestProcessEventsContinuesOnPublishError(t *testing.T) {
	repo := &stubOutboxRepo{
		events: []*domain.OutboxEvent{
			{ID: "evt-1", EventType: domain.EventTypeMaturityUpdated},
			{ID: "evt-2", EventType: domain.EventTypeMaturityUpdated},
		},
	}
	pub := &stubPublisher{
		errorsByID: map[string]error{"evt-1": errors.New("fail")},
	}
	ep := newTestPublisher(repo, pub)
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	ep.metrics = m

	if err := ep.processEvents(context.Background()); err != nil {
		t.Fatalf("processEvents returned error: %v", err)
	}

	if len(pub.published) != 1 || pub.published[0].ID != "evt-2" {
		t.Fatalf("expected only evt-2 to be published, got %#v", pub.published)
	}
	if len(repo.marked) != 1 || repo.marked[0] != "evt-2" {
		t.Fatalf("expected only evt-2 to be marked, got %#v", repo.marked)
	}
	if got := counterValue(t, m.OutboxFailures); got != 1 {
		t.Fatalf("expected 1 failure counted, got %v", got)
	}
	if got := counterValue(t, m.OutboxPublished); got != 1 {
		t.Fatalf("expected 1 publish counted, got %v", got)
	}
}

func TestProcessEventsReturnsFetchError(t *testing.T) {
	fetchErr := errors.New("db down")
	ep := newTestPublisher(&stubOutboxRepo{fetchErr: fetchErr}, &stubPublisher{})

	if err := ep.processEvents(context.Background()); !errors.Is(err, fetchErr) {
		t.Fatalf("expected fetch error, got %v", err)
	}
}

func TestPruneDeletesOldPublishedEvents(t *testing.T) {
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	old := now.Add(-10 * 24 * time.Hour)
	recent := now.Add(-time.Hour)

	repo := mocks.NewMemoryOutboxRepository()
	repo.Events = []*domain.OutboxEvent{
		{ID: "old", Published: true, PublishedAt: &old},
		{ID: "recent", Published: true, PublishedAt: &recent},
		{ID: "pending"},
	}

	ep := NewEventPublisher(Config{
		OutboxRepo: repo,
		Publisher:  &stubPublisher{},
		Clock:      mocks.NewFixedClock(now),
		Logger:     zerolog.Nop(),
		Retention:  7 * 24 * time.Hour,
	})

	if err := ep.prune(context.Background()); err != nil {
		t.Fatalf("prune failed: %v", err)
	}

	var ids []string
	for _, e := range repo.Events {
		ids = append(ids, e.ID)
	}
	if strings.Join(ids, ",") != "recent,pending" {
		t.Fatalf("expected old event pruned, got %v", ids)
	}
}

func TestStartStopsOnContextCancellation(t *testing.T) {
	repo := &stubOutboxRepo{}
	pub := &stubPublisher{}
	ep := newTestPublisher(repo, pub)
	ep.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ep.Start(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("publisher did not stop after cancel")
	}
}

func TestLogPublisherWritesPayload(t *testing.T) {
	var buf bytes.Buffer
	pub := NewLogPublisher(zerolog.New(&buf))

	err := pub.Publish(context.Background(), &domain.OutboxEvent{
		ID:            "evt-1",
		EventType:     domain.EventTypeLoanClosed,
		AggregateType: domain.AggregateTypeLoan,
		AggregateID:   "loan-1",
		Payload:       map[string]any{"loan_id": "loan-1"},
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `"event_type":"loan.closed"`) || !strings.Contains(out, `"payload":{"loan_id":"loan-1"}`) {
		t.Fatalf("unexpected log output %q", out)
	}
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()

	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func newTestPublisher(repo *stubOutboxRepo, pub *stubPublisher) *EventPublisher {
	return NewEventPublisher(Config{
		OutboxRepo: repo,
		Publisher:  pub,
		Logger:     zerolog.Nop(),
		BatchSize:  10,
		Interval:   5 * time.Millisecond,
	})
}

type stubOutboxRepo struct {
	events   []*domain.OutboxEvent
	marked   []string
	fetchErr error
}

func (s *stubOutboxRepo) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	return nil
}

func (s *stubOutboxRepo) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	if len(s.events) <= limit {
		return append([]*domain.OutboxEvent(nil), s.events...), nil
	}
	return append([]*domain.OutboxEvent(nil), s.events[:limit]...), nil
}

func (s *stubOutboxRepo) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	s.marked = append(s.marked, id)
	return nil
}

func (s *stubOutboxRepo) GetByAggregate(ctx context.Context, aggregateType, aggregateID string, limit, offset int) ([]*domain.OutboxEvent, error) {
	return nil, nil
}

func (s *stubOutboxRepo) DeletePublished(ctx context.Context, before time.Time) error {
	return nil
}

type stubPublisher struct {
	published  []*domain.OutboxEvent
	errorsByID map[string]error
}

func (s *stubPublisher) Publish(ctx context.Context, event *domain.OutboxEvent) error {
	if err := s.errorsByID[event.ID]; err != nil {
		return err
	}
	s.published = append(s.published, event)
	return nil
}

package usecase

import (
	"context"
	"time"

	"github.com/iho/coopledger/internal/domain"
	"github.com/iho/coopledger/internal/infrastructure/metrics"
)

// eventWriter appends outbox events and audit logs inside a caller's
// transaction. Both repositories are optional.
type eventWriter struct {
	outboxRepo OutboxRepository
	auditRepo  AuditRepository
	idGen      IDGenerator
	metrics    *metrics.Metrics
}

func (w eventWriter) emit(ctx context.Context, tx Transaction, aggregateType, aggregateID, eventType string, payload any, now time.Time) error {
	if w.outboxRepo == nil {
		return nil
	}

	event := &domain.OutboxEvent{
		ID:            w.idGen.Generate(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Payload:       domain.MarshalState(payload),
		CreatedAt:     now,
		Published:     false,
	}

	return w.outboxRepo.Create(ctx, tx, event)
}

func (w eventWriter) audit(ctx context.Context, tx Transaction, action domain.AuditAction, resourceType, resourceID string, before, after any, now time.Time) error {
	if w.auditRepo == nil {
		return nil
	}

	log := &domain.AuditLog{
		ID:           w.idGen.Generate(),
		ActorID:      systemActor,
		Action:       string(action),
		ResourceType: resourceType,
		ResourceID:   resourceID,
		BeforeState:  domain.MarshalState(before),
		AfterState:   domain.MarshalState(after),
		Status:       string(domain.AuditStatusSuccess),
		CreatedAt:    now,
	}

	if actor, ok := domain.ActorFromContext(ctx); ok {
		if actor.ID != "" {
			log.ActorID = actor.ID
		}
		log.IPAddress = actor.IPAddress
		log.UserAgent = actor.UserAgent
		log.RequestID = actor.RequestID
	}

	if err := w.auditRepo.CreateTx(ctx, tx, log); err != nil {
		return err
	}

	if w.metrics != nil {
		w.metrics.AuditLogsCreated.WithLabelValues(log.Action, log.Status).Inc()
	}

	return nil
}

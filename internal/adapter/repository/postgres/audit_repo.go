package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/coopledger/internal/domain"
	"github.com/iho/coopledger/internal/usecase"
)

const auditColumns = `id, actor_id, action, resource_type, resource_id,
	ip_address, user_agent, request_id,
	before_state, after_state, status, error_message, created_at`

// AuditRepository implements audit log persistence
type AuditRepository struct {
	db querier
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return newAuditRepository(pool)
}

func newAuditRepository(db querier) *AuditRepository {
	return &AuditRepository{db: db}
}

// CreateTx inserts an audit log entry in the same transaction as the change
// it describes.
func (r *AuditRepository) CreateTx(ctx context.Context, tx usecase.Transaction, log *domain.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}

	beforeState, err := marshalState(log.BeforeState)
	if err != nil {
		return err
	}

	afterState, err := marshalState(log.AfterState)
	if err != nil {
		return err
	}

	_, err = txQuerier(tx).Exec(ctx, `
		INSERT INTO audit_logs (`+auditColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		log.ID,
		log.ActorID,
		log.Action,
		log.ResourceType,
		log.ResourceID,
		log.IPAddress,
		log.UserAgent,
		log.RequestID,
		beforeState,
		afterState,
		log.Status,
		log.ErrorMessage,
		log.CreatedAt,
	)

	return err
}

// List retrieves audit logs with filtering, newest first.
func (r *AuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error) {
	var (
		conds []string
		args  []any
	)

	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.ActorID != "" {
		add("actor_id = $%d", filter.ActorID)
	}
	if filter.Action != "" {
		add("action = $%d", filter.Action)
	}
	if filter.ResourceType != "" {
		add("resource_type = $%d", filter.ResourceType)
	}
	if filter.ResourceID != "" {
		add("resource_id = $%d", filter.ResourceID)
	}
	if filter.StartDate != nil {
		add("created_at >= $%d", *filter.StartDate)
	}
	if filter.EndDate != nil {
		add("created_at < $%d", *filter.EndDate)
	}

	query := `SELECT ` + auditColumns + ` FROM audit_logs`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]*domain.AuditLog, 0)
	for rows.Next() {
		var (
			log                     domain.AuditLog
			beforeState, afterState []byte
		)

		err := rows.Scan(
			&log.ID,
			&log.ActorID,
			&log.Action,
			&log.ResourceType,
			&log.ResourceID,
			&log.IPAddress,
			&log.UserAgent,
			&log.RequestID,
			&beforeState,
			&afterState,
			&log.Status,
			&log.ErrorMessage,
			&log.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		if beforeState != nil {
			_ = json.Unmarshal(beforeState, &log.BeforeState)
		}
		if afterState != nil {
			_ = json.Unmarshal(afterState, &log.AfterState)
		}

		logs = append(logs, &log)
	}

	return logs, rows.Err()
}

func marshalState(state domain.JSON) ([]byte, error) {
	if state == nil {
		return nil, nil
	}
	return json.Marshal(state)
}

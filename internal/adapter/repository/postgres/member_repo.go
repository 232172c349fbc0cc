package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/coopledger/internal/domain"
)

const memberColumns = `id, tenant_id, name, phone, monthly_contribution, join_date, created_at`

// MemberRepository implements usecase.MemberRepository over the member registry.
type MemberRepository struct {
	db querier
}

// NewMemberRepository creates a new MemberRepository.
func NewMemberRepository(pool *pgxpool.Pool) *MemberRepository {
	return newMemberRepository(pool)
}

func newMemberRepository(db querier) *MemberRepository {
	return &MemberRepository{db: db}
}

// Create registers a member. The registry is normally fed by the society's
// membership system; this is used for imports and fixtures.
func (r *MemberRepository) Create(ctx context.Context, m *domain.Member) error {
	if err := m.Validate(); err != nil {
		return err
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO members (`+memberColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.TenantID, m.Name, m.Phone, m.MonthlyContribution, m.JoinDate, m.CreatedAt,
	)

	return err
}

// GetByID retrieves a member by ID.
func (r *MemberRepository) GetByID(ctx context.Context, id string) (*domain.Member, error) {
	m, err := scanMember(r.db.QueryRow(ctx, `SELECT `+memberColumns+` FROM members WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMemberNotFound
		}
		return nil, err
	}

	return &m, nil
}

// ListByTenant lists a tenant's members by name.
func (r *MemberRepository) ListByTenant(ctx context.Context, tenantID string) ([]domain.Member, error) {
	rows, err := r.db.Query(ctx, `SELECT `+memberColumns+` FROM members WHERE tenant_id = $1 ORDER BY name, id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make([]domain.Member, 0)
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}

	return members, rows.Err()
}

// ListTenants returns every tenant with at least one member.
func (r *MemberRepository) ListTenants(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT tenant_id FROM members ORDER BY tenant_id`)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func scanMember(row pgx.Row) (domain.Member, error) {
	var m domain.Member

	err := row.Scan(&m.ID, &m.TenantID, &m.Name, &m.Phone, &m.MonthlyContribution, &m.JoinDate, &m.CreatedAt)
	m.JoinDate = m.JoinDate.UTC()

	return m, err
}

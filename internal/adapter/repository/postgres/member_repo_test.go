package postgres

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/coopledger/internal/domain"
)

var memberColumnNames = []string{"id", "tenant_id", "name", "phone", "monthly_contribution", "join_date", "created_at"}

func TestMemberRepositoryCreate(t *testing.T) {
	pool := newMockPool(t)
	repo := newMemberRepository(pool)

	m := &domain.Member{
		ID:                  "m-1",
		TenantID:            "coop-1",
		Name:                "Asha",
		Phone:               "9800000001",
		MonthlyContribution: dec("1000"),
		JoinDate:            utcDay(2023, 1, 1),
		CreatedAt:           utcDay(2023, 1, 1),
	}

	pool.ExpectExec(sqlPattern("INSERT INTO members")).
		WithArgs("m-1", "coop-1", "Asha", "9800000001", pgxmock.AnyArg(), m.JoinDate, m.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), m))
	assertExpectations(t, pool)
}

func TestMemberRepositoryCreateRejectsInvalidMember(t *testing.T) {
	pool := newMockPool(t)
	repo := newMemberRepository(pool)

	err := repo.Create(context.Background(), &domain.Member{ID: "m-1"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assertExpectations(t, pool)
}

func TestMemberRepositoryGetByID(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		pool := newMockPool(t)
		repo := newMemberRepository(pool)

		rows := pgxmock.NewRows(memberColumnNames).
			AddRow("m-1", "coop-1", "Asha", "9800000001", dec("1000"), utcDay(2023, 1, 1), utcDay(2023, 1, 1))
		pool.ExpectQuery(sqlPattern("FROM members WHERE id = $1")).WithArgs("m-1").WillReturnRows(rows)

		m, err := repo.GetByID(ctx, "m-1")
		require.NoError(t, err)
		assert.Equal(t, "Asha", m.Name)
		assert.True(t, m.MonthlyContribution.Equal(dec("1000")))
	})

	t.Run("not found", func(t *testing.T) {
		pool := newMockPool(t)
		repo := newMemberRepository(pool)

		pool.ExpectQuery(sqlPattern("FROM members WHERE id = $1")).
			WithArgs("nobody").
			WillReturnRows(pgxmock.NewRows(memberColumnNames))

		_, err := repo.GetByID(ctx, "nobody")
		assert.ErrorIs(t, err, domain.ErrMemberNotFound)
	})
}

func TestMemberRepositoryListByTenant(t *testing.T) {
	pool := newMockPool(t)
	repo := newMemberRepository(pool)

	rows := pgxmock.NewRows(memberColumnNames).
		AddRow("m-1", "coop-1", "Asha", "9800000001", dec("1000"), utcDay(2023, 1, 1), utcDay(2023, 1, 1)).
		AddRow("m-2", "coop-1", "Binod", "9800000002", dec("500"), utcDay(2023, 2, 1), utcDay(2023, 2, 1))
	pool.ExpectQuery(sqlPattern("FROM members WHERE tenant_id = $1")).WithArgs("coop-1").WillReturnRows(rows)

	members, err := repo.ListByTenant(context.Background(), "coop-1")
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "Binod", members[1].Name)
	assertExpectations(t, pool)
}

func TestMemberRepositoryListTenants(t *testing.T) {
	pool := newMockPool(t)
	repo := newMemberRepository(pool)

	rows := pgxmock.NewRows([]string{"tenant_id"}).AddRow("coop-1").AddRow("coop-2")
	pool.ExpectQuery(sqlPattern("SELECT DISTINCT tenant_id FROM members")).WillReturnRows(rows)

	tenants, err := repo.ListTenants(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"coop-1", "coop-2"}, tenants)
	assertExpectations(t, pool)
}

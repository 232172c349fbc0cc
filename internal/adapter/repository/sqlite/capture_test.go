package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/coopledger/internal/domain"
	"github.com/iho/coopledger/internal/usecase/mocks"
)

func memorySource(snap Snapshot) Source {
	return Source{
		Members:    mocks.NewMemoryMemberRepository(snap.Members...),
		Records:    mocks.NewMemoryRecordRepository(snap.Records...),
		Loans:      mocks.NewMemoryLoanRepository(snap.Loans...),
		Maturities: mocks.NewMemoryMaturityRepository(snap.Maturities...),
	}
}

func TestCaptureThenWrite(t *testing.T) {
	ctx := context.Background()
	want := testSnapshot()

	snap, err := Capture(ctx, memorySource(want), "coop-1", want.TakenAt)
	require.NoError(t, err)
	assert.Len(t, snap.Members, 2)
	assert.Len(t, snap.Records, 3)
	assert.Len(t, snap.Loans, 1)
	assert.Len(t, snap.Maturities, 1)

	path := filepath.Join(t.TempDir(), "export.db")
	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Write(ctx, snap))
	require.NoError(t, store.Close())

	ro := openReadOnly(t, path)
	info, err := ro.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, "coop-1", info.TenantID)

	records, err := NewRecordRepository(ro).ListByTenant(ctx, "coop-1")
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestCaptureOtherTenantIsEmpty(t *testing.T) {
	snap, err := Capture(context.Background(), memorySource(testSnapshot()), "coop-2", testSnapshot().TakenAt)
	require.NoError(t, err)
	assert.Empty(t, snap.Members)
	assert.Empty(t, snap.Records)
}

func TestCaptureWrapsSourceErrors(t *testing.T) {
	members := mocks.NewMemoryMemberRepository()
	members.ListByTenantFunc = func(context.Context, string) ([]domain.Member, error) {
		return nil, errors.New("connection reset")
	}
	src := memorySource(testSnapshot())
	src.Members = members

	_, err := Capture(context.Background(), src, "coop-1", testSnapshot().TakenAt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list members")
}

package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/coopledger/internal/domain"
	"github.com/iho/coopledger/internal/usecase"
)

func TestRecordIngestAndLedger(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	t.Run("classifies records and builds a reconciled ledger", func(t *testing.T) {
		s.db.TruncateAll(ctx)

		member := s.db.CreateTestMember(ctx, "coop-1", "Asha", decimal.NewFromInt(1000), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

		inputs := []usecase.IngestRecordInput{
			{TransactionDate: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), MemberID: member.ID, Mode: "cash", DepositAmount: decimal.NewFromInt(1000)},
			{TransactionDate: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), MemberID: member.ID, Mode: "cash", FineAmount: decimal.NewFromInt(20)},
			{TransactionDate: time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC), MemberID: member.ID, Mode: "bank", DepositAmount: decimal.NewFromInt(1000)},
		}
		for _, in := range inputs {
			if _, err := s.records.Ingest(ctx, in); err != nil {
				t.Fatalf("ingest failed: %v", err)
			}
		}

		stored, err := s.recordRepo.ListByMember(ctx, member.ID)
		if err != nil {
			t.Fatalf("list records: %v", err)
		}
		if len(stored) != 3 {
			t.Fatalf("expected 3 records, got %d", len(stored))
		}
		for _, r := range stored {
			if r.TenantID != "coop-1" {
				t.Errorf("record %s has tenant %q, want coop-1", r.ID, r.TenantID)
			}
		}

		days, err := s.ledger.MemberLedger(ctx, member.ID, usecase.LedgerQuery{})
		if err != nil {
			t.Fatalf("member ledger: %v", err)
		}
		if len(days) != 2 {
			t.Fatalf("expected 2 ledger days, got %d", len(days))
		}
		if !days[0].CashIn.Equal(decimal.NewFromInt(1020)) {
			t.Errorf("expected first day cash in 1020, got %s", days[0].CashIn)
		}
		if !days[1].RunningBalance.Equal(decimal.NewFromInt(2020)) {
			t.Errorf("expected closing balance 2020, got %s", days[1].RunningBalance)
		}

		report, err := s.ledger.ReconcileTenant(ctx, "coop-1")
		if err != nil {
			t.Fatalf("reconcile: %v", err)
		}
		if !report.Consistent {
			t.Fatalf("expected consistent ledger, got problem %q", report.Problem)
		}
	})

	t.Run("rejects installment without loan reference", func(t *testing.T) {
		s.db.TruncateAll(ctx)

		member := s.db.CreateTestMember(ctx, "coop-1", "Binod", decimal.NewFromInt(500), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

		_, err := s.records.Ingest(ctx, usecase.IngestRecordInput{
			TransactionDate:       time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			MemberID:              member.ID,
			Mode:                  "cash",
			LoanInstallmentAmount: decimal.NewFromInt(100),
		})
		if !errors.Is(err, domain.ErrMissingLoanRef) {
			t.Fatalf("expected ErrMissingLoanRef, got %v", err)
		}
	})

	t.Run("records are append-only", func(t *testing.T) {
		s.db.TruncateAll(ctx)

		member := s.db.CreateTestMember(ctx, "coop-1", "Chandra", decimal.NewFromInt(500), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		res, err := s.records.Ingest(ctx, usecase.IngestRecordInput{
			TransactionDate: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
			MemberID:        member.ID,
			Mode:            "cash",
			DepositAmount:   decimal.NewFromInt(500),
		})
		if err != nil {
			t.Fatalf("ingest failed: %v", err)
		}

		if _, err := s.db.Pool.Exec(ctx, `UPDATE transaction_records SET deposit_amount = 1 WHERE id = $1`, res.Record.ID); err == nil {
			t.Fatal("expected update of a stored record to be rejected")
		}
	})
}

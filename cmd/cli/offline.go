package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/iho/coopledger/internal/adapter/http/dto"
	postgresRepo "github.com/iho/coopledger/internal/adapter/repository/postgres"
	"github.com/iho/coopledger/internal/adapter/repository/sqlite"
	"github.com/iho/coopledger/internal/domain"
	"github.com/iho/coopledger/internal/infrastructure/config"
	"github.com/iho/coopledger/internal/infrastructure/postgres"
	"github.com/iho/coopledger/internal/usecase"
)

// fixedClock pins report dates to a moment, normally the snapshot time.
type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c).UTC() }

// snapshot is an opened read-only SQLite snapshot with its repositories.
type snapshot struct {
	store    *sqlite.Store
	info     sqlite.Info
	members  *sqlite.MemberRepository
	records  *sqlite.RecordRepository
	loans    *sqlite.LoanRepository
	maturity *sqlite.MaturityRepository
	clock    usecase.Clock
}

// snapshotPath returns the --sqlite flag, or SQLITE_PATH when the flag is empty.
func snapshotPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return "", err
	}
	if cfg.SQLitePath == "" {
		return "", errors.New("--sqlite is required")
	}
	return cfg.SQLitePath, nil
}

func openSnapshot(ctx context.Context, path, asOf string) (*snapshot, error) {
	path, err := snapshotPath(path)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.OpenReadOnly(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}

	info, err := store.Info(ctx)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	now := info.TakenAt
	if asOf != "" {
		if now, err = dto.ParseDate("as-of", asOf); err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	return &snapshot{
		store:    store,
		info:     info,
		members:  sqlite.NewMemberRepository(store),
		records:  sqlite.NewRecordRepository(store),
		loans:    sqlite.NewLoanRepository(store),
		maturity: sqlite.NewMaturityRepository(store),
		clock:    fixedClock(now),
	}, nil
}

func (s *snapshot) Close() error {
	return s.store.Close()
}

func offlineCmd(opts *options) *cobra.Command {
	var path, asOf string

	cmd := &cobra.Command{
		Use:   "offline",
		Short: "Compute ledgers and reports from a SQLite snapshot",
	}
	cmd.PersistentFlags().StringVar(&path, "sqlite", "", "Path to the SQLite snapshot")
	cmd.PersistentFlags().StringVar(&asOf, "as-of", "", "Reference date for overdue checks (default: snapshot time)")

	var member, from, to string
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Print the snapshot tenant's ledger, or one member's with --member",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			snap, err := openSnapshot(ctx, path, asOf)
			if err != nil {
				return err
			}
			defer snap.Close()

			q, err := ledgerQuery(from, to)
			if err != nil {
				return err
			}

			ledgerUC := usecase.NewLedgerUseCase(snap.records, snap.members, snap.clock)
			var days []domain.LedgerDay
			if member != "" {
				days, err = ledgerUC.MemberLedger(ctx, member, q)
			} else {
				days, err = ledgerUC.TenantLedger(ctx, snap.info.TenantID, q)
			}
			if err != nil {
				return err
			}

			ledger := dto.LedgerFromDomain(days)
			return render(cmd.OutOrStdout(), opts.output, ledger, ledgerTable(ledger))
		},
	}
	ledgerCmd.Flags().StringVar(&member, "member", "", "Member ID")
	ledgerCmd.Flags().StringVar(&from, "from", "", "First day to include (YYYY-MM-DD)")
	ledgerCmd.Flags().StringVar(&to, "to", "", "Last day to include (YYYY-MM-DD)")

	reconcileCmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile the snapshot tenant's ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			snap, err := openSnapshot(ctx, path, asOf)
			if err != nil {
				return err
			}
			defer snap.Close()

			report, err := usecase.NewLedgerUseCase(snap.records, snap.members, snap.clock).ReconcileTenant(ctx, snap.info.TenantID)
			if err != nil {
				return err
			}

			resp := *dto.ReconciliationFromUseCase(report)
			if err := render(cmd.OutOrStdout(), opts.output, resp, reconciliationTable(resp)); err != nil {
				return err
			}
			if !resp.Consistent {
				return errInconsistentLedger
			}
			return nil
		},
	}

	defaultersCmd := &cobra.Command{
		Use:   "defaulters",
		Short: "List overdue loans in the snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			snap, err := openSnapshot(ctx, path, asOf)
			if err != nil {
				return err
			}
			defer snap.Close()

			rows, err := usecase.NewDefaulterUseCase(snap.loans, snap.members, snap.clock, nil).Defaulters(ctx, snap.info.TenantID)
			if err != nil {
				return err
			}

			report := dto.DefaultersFromDomain(rows)
			return render(cmd.OutOrStdout(), opts.output, report, defaultersTable(report))
		},
	}

	summaryCmd := &cobra.Command{
		Use:   "summary <member>",
		Short: "Show a member's summary from the snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			snap, err := openSnapshot(ctx, path, asOf)
			if err != nil {
				return err
			}
			defer snap.Close()

			summaryUC := usecase.NewSummaryUseCase(snap.records, snap.loans, snap.maturity, snap.members, nil, 0, zerolog.Nop(), nil)
			summary, err := summaryUC.MemberSummary(ctx, args[0])
			if err != nil {
				return err
			}

			resp := *dto.SummaryFromDomain(summary)
			return render(cmd.OutOrStdout(), opts.output, resp, summaryTable(resp))
		},
	}

	var databaseURL string
	exportCmd := &cobra.Command{
		Use:   "export <tenant>",
		Short: "Copy one tenant from PostgreSQL into a SQLite snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := snapshotPath(path)
			if err != nil {
				return err
			}
			dbURL, _, err := databaseSettings(databaseURL, "")
			if err != nil {
				return err
			}
			return exportSnapshot(cmd, dbURL, args[0], out)
		},
	}
	exportCmd.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL URL (default: DATABASE_URL)")

	cmd.AddCommand(ledgerCmd, reconcileCmd, defaultersCmd, summaryCmd, exportCmd)
	return cmd
}

func ledgerQuery(from, to string) (usecase.LedgerQuery, error) {
	var q usecase.LedgerQuery
	var err error
	if from != "" {
		if q.From, err = dto.ParseDate("from", from); err != nil {
			return q, err
		}
	}
	if to != "" {
		if q.To, err = dto.ParseDate("to", to); err != nil {
			return q, err
		}
	}
	return q, nil
}

func exportSnapshot(cmd *cobra.Command, databaseURL, tenantID, path string) error {
	ctx := cmd.Context()

	pool, err := postgres.NewPool(ctx, databaseURL, 2, 0)
	if err != nil {
		return err
	}
	defer pool.Close()

	snap, err := sqlite.Capture(ctx, sqlite.Source{
		Members:    postgresRepo.NewMemberRepository(pool),
		Records:    postgresRepo.NewRecordRepository(pool),
		Loans:      postgresRepo.NewLoanRepository(pool),
		Maturities: postgresRepo.NewMaturityRepository(pool),
	}, tenantID, time.Now())
	if err != nil {
		return err
	}

	store, err := sqlite.Open(path)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer store.Close()

	if err := store.Write(ctx, snap); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Exported tenant %s to %s: %d members, %d records, %d loans, %d maturity records\n",
		tenantID, path, len(snap.Members), len(snap.Records), len(snap.Loans), len(snap.Maturities))
	return nil
}

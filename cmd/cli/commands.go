package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/iho/coopledger/internal/adapter/http/dto"
)

// errInconsistentLedger makes a failed reconciliation exit non-zero.
var errInconsistentLedger = errors.New("ledger is inconsistent")

func ledgerCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger operations",
	}

	reconcileCmd := &cobra.Command{
		Use:   "reconcile <tenant>",
		Short: "Check that a tenant ledger's closing balance matches its cash flows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var report dto.ReconciliationResponse
			path := "/api/v1/tenants/" + url.PathEscape(args[0]) + "/ledger/reconcile"
			if err := newAPIClient(opts).get(cmd.Context(), path, &report, http.StatusConflict); err != nil {
				return err
			}
			if err := render(cmd.OutOrStdout(), opts.output, report, reconciliationTable(report)); err != nil {
				return err
			}
			if !report.Consistent {
				return errInconsistentLedger
			}
			return nil
		},
	}

	var from, to string
	showCmd := &cobra.Command{
		Use:   "show <tenant|member>",
		Short: "Print a tenant ledger, or a member ledger with --member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			member, _ := cmd.Flags().GetBool("member")
			scope := "tenants"
			if member {
				scope = "members"
			}

			query := url.Values{}
			if from != "" {
				query.Set("from", from)
			}
			if to != "" {
				query.Set("to", to)
			}
			path := "/api/v1/" + scope + "/" + url.PathEscape(args[0]) + "/ledger"
			if len(query) > 0 {
				path += "?" + query.Encode()
			}

			var ledger dto.LedgerResponse
			if err := newAPIClient(opts).get(cmd.Context(), path, &ledger); err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, ledger, ledgerTable(ledger))
		},
	}
	showCmd.Flags().Bool("member", false, "Treat the argument as a member ID")
	showCmd.Flags().StringVar(&from, "from", "", "First day to include (YYYY-MM-DD)")
	showCmd.Flags().StringVar(&to, "to", "", "Last day to include (YYYY-MM-DD)")

	cmd.AddCommand(reconcileCmd, showCmd)
	return cmd
}

func maturityCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "maturity",
		Short: "Maturity operations",
	}

	var idempotencyKey string
	recomputeCmd := &cobra.Command{
		Use:   "recompute <tenant>",
		Short: "Recompute maturity records for every member of a tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(opts)
			client.idempotencyKey = idempotencyKey

			var batch dto.BatchResponse
			path := "/api/v1/tenants/" + url.PathEscape(args[0]) + "/maturity/recompute"
			if err := client.post(cmd.Context(), path, nil, &batch); err != nil {
				return err
			}
			if err := render(cmd.OutOrStdout(), opts.output, batch, batchTable(batch)); err != nil {
				return err
			}
			if len(batch.Failed) > 0 {
				return fmt.Errorf("%d of %d members failed", len(batch.Failed), batch.Processed)
			}
			return nil
		},
	}
	recomputeCmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "Idempotency key for the batch request")

	cmd.AddCommand(recomputeCmd)
	return cmd
}

func reportCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Tenant reports",
	}

	defaultersCmd := &cobra.Command{
		Use:   "defaulters <tenant>",
		Short: "List overdue loans, worst first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var report dto.DefaultersResponse
			path := "/api/v1/tenants/" + url.PathEscape(args[0]) + "/reports/defaulters"
			if err := newAPIClient(opts).get(cmd.Context(), path, &report); err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, report, defaultersTable(report))
		},
	}

	maturityReportCmd := &cobra.Command{
		Use:   "maturity <tenant>",
		Short: "Projected maturity payouts per member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var report dto.MaturityReportResponse
			path := "/api/v1/tenants/" + url.PathEscape(args[0]) + "/reports/maturity"
			if err := newAPIClient(opts).get(cmd.Context(), path, &report); err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, report, maturityReportTable(report))
		},
	}

	cmd.AddCommand(defaultersCmd, maturityReportCmd)
	return cmd
}

func memberCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Member operations",
	}

	summaryCmd := &cobra.Command{
		Use:   "summary <member>",
		Short: "Show a member's financial summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var summary dto.SummaryResponse
			path := "/api/v1/members/" + url.PathEscape(args[0]) + "/summary"
			if err := newAPIClient(opts).get(cmd.Context(), path, &summary); err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, summary, summaryTable(summary))
		},
	}

	cmd.AddCommand(summaryCmd)
	return cmd
}

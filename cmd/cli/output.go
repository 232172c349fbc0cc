package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/iho/coopledger/internal/adapter/http/dto"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

// render writes v as indented JSON or hands it to table.
func render(w io.Writer, format string, v any, table func(*tabwriter.Writer)) error {
	if format == outputJSON {
		return printJSON(w, v)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	table(tw)
	return tw.Flush()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func ledgerTable(l dto.LedgerResponse) func(*tabwriter.Writer) {
	return func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "DATE\tDEPOSIT\tEMI\tLOAN OUT\tINTEREST\tFINE\tCASH IN\tCASH OUT\tNET\tBALANCE")
		for _, d := range l.Days {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				d.Date, d.Deposit, d.EMI, d.LoanOut, d.Interest, d.Fine, d.CashIn, d.CashOut, d.NetFlow, d.RunningBalance)
		}
	}
}

func reconciliationTable(r dto.ReconciliationResponse) func(*tabwriter.Writer) {
	return func(tw *tabwriter.Writer) {
		status := "CONSISTENT"
		if !r.Consistent {
			status = "INCONSISTENT"
		}
		fmt.Fprintf(tw, "Tenant:\t%s\n", r.TenantID)
		fmt.Fprintf(tw, "Status:\t%s\n", status)
		fmt.Fprintf(tw, "Days:\t%d\n", r.Days)
		fmt.Fprintf(tw, "Cash in:\t%s\n", r.CashIn)
		fmt.Fprintf(tw, "Cash out:\t%s\n", r.CashOut)
		fmt.Fprintf(tw, "Closing balance:\t%s\n", r.ClosingBalance)
		if r.Problem != "" {
			fmt.Fprintf(tw, "Problem:\t%s\n", r.Problem)
		}
	}
}

func batchTable(b dto.BatchResponse) func(*tabwriter.Writer) {
	return func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "Run:\t%s\n", b.RunID)
		fmt.Fprintf(tw, "Tenant:\t%s\n", b.TenantID)
		fmt.Fprintf(tw, "Processed:\t%d\n", b.Processed)
		fmt.Fprintf(tw, "Updated:\t%d\n", b.Updated)
		fmt.Fprintf(tw, "Unchanged:\t%d\n", b.Unchanged)
		fmt.Fprintf(tw, "Skipped:\t%d\n", b.Skipped)
		fmt.Fprintf(tw, "Failed:\t%d\n", len(b.Failed))
		for _, f := range b.Failed {
			fmt.Fprintf(tw, "  %s\t%s\n", f.MemberID, truncate(f.Error, 80))
		}
	}
}

func defaultersTable(d dto.DefaultersResponse) func(*tabwriter.Writer) {
	return func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "DUE DATE\tMEMBER\tPHONE\tLOAN\tLOAN AMOUNT\tBALANCE\tSTATUS\tOVERDUE DAYS")
		for _, r := range d.Rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
				r.DueDate, truncate(r.Member, 24), r.Phone, r.LoanID, r.LoanAmount, r.Balance, r.Status, r.OverdueDays)
		}
	}
}

func maturityReportTable(m dto.MaturityReportResponse) func(*tabwriter.Writer) {
	return func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "MEMBER\tJOIN DATE\tMATURITY DATE\tDEPOSIT\tTARGET\tINTEREST\tMATURITY AMOUNT\tLOAN\tNET PAYABLE\tSTATUS")
		for _, r := range m.Rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				truncate(r.Member, 24), r.JoinDate, r.MaturityDate, r.CurrentDeposit, r.TargetDeposit,
				r.ProjectedInterest, r.MaturityAmount, r.OutstandingLoan, r.NetPayable, r.Status)
		}
	}
}

func summaryTable(s dto.SummaryResponse) func(*tabwriter.Writer) {
	return func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "Member:\t%s (%s)\n", s.Member, s.MemberID)
		fmt.Fprintf(tw, "Total deposits:\t%s\n", s.TotalDeposits)
		fmt.Fprintf(tw, "Loan taken:\t%s\n", s.LoanTaken)
		fmt.Fprintf(tw, "Principal paid:\t%s\n", s.PrincipalPaid)
		fmt.Fprintf(tw, "Interest paid:\t%s\n", s.InterestPaid)
		fmt.Fprintf(tw, "Active loans:\t%d\n", s.ActiveLoans)
		fmt.Fprintf(tw, "Active loan balance:\t%s\n", s.ActiveLoanBalance)
		fmt.Fprintf(tw, "Total fines:\t%s\n", s.TotalFines)
		fmt.Fprintf(tw, "Net worth:\t%s\n", s.NetWorth)
		fmt.Fprintf(tw, "Ledger balance:\t%s\n", s.LedgerClosingBalance)
		fmt.Fprintf(tw, "80%% loan limit:\t%s\n", s.EightyPercentLimit)
		if s.MaturityStatus != "" {
			fmt.Fprintf(tw, "Maturity:\t%s (%s)\n", s.MaturityAmount, s.MaturityStatus)
		}
		if s.LastActivity != nil {
			fmt.Fprintf(tw, "Last activity:\t%s\n", *s.LastActivity)
		}
	}
}

package dto

import (
	"sort"
	"time"

	"github.com/iho/coopledger/internal/domain"
	"github.com/iho/coopledger/internal/usecase"
)

// RecordResponse represents a transaction record in API responses.
type RecordResponse struct {
	TransactionDate       string    `json:"transaction_date"`
	CreatedAt             time.Time `json:"created_at"`
	LoanReferenceID       *string   `json:"loan_reference_id,omitempty"`
	ID                    string    `json:"id"`
	TenantID              string    `json:"tenant_id"`
	MemberID              string    `json:"member_id"`
	Mode                  string    `json:"mode"`
	Kind                  string    `json:"kind"`
	DepositAmount         string    `json:"deposit_amount"`
	LoanInstallmentAmount string    `json:"loan_installment_amount"`
	InterestAmount        string    `json:"interest_amount"`
	FineAmount            string    `json:"fine_amount"`
	NeedsReview           bool      `json:"needs_review"`
}

// RecordFromDomain converts a domain record to response.
func RecordFromDomain(r *domain.TransactionRecord) *RecordResponse {
	return &RecordResponse{
		TransactionDate:       formatDate(r.TransactionDate),
		CreatedAt:             r.CreatedAt,
		LoanReferenceID:       r.LoanReferenceID,
		ID:                    r.ID,
		TenantID:              r.TenantID,
		MemberID:              r.MemberID,
		Mode:                  r.Mode,
		Kind:                  string(r.EffectiveKind()),
		DepositAmount:         r.DepositAmount.String(),
		LoanInstallmentAmount: r.LoanInstallmentAmount.String(),
		InterestAmount:        r.InterestAmount.String(),
		FineAmount:            r.FineAmount.String(),
		NeedsReview:           r.NeedsReview,
	}
}

// RecordsFromDomain converts domain records to responses.
func RecordsFromDomain(records []domain.TransactionRecord) []*RecordResponse {
	result := make([]*RecordResponse, len(records))
	for i := range records {
		result[i] = RecordFromDomain(&records[i])
	}
	return result
}

// AmbiguityResponse flags a record that needs human review.
type AmbiguityResponse struct {
	Assigned string `json:"assigned"`
	Reason   string `json:"reason"`
}

// SplitResponse shows how an installment was divided.
type SplitResponse struct {
	Amount           string `json:"amount"`
	InterestDue      string `json:"interest_due"`
	InterestPaid     string `json:"interest_paid"`
	PrincipalPortion string `json:"principal_portion"`
	Excess           string `json:"excess"`
	BalanceBefore    string `json:"balance_before"`
	BalanceAfter     string `json:"balance_after"`
}

// SplitFromDomain converts an installment split to response.
func SplitFromDomain(s *domain.InstallmentSplit) *SplitResponse {
	return &SplitResponse{
		Amount:           s.Amount.String(),
		InterestDue:      s.InterestDue.String(),
		InterestPaid:     s.InterestPaid.String(),
		PrincipalPortion: s.PrincipalPortion.String(),
		Excess:           s.Excess.String(),
		BalanceBefore:    s.BalanceBefore.String(),
		BalanceAfter:     s.BalanceAfter.String(),
	}
}

// IngestResponse is the outcome of ingesting a record or an installment.
type IngestResponse struct {
	Record    *RecordResponse    `json:"record"`
	Loan      *LoanResponse      `json:"loan,omitempty"`
	Split     *SplitResponse     `json:"split,omitempty"`
	Ambiguity *AmbiguityResponse `json:"ambiguity,omitempty"`
}

// IngestFromUseCase converts an ingest result to response.
func IngestFromUseCase(res *usecase.IngestResult) *IngestResponse {
	resp := &IngestResponse{Record: RecordFromDomain(res.Record)}
	if res.Loan != nil {
		resp.Loan = LoanFromDomain(res.Loan)
	}
	if res.Split != nil {
		resp.Split = SplitFromDomain(res.Split)
	}
	if res.Ambiguity != nil {
		resp.Ambiguity = &AmbiguityResponse{
			Assigned: string(res.Ambiguity.Assigned),
			Reason:   res.Ambiguity.Reason,
		}
	}
	return resp
}

// ListRecordsResponse represents a page of records.
type ListRecordsResponse struct {
	Records []*RecordResponse `json:"records"`
	Total   int64             `json:"total"`
}

// LedgerDayResponse is one ledger row.
type LedgerDayResponse struct {
	Date           string `json:"date"`
	Deposit        string `json:"deposit"`
	EMI            string `json:"emi"`
	LoanOut        string `json:"loan_out"`
	Interest       string `json:"interest"`
	Fine           string `json:"fine"`
	CashIn         string `json:"cash_in"`
	CashOut        string `json:"cash_out"`
	NetFlow        string `json:"net_flow"`
	RunningBalance string `json:"running_balance"`
}

// LedgerResponse represents a ledger.
type LedgerResponse struct {
	Days []LedgerDayResponse `json:"days"`
}

// LedgerFromDomain converts ledger days to response.
func LedgerFromDomain(days []domain.LedgerDay) LedgerResponse {
	rows := make([]LedgerDayResponse, len(days))
	for i, d := range days {
		rows[i] = LedgerDayResponse{
			Date:           formatDate(d.Date),
			Deposit:        d.DepositTotal.String(),
			EMI:            d.EMITotal.String(),
			LoanOut:        d.LoanDisbursedTotal.String(),
			Interest:       d.InterestTotal.String(),
			Fine:           d.FineTotal.String(),
			CashIn:         d.CashIn.String(),
			CashOut:        d.CashOut.String(),
			NetFlow:        d.NetFlow.String(),
			RunningBalance: d.RunningBalance.String(),
		}
	}
	return LedgerResponse{Days: rows}
}

// ReconciliationResponse is the outcome of a ledger reconciliation.
type ReconciliationResponse struct {
	CheckedAt      time.Time `json:"checked_at"`
	TenantID       string    `json:"tenant_id"`
	Problem        string    `json:"problem,omitempty"`
	CashIn         string    `json:"cash_in"`
	CashOut        string    `json:"cash_out"`
	ClosingBalance string    `json:"closing_balance"`
	Days           int       `json:"days"`
	Consistent     bool      `json:"consistent"`
}

// ReconciliationFromUseCase converts a reconciliation report to response.
func ReconciliationFromUseCase(r *usecase.ReconciliationReport) *ReconciliationResponse {
	return &ReconciliationResponse{
		CheckedAt:      r.CheckedAt,
		TenantID:       r.TenantID,
		Problem:        r.Problem,
		CashIn:         r.Totals.CashIn.String(),
		CashOut:        r.Totals.CashOut.String(),
		ClosingBalance: r.Totals.ClosingBalance.String(),
		Days:           r.Totals.Days,
		Consistent:     r.Consistent,
	}
}

// LoanResponse represents a loan in API responses.
type LoanResponse struct {
	CreatedAt                   time.Time `json:"created_at"`
	UpdatedAt                   time.Time `json:"updated_at"`
	DisbursedDate               *string   `json:"disbursed_date,omitempty"`
	NextDueDate                 *string   `json:"next_due_date,omitempty"`
	ID                          string    `json:"id"`
	TenantID                    string    `json:"tenant_id"`
	MemberID                    string    `json:"member_id"`
	Status                      string    `json:"status"`
	PrincipalAmount             string    `json:"principal_amount"`
	InterestRatePercentPerMonth string    `json:"interest_rate_percent_per_month"`
	RemainingBalance            string    `json:"remaining_balance"`
}

// LoanFromDomain converts a domain loan to response.
func LoanFromDomain(l *domain.Loan) *LoanResponse {
	return &LoanResponse{
		CreatedAt:                   l.CreatedAt,
		UpdatedAt:                   l.UpdatedAt,
		DisbursedDate:               formatDatePtr(l.DisbursedDate),
		NextDueDate:                 formatDatePtr(l.NextDueDate),
		ID:                          l.ID,
		TenantID:                    l.TenantID,
		MemberID:                    l.MemberID,
		Status:                      string(l.Status),
		PrincipalAmount:             l.PrincipalAmount.String(),
		InterestRatePercentPerMonth: l.InterestRatePercentPerMonth.String(),
		RemainingBalance:            l.RemainingBalance.String(),
	}
}

// LoansFromDomain converts domain loans to responses.
func LoansFromDomain(loans []domain.Loan) []*LoanResponse {
	result := make([]*LoanResponse, len(loans))
	for i := range loans {
		result[i] = LoanFromDomain(&loans[i])
	}
	return result
}

// ListLoansResponse represents a member's loans.
type ListLoansResponse struct {
	Loans []*LoanResponse `json:"loans"`
	Total int64           `json:"total"`
}

// LoanLimitResponse is what a member may borrow.
type LoanLimitResponse struct {
	MemberID               string `json:"member_id"`
	QualifyingDepositTotal string `json:"qualifying_deposit_total"`
	EightyPercentLimit     string `json:"eighty_percent_limit"`
}

// LoanLimitFromUseCase converts a loan limit to response.
func LoanLimitFromUseCase(l *usecase.LoanLimit) *LoanLimitResponse {
	return &LoanLimitResponse{
		MemberID:               l.MemberID,
		QualifyingDepositTotal: l.QualifyingDepositTotal.String(),
		EightyPercentLimit:     l.EightyPercentLimit.String(),
	}
}

// MaturityResponse represents a maturity record in API responses.
type MaturityResponse struct {
	UpdatedAt           time.Time  `json:"updated_at"`
	ClaimedAt           *time.Time `json:"claimed_at,omitempty"`
	StartDate           string     `json:"start_date"`
	MaturityDate        string     `json:"maturity_date"`
	ID                  string     `json:"id"`
	TenantID            string     `json:"tenant_id"`
	MemberID            string     `json:"member_id"`
	Status              string     `json:"status"`
	TotalDeposit        string     `json:"total_deposit"`
	MonthlyInterestRate string     `json:"monthly_interest_rate"`
	CurrentInterest     string     `json:"current_interest"`
	FullInterest        string     `json:"full_interest"`
	AdjustedInterest    string     `json:"adjusted_interest"`
	LoanAdjustment      string     `json:"loan_adjustment"`
	MaturityAmount      string     `json:"maturity_amount"`
	MonthsCompleted     int        `json:"months_completed"`
	RemainingMonths     int        `json:"remaining_months"`
	ManualOverride      bool       `json:"manual_override"`
}

// MaturityFromDomain converts a maturity record to response.
func MaturityFromDomain(m *domain.MaturityRecord) *MaturityResponse {
	return &MaturityResponse{
		UpdatedAt:           m.UpdatedAt,
		ClaimedAt:           m.ClaimedAt,
		StartDate:           formatDate(m.StartDate),
		MaturityDate:        formatDate(m.MaturityDate),
		ID:                  m.ID,
		TenantID:            m.TenantID,
		MemberID:            m.MemberID,
		Status:              string(m.Status),
		TotalDeposit:        m.TotalDeposit.String(),
		MonthlyInterestRate: m.MonthlyInterestRate.String(),
		CurrentInterest:     m.CurrentInterest.String(),
		FullInterest:        m.FullInterest.String(),
		AdjustedInterest:    m.AdjustedInterest.String(),
		LoanAdjustment:      m.LoanAdjustment.String(),
		MaturityAmount:      m.MaturityAmount().String(),
		MonthsCompleted:     m.MonthsCompleted,
		RemainingMonths:     m.RemainingMonths,
		ManualOverride:      m.ManualOverride,
	}
}

// RecomputeResponse is the outcome of recomputing one member.
type RecomputeResponse struct {
	Maturity *MaturityResponse `json:"maturity,omitempty"`
	Outcome  string            `json:"outcome"`
}

// RecomputeFromUseCase converts a recompute result to response.
func RecomputeFromUseCase(r *usecase.RecomputeResult) *RecomputeResponse {
	resp := &RecomputeResponse{Outcome: string(r.Outcome)}
	if r.Record != nil {
		resp.Maturity = MaturityFromDomain(r.Record)
	}
	return resp
}

// BatchFailure is one member a batch run could not recompute.
type BatchFailure struct {
	MemberID string `json:"member_id"`
	Error    string `json:"error"`
}

// BatchResponse summarizes a tenant-wide recomputation.
type BatchResponse struct {
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	RunID      string         `json:"run_id"`
	TenantID   string         `json:"tenant_id"`
	Failed     []BatchFailure `json:"failed"`
	Processed  int            `json:"processed"`
	Updated    int            `json:"updated"`
	Unchanged  int            `json:"unchanged"`
	Skipped    int            `json:"skipped"`
}

// BatchFromUseCase converts a batch result to response. Failures are sorted
// by member ID.
func BatchFromUseCase(r *usecase.BatchResult) *BatchResponse {
	failed := make([]BatchFailure, 0, len(r.Failed))
	for memberID, msg := range r.Failed {
		failed = append(failed, BatchFailure{MemberID: memberID, Error: msg})
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i].MemberID < failed[j].MemberID })

	return &BatchResponse{
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		RunID:      r.RunID,
		TenantID:   r.TenantID,
		Failed:     failed,
		Processed:  r.Processed,
		Updated:    r.Updated,
		Unchanged:  r.Unchanged,
		Skipped:    r.Skipped,
	}
}

// MaturityReportRowResponse is one line of the maturity report.
type MaturityReportRowResponse struct {
	JoinDate          string `json:"join_date"`
	MaturityDate      string `json:"maturity_date"`
	MemberID          string `json:"member_id"`
	Member            string `json:"member"`
	Status            string `json:"status"`
	CurrentDeposit    string `json:"current_deposit"`
	TargetDeposit     string `json:"target_deposit"`
	ProjectedInterest string `json:"projected_interest"`
	MaturityAmount    string `json:"maturity_amount"`
	OutstandingLoan   string `json:"outstanding_loan"`
	NetPayable        string `json:"net_payable"`
}

// MaturityReportResponse represents the maturity report.
type MaturityReportResponse struct {
	Rows []MaturityReportRowResponse `json:"rows"`
}

// MaturityReportFromDomain converts report rows to response.
func MaturityReportFromDomain(rows []domain.MaturityReportRow) MaturityReportResponse {
	out := make([]MaturityReportRowResponse, len(rows))
	for i, r := range rows {
		out[i] = MaturityReportRowResponse{
			JoinDate:          formatDate(r.JoinDate),
			MaturityDate:      formatDate(r.MaturityDate),
			MemberID:          r.MemberID,
			Member:            r.MemberName,
			Status:            string(r.Status),
			CurrentDeposit:    r.CurrentDeposit.String(),
			TargetDeposit:     r.TargetDeposit.String(),
			ProjectedInterest: r.ProjectedInterest.String(),
			MaturityAmount:    r.MaturityAmount.String(),
			OutstandingLoan:   r.OutstandingLoan.String(),
			NetPayable:        r.NetPayable.String(),
		}
	}
	return MaturityReportResponse{Rows: out}
}

// DefaulterRowResponse is one line of the defaulters report.
type DefaulterRowResponse struct {
	DueDate     string `json:"due_date"`
	MemberID    string `json:"member_id"`
	Member      string `json:"member"`
	Phone       string `json:"phone"`
	LoanID      string `json:"loan_id"`
	LoanAmount  string `json:"loan_amount"`
	Balance     string `json:"balance"`
	Status      string `json:"status"`
	OverdueDays int    `json:"overdue_days"`
}

// DefaultersResponse represents the defaulters report.
type DefaultersResponse struct {
	Rows []DefaulterRowResponse `json:"rows"`
}

// DefaultersFromDomain converts report rows to response.
func DefaultersFromDomain(rows []domain.DefaulterReportRow) DefaultersResponse {
	out := make([]DefaulterRowResponse, len(rows))
	for i, r := range rows {
		out[i] = DefaulterRowResponse{
			DueDate:     formatDate(r.DueDate),
			MemberID:    r.MemberID,
			Member:      r.MemberName,
			Phone:       r.Phone,
			LoanID:      r.LoanID,
			LoanAmount:  r.PrincipalAmount.String(),
			Balance:     r.RemainingBalance.String(),
			Status:      string(r.Severity),
			OverdueDays: r.DaysOverdue,
		}
	}
	return DefaultersResponse{Rows: out}
}

// SummaryResponse represents a member's financial summary.
type SummaryResponse struct {
	LastActivity         *string `json:"last_activity,omitempty"`
	MemberID             string  `json:"member_id"`
	Member               string  `json:"member"`
	MaturityStatus       string  `json:"maturity_status,omitempty"`
	TotalDeposits        string  `json:"total_deposits"`
	LoanTaken            string  `json:"loan_taken"`
	PrincipalPaid        string  `json:"principal_paid"`
	InterestPaid         string  `json:"interest_paid"`
	ActiveLoanBalance    string  `json:"active_loan_balance"`
	NetWorth             string  `json:"net_worth"`
	TotalFines           string  `json:"total_fines"`
	LedgerClosingBalance string  `json:"ledger_closing_balance"`
	EightyPercentLimit   string  `json:"eighty_percent_limit"`
	MaturityAmount       string  `json:"maturity_amount"`
	ActiveLoans          int     `json:"active_loans"`
}

// SummaryFromDomain converts a member summary to response.
func SummaryFromDomain(s *domain.MemberSummary) *SummaryResponse {
	return &SummaryResponse{
		LastActivity:         formatDatePtr(s.LastActivity),
		MemberID:             s.MemberID,
		Member:               s.MemberName,
		MaturityStatus:       string(s.MaturityStatus),
		TotalDeposits:        s.TotalDeposits.String(),
		LoanTaken:            s.LoanTaken.String(),
		PrincipalPaid:        s.PrincipalPaid.String(),
		InterestPaid:         s.InterestPaid.String(),
		ActiveLoanBalance:    s.ActiveLoanBalance.String(),
		NetWorth:             s.NetWorth.String(),
		TotalFines:           s.TotalFines.String(),
		LedgerClosingBalance: s.LedgerClosingBalance.String(),
		EightyPercentLimit:   s.EightyPercentLimit.String(),
		MaturityAmount:       s.MaturityAmount.String(),
		ActiveLoans:          s.ActiveLoans,
	}
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.DateOnly)
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatDate(*t)
	return &s
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Record metrics
	RecordsIngested           *prometheus.CounterVec
	ClassificationAmbiguities prometheus.Counter

	// Loan metrics
	LoansCreated        prometheus.Counter
	LoansDisbursed      prometheus.Counter
	LoansRejected       prometheus.Counter
	LoansClosed         prometheus.Counter
	InstallmentsApplied prometheus.Counter
	InstallmentAmount   prometheus.Histogram
	LoanErrors          *prometheus.CounterVec

	// Maturity metrics
	MaturityRecomputations *prometheus.CounterVec
	MaturityBatchDuration  prometheus.Histogram
	MaturityClaims         prometheus.Counter
	MaturityOverrides      prometheus.Counter

	// Report metrics
	Defaulters       *prometheus.GaugeVec
	SummaryCacheHits *prometheus.CounterVec

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	HTTPInFlight prometheus.Gauge

	// Database metrics
	DBConnections *prometheus.GaugeVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec

	// Outbox metrics
	OutboxPublished prometheus.Counter
	OutboxFailures  prometheus.Counter

	// Audit metrics
	AuditLogsCreated *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics on the default registerer.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all metrics on reg. Tests pass a fresh registry so
// repeated construction does not collide.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Record metrics
		RecordsIngested: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coopledger_records_ingested_total",
				Help: "Total transaction records ingested by kind",
			},
			[]string{"kind"},
		),
		ClassificationAmbiguities: factory.NewCounter(prometheus.CounterOpts{
			Name: "coopledger_classification_ambiguities_total",
			Help: "Records whose mode could not be classified confidently",
		}),

		// Loan metrics
		LoansCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "coopledger_loans_created_total",
			Help: "Total loan applications created",
		}),
		LoansDisbursed: factory.NewCounter(prometheus.CounterOpts{
			Name: "coopledger_loans_disbursed_total",
			Help: "Total loans disbursed",
		}),
		LoansRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "coopledger_loans_rejected_total",
			Help: "Total loans rejected",
		}),
		LoansClosed: factory.NewCounter(prometheus.CounterOpts{
			Name: "coopledger_loans_closed_total",
			Help: "Total loans repaid in full",
		}),
		InstallmentsApplied: factory.NewCounter(prometheus.CounterOpts{
			Name: "coopledger_installments_applied_total",
			Help: "Total loan installments applied",
		}),
		InstallmentAmount: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "coopledger_installment_amount",
			Help:    "Installment amounts",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000},
		}),
		LoanErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coopledger_loan_errors_total",
				Help: "Total loan operation errors by type",
			},
			[]string{"error_type"},
		),

		// Maturity metrics
		MaturityRecomputations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coopledger_maturity_recomputations_total",
				Help: "Maturity recomputations by outcome",
			},
			[]string{"outcome"},
		),
		MaturityBatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "coopledger_maturity_batch_duration_seconds",
			Help:    "Duration of tenant maturity batch runs",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}),
		MaturityClaims: factory.NewCounter(prometheus.CounterOpts{
			Name: "coopledger_maturity_claims_total",
			Help: "Total maturity payouts claimed",
		}),
		MaturityOverrides: factory.NewCounter(prometheus.CounterOpts{
			Name: "coopledger_maturity_overrides_total",
			Help: "Total manual maturity overrides",
		}),

		// Report metrics
		Defaulters: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "coopledger_defaulters",
				Help: "Defaulting loans found by the last report, by severity",
			},
			[]string{"tenant_id", "severity"},
		),
		SummaryCacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coopledger_summary_cache_total",
				Help: "Member summary cache lookups by result",
			},
			[]string{"result"},
		),

		// API metrics
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coopledger_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coopledger_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "coopledger_http_in_flight_requests",
			Help: "HTTP requests currently being served",
		}),

		// Database metrics
		DBConnections: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "coopledger_db_connections",
				Help: "Database pool connections by state",
			},
			[]string{"state"},
		),

		// Rate limiting metrics
		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coopledger_rate_limit_hits_total",
				Help: "Total rate limit hits",
			},
			[]string{"ip"},
		),

		// Outbox metrics
		OutboxPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "coopledger_outbox_published_total",
			Help: "Total outbox events published",
		}),
		OutboxFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "coopledger_outbox_failures_total",
			Help: "Total outbox events that failed to publish",
		}),

		// Audit metrics
		AuditLogsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coopledger_audit_logs_total",
				Help: "Total audit logs created",
			},
			[]string{"action", "status"},
		),
	}
}

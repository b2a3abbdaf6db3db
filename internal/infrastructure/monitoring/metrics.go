package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type DBMetrics struct {
	QueryDuration *prometheus.HistogramVec
}

type BusinessMetrics struct {
	EligibilityDecisionsTotal *prometheus.CounterVec
	LoansCreatedTotal         prometheus.Counter
	CustomersRegisteredTotal  prometheus.Counter
	ImportedRowsTotal         *prometheus.CounterVec
	CreditScoreDistribution   prometheus.Histogram
}

var (
	DB = DBMetrics{
		QueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "credit_engine_db_query_duration_seconds",
				Help:    "Histogram of database query latencies.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"query_name", "status"},
		),
	}

	Business = BusinessMetrics{
		EligibilityDecisionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_engine_eligibility_decisions_total",
				Help: "Total number of eligibility decisions by outcome.",
			},
			[]string{"outcome"},
		),
		LoansCreatedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "credit_engine_loans_created_total",
				Help: "Total number of loans created through the approval path.",
			},
		),
		CustomersRegisteredTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "credit_engine_customers_registered_total",
				Help: "Total number of customers registered.",
			},
		),
		ImportedRowsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_engine_imported_rows_total",
				Help: "Total number of rows loaded by bulk import, by entity and result.",
			},
			[]string{"entity", "result"},
		),
		CreditScoreDistribution: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "credit_engine_credit_score",
				Help:    "Distribution of computed credit scores.",
				Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
			},
		),
	}
)

func RecordEligibilityDecision(outcome string) {
	Business.EligibilityDecisionsTotal.WithLabelValues(outcome).Inc()
}

func RecordLoanCreated() {
	Business.LoansCreatedTotal.Inc()
}

func RecordCustomerRegistered() {
	Business.CustomersRegisteredTotal.Inc()
}

func RecordImportedRow(entity, result string) {
	Business.ImportedRowsTotal.WithLabelValues(entity, result).Inc()
}

func RecordCreditScore(score int) {
	Business.CreditScoreDistribution.Observe(float64(score))
}

func RecordDBQuery(queryName, status string, duration time.Duration) {
	DB.QueryDuration.WithLabelValues(queryName, status).Observe(duration.Seconds())
}

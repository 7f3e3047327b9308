package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "secursales_"

	resultSuccess  = "success"
	resultError    = "error"
	resultConflict = "conflict"
)

var (
	registerOnce sync.Once

	orderPlacedTotal   *prometheus.CounterVec
	orderPlacedAmount  *prometheus.CounterVec
	orderPlacedLatency *prometheus.HistogramVec

	paymentTotal   *prometheus.CounterVec
	paymentAmount  *prometheus.CounterVec
	paymentLatency *prometheus.HistogramVec

	ledgerConflicts prometheus.Counter
	overdueMarked   prometheus.Counter

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec
)

// Init registers sales metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		orderPlacedTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "orders_placed_total",
				Help: "Total placed orders by kind and result",
			},
			[]string{"kind", "result"},
		)
		orderPlacedAmount = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "orders_placed_amount_total",
				Help: "Sum of placed order totals in currency units",
			},
			[]string{"kind"},
		)
		orderPlacedLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "orders_placed_latency_seconds",
				Help:    "Order placement latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		paymentTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "payments_total",
				Help: "Total payment operations by kind and result",
			},
			[]string{"kind", "result"},
		)
		paymentAmount = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "payments_amount_total",
				Help: "Sum of recorded payments in currency units",
			},
			[]string{"kind"},
		)
		paymentLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "payments_latency_seconds",
				Help:    "Payment operation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		)

		ledgerConflicts = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "ledger_version_conflicts_total",
				Help: "Ledger writes retried after a concurrent update",
			},
		)
		overdueMarked = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "schedule_entries_overdue_total",
				Help: "Schedule entries flagged overdue by the scanner",
			},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ledger_export_total",
				Help: "Total ledger exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ledger_export_latency_seconds",
				Help:    "Ledger export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			orderPlacedTotal,
			orderPlacedAmount,
			orderPlacedLatency,
			paymentTotal,
			paymentAmount,
			paymentLatency,
			ledgerConflicts,
			overdueMarked,
			exportTotal,
			exportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveOrderPlaced records an order placement.
func ObserveOrderPlaced(kind, result string, amount int64, duration time.Duration) {
	if kind == "" {
		kind = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if orderPlacedTotal != nil {
		orderPlacedTotal.WithLabelValues(kind, result).Inc()
	}
	if orderPlacedAmount != nil && result == resultSuccess && amount > 0 {
		orderPlacedAmount.WithLabelValues(kind).Add(float64(amount))
	}
	if orderPlacedLatency != nil {
		orderPlacedLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObservePayment records a payment operation.
func ObservePayment(kind, result string, amount int64, duration time.Duration) {
	if kind == "" {
		kind = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if paymentTotal != nil {
		paymentTotal.WithLabelValues(kind, result).Inc()
	}
	if paymentAmount != nil && result == resultSuccess && amount > 0 {
		paymentAmount.WithLabelValues(kind).Add(float64(amount))
	}
	if paymentLatency != nil {
		paymentLatency.WithLabelValues(kind).Observe(duration.Seconds())
	}
}

// IncLedgerConflict counts a retried ledger write.
func IncLedgerConflict() {
	if ledgerConflicts != nil {
		ledgerConflicts.Inc()
	}
}

// AddOverdueMarked counts entries flagged overdue.
func AddOverdueMarked(count int) {
	if count <= 0 {
		return
	}
	if overdueMarked != nil {
		overdueMarked.Add(float64(count))
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess  = resultSuccess
	ResultError    = resultError
	ResultConflict = resultConflict
)

package metrics

import (
	"database/sql"
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "ledgers_open",
			Help: "Ledgers not yet completed",
		},
		func() float64 {
			return queryInt(db, logger, "SELECT COUNT(*) FROM paiements WHERE statut <> 'termine'")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "receivables_outstanding",
			Help: "Sum of remaining amounts on open ledgers",
		},
		func() float64 {
			return queryInt(db, logger, "SELECT COALESCE(SUM(reste_a_payer), 0) FROM paiements WHERE statut <> 'termine'")
		},
	))
}

func queryInt(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}

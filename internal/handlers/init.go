package handlers

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/anishghanwat/StoreMyBottleApp/internal/cellar"
	"github.com/anishghanwat/StoreMyBottleApp/pkg/logging"
)

var (
	db      *sql.DB
	logger  logging.Logger
	engine  *cellar.Engine
	metrics *CellarmanMetrics
)

// CellarmanMetrics holds all Prometheus metrics for Cellarman
type CellarmanMetrics struct {
	TokensIssued  *prometheus.CounterVec
	Settlements   *prometheus.CounterVec
	TokensSwept   prometheus.Counter
	Purchases     *prometheus.CounterVec
	DBQueries     *prometheus.CounterVec
	DBDuration    *prometheus.HistogramVec
	DBConnections *prometheus.GaugeVec
}

// EngineMetrics adapts the service metrics for the redemption engine.
func (m *CellarmanMetrics) EngineMetrics() *cellar.Metrics {
	if m == nil {
		return nil
	}
	return &cellar.Metrics{
		TokensIssued: m.TokensIssued,
		Settlements:  m.Settlements,
		TokensSwept:  m.TokensSwept,
	}
}

// Init initializes the handlers with database, logger, engine and metrics
func Init(database *sql.DB, log logging.Logger, redemptionEngine *cellar.Engine, cellarmanMetrics *CellarmanMetrics) {
	db = database
	logger = log
	engine = redemptionEngine
	metrics = cellarmanMetrics
}

func countPurchase(operation, status string) {
	if metrics != nil && metrics.Purchases != nil {
		metrics.Purchases.WithLabelValues(operation, status).Inc()
	}
}

package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Simulation metrics
	simulationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cfd_backtest_simulations_total",
			Help: "Total number of simulation runs",
		},
		[]string{"model"},
	)

	anomaliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cfd_backtest_anomalies_total",
			Help: "Input anomalies recovered during simulation",
		},
		[]string{"model"},
	)

	liquidationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cfd_backtest_liquidations_total",
			Help: "Forced liquidations of the hedge position",
		},
	)

	finalValue = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cfd_backtest_final_value",
			Help: "Final portfolio value of the most recent run",
		},
		[]string{"model"},
	)

	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cfd_backtest_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	memoHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cfd_backtest_memo_hits_total",
			Help: "Simulation results served from the memo cache",
		},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cfd_backtest_errors_total",
			Help: "Total number of failed runs by stage",
		},
		[]string{"stage"},
	)
)

func init() {
	// Register metrics
	prometheus.MustRegister(simulationsTotal)
	prometheus.MustRegister(anomaliesTotal)
	prometheus.MustRegister(liquidationsTotal)
	prometheus.MustRegister(finalValue)
	prometheus.MustRegister(stageDuration)
	prometheus.MustRegister(memoHitsTotal)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler handles Prometheus metrics endpoint
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordSimulation records one finished simulator run.
func RecordSimulation(model string, anomalies, liquidations int, value float64) {
	simulationsTotal.WithLabelValues(model).Inc()
	anomaliesTotal.WithLabelValues(model).Add(float64(anomalies))
	liquidationsTotal.Add(float64(liquidations))
	finalValue.WithLabelValues(model).Set(value)
}

// ObserveStage records how long a pipeline stage took.
func ObserveStage(stage string, d time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func RecordMemoHit() {
	memoHitsTotal.Inc()
}

// RecordError records a failed run
func RecordError(stage string) {
	errorsTotal.WithLabelValues(stage).Inc()
}

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// aggregation pipeline.
type Metrics struct {
	UnitsFetched *prometheus.CounterVec // labels: source
	UnitsWritten *prometheus.CounterVec // labels: source
	UnitsSkipped *prometheus.CounterVec // labels: source
	UnitsEmpty   *prometheus.CounterVec // labels: source
	UnitsFailed  *prometheus.CounterVec // labels: source

	UnitDuration *prometheus.HistogramVec // labels: source

	RowsWritten     *prometheus.CounterVec // labels: source
	PipelineRunning prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.UnitsFetched,
		m.UnitsWritten,
		m.UnitsSkipped,
		m.UnitsEmpty,
		m.UnitsFailed,
		m.UnitDuration,
		m.RowsWritten,
		m.PipelineRunning,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		UnitsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ocean_etl",
			Name:      "units_fetched_total",
			Help:      "Units whose upstream fetch returned data.",
		}, []string{"source"}),
		UnitsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ocean_etl",
			Name:      "units_written_total",
			Help:      "Units whose artifact was written.",
		}, []string{"source"}),
		UnitsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ocean_etl",
			Name:      "units_skipped_total",
			Help:      "Units skipped because their artifact already exists.",
		}, []string{"source"}),
		UnitsEmpty: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ocean_etl",
			Name:      "units_empty_total",
			Help:      "Units with no upstream data for their window.",
		}, []string{"source"}),
		UnitsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ocean_etl",
			Name:      "units_failed_total",
			Help:      "Units that failed to fetch or build; the run continues.",
		}, []string{"source"}),
		UnitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ocean_etl",
			Name:      "unit_duration_seconds",
			Help:      "Wall time to take one unit from fetch to written artifact.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"source"}),
		RowsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ocean_etl",
			Name:      "rows_written_total",
			Help:      "Aggregated cell rows written across all artifacts.",
		}, []string{"source"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ocean_etl",
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
	}
}

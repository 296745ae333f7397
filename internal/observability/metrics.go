package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for a preprocessing run.
type Metrics struct {
	ArchivesProcessed prometheus.Counter
	SiteErrors        *prometheus.CounterVec // labels: reason={missing_metadata,missing_table,missing_column,invalid_value,invalid_name}
	MalformedRows     *prometheus.CounterVec // labels: cadence={daily,monthly}
	RowsAggregated    *prometheus.CounterVec // labels: cadence={daily,monthly}
	ForcingFiles      prometheus.Counter
	RunInProgress     prometheus.Gauge

	ArchiveDuration prometheus.Histogram
}

// NewMetrics creates and registers all run metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ArchivesProcessed,
		m.SiteErrors,
		m.MalformedRows,
		m.RowsAggregated,
		m.ForcingFiles,
		m.RunInProgress,
		m.ArchiveDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ArchivesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fluxprep",
			Name:      "archives_processed_total",
			Help:      "Site archives fully processed.",
		}),
		SiteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fluxprep",
			Name:      "site_errors_total",
			Help:      "Site archives rejected, by reason.",
		}, []string{"reason"}),
		MalformedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fluxprep",
			Name:      "malformed_timestamps_total",
			Help:      "Rows whose timestamp could not be normalized.",
		}, []string{"cadence"}),
		RowsAggregated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fluxprep",
			Name:      "rows_aggregated_total",
			Help:      "Rows appended to the aggregate benchmark tables.",
		}, []string{"cadence"}),
		ForcingFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fluxprep",
			Name:      "forcing_files_written_total",
			Help:      "Per-site forcing files written.",
		}),
		RunInProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fluxprep",
			Name:      "run_in_progress",
			Help:      "1 while a preprocessing run is active.",
		}),
		ArchiveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fluxprep",
			Name:      "archive_duration_seconds",
			Help:      "Time to extract, reshape and write one site archive.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}

// WriteTextfile dumps the default registry in the text exposition format,
// for pickup by a node_exporter textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

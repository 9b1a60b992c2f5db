package metrics

import (
	"strings"

	"catalog-import-service/internal/importer"
	"github.com/prometheus/client_golang/prometheus"
)

// ImportMetrics records row and run outcomes for catalog imports
type ImportMetrics struct {
	rows        *prometheus.CounterVec
	runs        *prometheus.CounterVec
	runDuration prometheus.Histogram
	images      *prometheus.CounterVec
}

var _ importer.Metrics = (*ImportMetrics)(nil)

// NewImportMetrics creates the collectors and registers them with reg
func NewImportMetrics(reg prometheus.Registerer) *ImportMetrics {
	m := &ImportMetrics{
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tesseract",
			Subsystem: "catalog_import",
			Name:      "rows_total",
			Help:      "Import rows processed, by outcome.",
		}, []string{"outcome"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tesseract",
			Subsystem: "catalog_import",
			Name:      "runs_total",
			Help:      "Import runs finished, by final status.",
		}, []string{"status", "dry_run"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tesseract",
			Subsystem: "catalog_import",
			Name:      "run_duration_seconds",
			Help:      "Wall time of import runs.",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 180, 600, 1800},
		}),
		images: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tesseract",
			Subsystem: "catalog_import",
			Name:      "images_total",
			Help:      "Product images acquired during imports, by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.rows, m.runs, m.runDuration, m.images)
	return m
}

func (m *ImportMetrics) ObserveRow(kind importer.OutcomeKind) {
	m.rows.WithLabelValues(strings.ToLower(string(kind))).Inc()
}

// ObserveRun records a finished run
func (m *ImportMetrics) ObserveRun(summary importer.RunSummary) {
	dryRun := "false"
	if summary.DryRun {
		dryRun = "true"
	}
	m.runs.WithLabelValues(strings.ToLower(string(summary.Status)), dryRun).Inc()
	if summary.FinishedAt != nil {
		m.runDuration.Observe(summary.FinishedAt.Sub(summary.StartedAt).Seconds())
	}
	m.images.WithLabelValues("stored").Add(float64(summary.ImagesStored))
	m.images.WithLabelValues("failed").Add(float64(summary.ImagesFailed))
	m.images.WithLabelValues("ignored").Add(float64(summary.ImagesIgnored))
}

package metrics

import (
	"testing"
	"time"

	"catalog-import-service/internal/importer"
	"catalog-import-service/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveRowCountsByOutcome(t *testing.T) {
	m := NewImportMetrics(prometheus.NewRegistry())

	m.ObserveRow(importer.OutcomeSuccess)
	m.ObserveRow(importer.OutcomeSuccess)
	m.ObserveRow(importer.OutcomeDuplicate)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.rows.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rows.WithLabelValues("duplicate")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.rows.WithLabelValues("failed")))
}

func TestObserveRun(t *testing.T) {
	m := NewImportMetrics(prometheus.NewRegistry())
	started := time.Now()
	finished := started.Add(3 * time.Second)

	m.ObserveRun(importer.RunSummary{
		Status:        models.RunStatusStopped,
		StartedAt:     started,
		FinishedAt:    &finished,
		ImagesStored:  4,
		ImagesFailed:  1,
		ImagesIgnored: 2,
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("stopped", "false")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.images.WithLabelValues("stored")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.images.WithLabelValues("failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.images.WithLabelValues("ignored")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.runDuration))
}

func TestRegisteringTwiceOnSameRegistryPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewImportMetrics(reg)
	assert.Panics(t, func() { NewImportMetrics(reg) })
}

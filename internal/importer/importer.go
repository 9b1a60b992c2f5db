// Package importer ingests catalog spreadsheets: it parses the file,
// reconciles its headers against the product column schema and creates
// products row by row, resolving categories and product types by name.
package importer

import (
	"context"
	"io"

	"catalog-import-service/internal/models"
	"github.com/sirupsen/logrus"
)

// Plan is a parsed and validated file, ready to execute
type Plan struct {
	Rows    *RowSet
	Mapping ColumnMapping
}

// Importer wires the pipeline stages together
type Importer struct {
	schema   []models.ImportColumn
	images   *ImageAcquirer
	notifier Notifier
	metrics  Metrics
	logger   *logrus.Entry
}

func New(images *ImageAcquirer, logger *logrus.Entry) *Importer {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Importer{
		schema: models.ProductImportColumns(),
		images: images,
		logger: logger,
	}
}

func (i *Importer) WithNotifier(n Notifier) *Importer {
	i.notifier = n
	return i
}

func (i *Importer) WithMetrics(m Metrics) *Importer {
	i.metrics = m
	return i
}

// Prepare parses and reconciles a file. Any error it returns is fatal to the
// run and nothing has been written.
func (i *Importer) Prepare(r io.Reader, format models.ImportFormat) (*Plan, error) {
	rows, err := Parse(r, format)
	if err != nil {
		return nil, err
	}
	mapping, err := Reconcile(rows.Headers(), i.schema)
	if err != nil {
		return nil, err
	}
	if len(mapping.Ignored) > 0 {
		i.logger.WithField("headers", mapping.Ignored).Debug("Ignoring unrecognized columns")
	}
	return &Plan{Rows: rows, Mapping: mapping}, nil
}

// Execute runs a prepared plan against a store, recording into reporter
func (i *Importer) Execute(ctx context.Context, store EntityStore, plan *Plan, reporter *Reporter, opts RunOptions) RunSummary {
	engine := NewEngine(store, i.images, reporter, opts, i.logger)
	if i.notifier != nil {
		engine.WithNotifier(i.notifier)
	}
	if i.metrics != nil {
		engine.WithMetrics(i.metrics)
	}
	return engine.Run(ctx, plan.Rows, plan.Mapping)
}

// Import prepares and executes a file in one call
func (i *Importer) Import(ctx context.Context, r io.Reader, format models.ImportFormat, store EntityStore, opts RunOptions) (RunSummary, error) {
	plan, err := i.Prepare(r, format)
	if err != nil {
		return RunSummary{}, err
	}
	reporter := NewReporter(opts.RunID, plan.Rows.Len(), opts.DryRun)
	return i.Execute(ctx, store, plan, reporter, opts), nil
}

package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"catalog-import-service/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	DefaultProductTitle = "Silk Thread"

	ReasonAlreadyExists    = "already exists in catalog"
	ReasonCreatedElsewhere = "created concurrently by another import"
	NoteDryRun             = "dry run: not created"
)

// Notifier is told about every product the engine creates
type Notifier interface {
	ProductCreated(ctx context.Context, product *models.Product)
}

// Metrics observes row outcomes
type Metrics interface {
	ObserveRow(kind OutcomeKind)
}

// RunOptions identify a run and the actor behind it
type RunOptions struct {
	RunID        string
	ActorID      string
	DryRun       bool
	DefaultTitle string
}

// Engine ingests rows one at a time in source order
type Engine struct {
	store    EntityStore
	cache    *RefCache
	resolver *Resolver
	images   *ImageAcquirer
	policy   RowPolicy
	reporter *Reporter
	notifier Notifier
	metrics  Metrics
	opts     RunOptions
	logger   *logrus.Entry
}

// NewEngine builds an engine for a single run with a fresh reference cache
func NewEngine(store EntityStore, images *ImageAcquirer, reporter *Reporter, opts RunOptions, logger *logrus.Entry) *Engine {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if opts.DefaultTitle == "" {
		opts.DefaultTitle = DefaultProductTitle
	}
	if images == nil {
		images = NewImageAcquirer(nil, ImageConfig{}, logger)
	}
	logger = logger.WithField("runId", opts.RunID)
	cache := NewRefCache()
	return &Engine{
		store:    store,
		cache:    cache,
		resolver: NewResolver(store, cache, opts.ActorID, logger.WithField("component", "resolver")),
		images:   images,
		policy:   DefaultRowPolicy(),
		reporter: reporter,
		opts:     opts,
		logger:   logger,
	}
}

func (e *Engine) WithPolicy(policy RowPolicy) *Engine {
	e.policy = policy
	return e
}

func (e *Engine) WithNotifier(n Notifier) *Engine {
	e.notifier = n
	return e
}

func (e *Engine) WithMetrics(m Metrics) *Engine {
	e.metrics = m
	return e
}

// Run processes every row unless ctx is cancelled. Cancellation is only
// observed between rows; a started row always reaches a terminal outcome.
func (e *Engine) Run(ctx context.Context, rows *RowSet, mapping ColumnMapping) RunSummary {
	status := models.RunStatusCompleted

	for _, rec := range rows.All() {
		if ctx.Err() != nil {
			status = models.RunStatusStopped
			e.logger.WithField("row", rec.Line()).Info("Import stopped before row")
			break
		}

		name := mapping.Value(rec, models.ColumnName)
		outcome := e.processRow(context.WithoutCancel(ctx), mapping, rec)
		e.reporter.Record(rec.Line(), name, outcome)
		if e.metrics != nil {
			e.metrics.ObserveRow(outcome.Kind)
		}

		e.logger.WithFields(logrus.Fields{
			"row":     rec.Line(),
			"outcome": outcome.Kind,
			"reason":  outcome.Reason,
		}).Debug("Row processed")
	}

	e.reporter.SetReferenceStats(e.cache.Stats())
	e.reporter.Finish(status)
	return e.reporter.Summary()
}

func (e *Engine) processRow(ctx context.Context, m ColumnMapping, rec RowRecord) RowOutcome {
	if outcome, violated := e.policy.Check(m, rec); violated {
		return outcome
	}

	name := m.Value(rec, models.ColumnName)
	var notes []string
	mrp, note := parseMRP(m.Value(rec, models.ColumnMRPPrice))
	notes = appendNote(notes, note)
	offer, note := parseOfferPrice(m.Value(rec, models.ColumnOfferPrice))
	notes = appendNote(notes, note)
	status, note := parseStatus(m.Value(rec, models.ColumnStatus))
	notes = appendNote(notes, note)

	if e.opts.DryRun {
		return Success("", append(notes, NoteDryRun)...)
	}

	res, err := e.resolver.Resolve(ctx, m.Value(rec, models.ColumnCategory), m.Value(rec, models.ColumnType))
	if err != nil {
		var skip *SkipSignal
		if errors.As(err, &skip) {
			return Skipped(skip.Reason, notes...)
		}
		return Failed(err.Error(), notes...)
	}

	key := ProductKey{
		NameKey:    models.NameKey(name),
		CategoryID: res.Category.ID,
		TypeID:     res.Type.ID,
		MRP:        mrp,
	}
	exists, err := e.store.ProductExists(ctx, key)
	if err != nil {
		return Failed(fmt.Sprintf("duplicate check failed: %v", err), notes...)
	}
	if exists {
		return Duplicate(ReasonAlreadyExists, notes...)
	}

	images := e.images.Acquire(ctx, m.Value(rec, models.ColumnImages))
	e.reporter.AddImages(len(images.URLs), images.Failed, images.Ignored)
	notes = append(notes, images.Notes()...)

	title := m.Value(rec, models.ColumnTitle)
	if title == "" {
		title = e.opts.DefaultTitle
	}

	product := &models.Product{
		ID:            uuid.New(),
		Name:          name,
		NameKey:       key.NameKey,
		Slug:          generateSlug(name),
		Title:         title,
		CategoryID:    res.Category.ID,
		ProductTypeID: res.Type.ID,
		MRPPrice:      mrp,
		OfferPrice:    offer,
		Ribbon:        optionalString(m.Value(rec, models.ColumnRibbon)),
		Description:   optionalString(m.Value(rec, models.ColumnDescription)),
		Status:        status,
		Images:        models.StringList(images.URLs),
		ImportRunID:   optionalString(e.opts.RunID),
		CreatedBy:     optionalString(e.opts.ActorID),
	}

	outcome, err := e.store.CreateProduct(ctx, product)
	switch outcome {
	case Created:
		if e.notifier != nil {
			e.notifier.ProductCreated(ctx, product)
		}
		return Success(product.ID.String(), notes...)
	case CreateConflict:
		return Duplicate(ReasonCreatedElsewhere, notes...)
	default:
		return Failed(errOrUnknown(err).Error(), notes...)
	}
}

func appendNote(notes []string, note string) []string {
	if note == "" {
		return notes
	}
	return append(notes, note)
}

var priceMarks = strings.NewReplacer(",", "", "₹", "", "Rs.", "", "rs.", "", "RS.", "", "INR", "", "$", "", " ", "")

func parsePrice(raw string) (decimal.Decimal, bool) {
	cleaned := priceMarks.Replace(strings.TrimSpace(raw))
	if cleaned == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d.Round(2), true
}

// parseMRP defaults absent or unparsable values to zero
func parseMRP(raw string) (decimal.Decimal, string) {
	d, ok := parsePrice(raw)
	if !ok && strings.TrimSpace(raw) != "" {
		return decimal.Zero, fmt.Sprintf("MRP %q is not a valid price, using 0", raw)
	}
	return d, ""
}

// parseOfferPrice omits absent or unparsable values
func parseOfferPrice(raw string) (decimal.NullDecimal, string) {
	d, ok := parsePrice(raw)
	if !ok {
		if strings.TrimSpace(raw) != "" {
			return decimal.NullDecimal{}, fmt.Sprintf("offer price %q ignored", raw)
		}
		return decimal.NullDecimal{}, ""
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, ""
}

func parseStatus(raw string) (models.CatalogStatus, string) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(models.CatalogStatusActive):
		return models.CatalogStatusActive, ""
	case string(models.CatalogStatusInactive):
		return models.CatalogStatusInactive, ""
	default:
		return models.CatalogStatusActive, fmt.Sprintf("unknown status %q, using active", raw)
	}
}

package importer

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"catalog-import-service/internal/models"
)

// RowResult is the recorded outcome of one source row
type RowResult struct {
	Row  int    `json:"row"`
	Name string `json:"name"`
	RowOutcome
}

// RunSummary is a snapshot of an import run. Total counts rows processed so
// far; FileRows is the number of data rows in the file.
type RunSummary struct {
	RunID             string           `json:"runId"`
	Status            models.RunStatus `json:"status"`
	DryRun            bool             `json:"dryRun"`
	FileRows          int              `json:"fileRows"`
	Total             int              `json:"total"`
	Succeeded         int              `json:"succeeded"`
	Duplicates        int              `json:"duplicates"`
	Skipped           int              `json:"skipped"`
	Failed            int              `json:"failed"`
	CategoriesCreated int              `json:"categoriesCreated"`
	TypesCreated      int              `json:"typesCreated"`
	ReferenceHits     int              `json:"referenceHits"`
	ReferenceMisses   int              `json:"referenceMisses"`
	ImagesStored      int              `json:"imagesStored"`
	ImagesFailed      int              `json:"imagesFailed"`
	ImagesIgnored     int              `json:"imagesIgnored"`
	Log               []string         `json:"log"`
	Rows              []RowResult      `json:"rows"`
	StartedAt         time.Time        `json:"startedAt"`
	FinishedAt        *time.Time       `json:"finishedAt,omitempty"`
}

// Reporter accumulates row outcomes. Safe for concurrent readers while a run
// appends from its own goroutine.
type Reporter struct {
	mu      sync.Mutex
	summary RunSummary
}

func NewReporter(runID string, fileRows int, dryRun bool) *Reporter {
	return &Reporter{
		summary: RunSummary{
			RunID:     runID,
			Status:    models.RunStatusProcessing,
			DryRun:    dryRun,
			FileRows:  fileRows,
			Log:       []string{},
			Rows:      []RowResult{},
			StartedAt: time.Now().UTC(),
		},
	}
}

// Record appends one log line and increments exactly one outcome counter
func (r *Reporter) Record(line int, name string, outcome RowOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := &r.summary
	s.Total++
	switch outcome.Kind {
	case OutcomeSuccess:
		s.Succeeded++
	case OutcomeDuplicate:
		s.Duplicates++
	case OutcomeSkipped:
		s.Skipped++
	default:
		outcome.Kind = OutcomeFailed
		s.Failed++
	}
	s.Log = append(s.Log, FormatLogLine(line, name, outcome))
	s.Rows = append(s.Rows, RowResult{Row: line, Name: name, RowOutcome: outcome})
}

// AddImages adds to the run's image counters
func (r *Reporter) AddImages(stored, failed, ignored int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.ImagesStored += stored
	r.summary.ImagesFailed += failed
	r.summary.ImagesIgnored += ignored
}

// SetReferenceStats copies the resolver cache counters into the summary
func (r *Reporter) SetReferenceStats(stats CacheStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.CategoriesCreated = stats.CategoriesCreated
	r.summary.TypesCreated = stats.TypesCreated
	r.summary.ReferenceHits = stats.Hits
	r.summary.ReferenceMisses = stats.Misses
}

// Finish stamps the terminal status of the run
func (r *Reporter) Finish(status models.RunStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	r.summary.Status = status
	r.summary.FinishedAt = &now
}

// Summary returns a deep copy of the current state
func (r *Reporter) Summary() RunSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.summary
	out.Log = append([]string(nil), r.summary.Log...)
	out.Rows = make([]RowResult, len(r.summary.Rows))
	for i, row := range r.summary.Rows {
		row.Notes = append([]string(nil), row.Notes...)
		out.Rows[i] = row
	}
	if r.summary.FinishedAt != nil {
		finished := *r.summary.FinishedAt
		out.FinishedAt = &finished
	}
	return out
}

// FormatLogLine renders a row outcome, e.g. `Row 14: "Kada Set" - Duplicate (already in catalog)`
func FormatLogLine(line int, name string, outcome RowOutcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Row %d: %q - %s", line, name, outcome.Kind)
	if outcome.Reason != "" {
		fmt.Fprintf(&b, " (%s)", outcome.Reason)
	}
	if len(outcome.Notes) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(outcome.Notes, "; "))
	}
	return b.String()
}

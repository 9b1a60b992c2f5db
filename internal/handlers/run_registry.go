package handlers

import (
	"context"
	"sync"
	"time"

	"catalog-import-service/internal/importer"
)

type runEntry struct {
	tenantID  string
	reporter  *importer.Reporter
	cancel    context.CancelFunc
	startedAt time.Time
}

// runRegistry tracks runs started by this instance so they can be polled
// and stopped. Finished runs are removed once their summary is persisted;
// anything older than ttl is pruned when a new run starts.
type runRegistry struct {
	mu   sync.Mutex
	runs map[string]*runEntry
	ttl  time.Duration
	now  func() time.Time
}

func newRunRegistry(ttl time.Duration) *runRegistry {
	return &runRegistry{
		runs: make(map[string]*runEntry),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (r *runRegistry) start(runID, tenantID string, reporter *importer.Reporter, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for id, entry := range r.runs {
		if now.Sub(entry.startedAt) > r.ttl {
			delete(r.runs, id)
		}
	}
	r.runs[runID] = &runEntry{
		tenantID:  tenantID,
		reporter:  reporter,
		cancel:    cancel,
		startedAt: now,
	}
}

// get returns the run only when it belongs to tenantID
func (r *runRegistry) get(runID, tenantID string) *runEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.runs[runID]
	if !ok || entry.tenantID != tenantID {
		return nil
	}
	return entry
}

func (r *runRegistry) remove(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.runs, runID)
}

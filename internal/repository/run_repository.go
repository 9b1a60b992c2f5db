package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"catalog-import-service/internal/importer"
	"github.com/redis/go-redis/v9"
)

const DefaultRunTTL = 24 * time.Hour

var (
	ErrRunNotFound         = errors.New("import run not found")
	ErrRunStoreUnavailable = errors.New("run store unavailable")
)

// RunStore keeps finished run summaries for later retrieval
type RunStore interface {
	Save(ctx context.Context, tenantID string, summary importer.RunSummary) error
	Get(ctx context.Context, tenantID, runID string) (*importer.RunSummary, error)
}

// RunRepository stores run summaries as JSON in Redis
type RunRepository struct {
	client *redis.Client
	ttl    time.Duration
}

var _ RunStore = (*RunRepository)(nil)

func NewRunRepository(client *redis.Client, ttl time.Duration) *RunRepository {
	if ttl <= 0 {
		ttl = DefaultRunTTL
	}
	return &RunRepository{client: client, ttl: ttl}
}

func runKey(tenantID, runID string) string {
	return fmt.Sprintf("catalog_import:run:%s:%s", tenantID, runID)
}

// Save writes the summary with the configured TTL. Without Redis nothing is
// written and ErrRunStoreUnavailable is returned.
func (r *RunRepository) Save(ctx context.Context, tenantID string, summary importer.RunSummary) error {
	if r.client == nil {
		return ErrRunStoreUnavailable
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal run summary: %w", err)
	}
	return r.client.Set(ctx, runKey(tenantID, summary.RunID), data, r.ttl).Err()
}

func (r *RunRepository) Get(ctx context.Context, tenantID, runID string) (*importer.RunSummary, error) {
	if r.client == nil {
		return nil, ErrRunNotFound
	}

	data, err := r.client.Get(ctx, runKey(tenantID, runID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}

	var summary importer.RunSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("decode run summary: %w", err)
	}
	return &summary, nil
}

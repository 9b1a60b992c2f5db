package repository

import (
	"context"
	"testing"
	"time"

	"catalog-import-service/internal/importer"
	"catalog-import-service/internal/models"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRunRepository(t *testing.T, ttl time.Duration) (*RunRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRunRepository(client, ttl), mr
}

func TestRunKeyIsTenantScoped(t *testing.T) {
	assert.Equal(t, "catalog_import:run:tenant-a:run-1", runKey("tenant-a", "run-1"))
	assert.NotEqual(t, runKey("tenant-a", "run-1"), runKey("tenant-b", "run-1"))
}

func TestRunRepositoryWithoutRedis(t *testing.T) {
	repo := NewRunRepository(nil, 0)
	ctx := context.Background()

	assert.Equal(t, DefaultRunTTL, repo.ttl)
	assert.ErrorIs(t, repo.Save(ctx, "tenant-a", importer.RunSummary{RunID: "run-1"}), ErrRunStoreUnavailable)

	summary, err := repo.Get(ctx, "tenant-a", "run-1")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.Nil(t, summary)
}

func TestRunRepositorySaveAndGet(t *testing.T) {
	repo, mr := setupRunRepository(t, 2*time.Hour)
	ctx := context.Background()

	reporter := importer.NewReporter("run-1", 2, false)
	reporter.Record(2, "Silk Bangles", importer.Success("p-1"))
	reporter.Record(3, "Jhumka", importer.Skipped(importer.ReasonTypeRequired))
	reporter.Finish(models.RunStatusCompleted)
	saved := reporter.Summary()

	require.NoError(t, repo.Save(ctx, "tenant-a", saved))

	key := runKey("tenant-a", "run-1")
	assert.True(t, mr.Exists(key))
	assert.Equal(t, 2*time.Hour, mr.TTL(key))

	got, err := repo.Get(ctx, "tenant-a", "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, models.RunStatusCompleted, got.Status)
	assert.Equal(t, 2, got.Total)
	assert.Equal(t, 1, got.Succeeded)
	assert.Equal(t, 1, got.Skipped)
	assert.Equal(t, saved.Log, got.Log)

	// the same run id under another tenant is not visible
	_, err = repo.Get(ctx, "tenant-b", "run-1")
	assert.ErrorIs(t, err, ErrRunNotFound)

	mr.FastForward(3 * time.Hour)
	_, err = repo.Get(ctx, "tenant-a", "run-1")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestRunRepositoryGetMissingAndCorrupt(t *testing.T) {
	repo, mr := setupRunRepository(t, 0)
	ctx := context.Background()

	_, err := repo.Get(ctx, "tenant-a", "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)

	require.NoError(t, mr.Set(runKey("tenant-a", "bad"), "{not json"))
	_, err = repo.Get(ctx, "tenant-a", "bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRunNotFound)
}

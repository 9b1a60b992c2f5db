package importer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolverCreatesCategoryOnceAndCachesIt(t *testing.T) {
	store := newFakeStore()
	cache := NewRefCache()
	resolver := NewResolver(store, cache, "actor-1", testLogger())
	ctx := context.Background()

	first, err := resolver.Resolve(ctx, "Bangles", "Kada")
	require.NoError(t, err)
	second, err := resolver.Resolve(ctx, "  BANGLES ", "kada")
	require.NoError(t, err)

	assert.Equal(t, 1, store.categoryCreates)
	assert.Equal(t, 1, store.typeCreates)
	assert.Equal(t, 1, store.categoryFinds)
	assert.Equal(t, first.Category.ID, second.Category.ID)
	assert.Equal(t, first.Type.ID, second.Type.ID)
	assert.Equal(t, "Bangles", first.Category.Name)
	assert.Equal(t, "bangles", first.Category.NameKey)
	assert.Equal(t, "bangles", first.Category.Slug)
	assert.Equal(t, first.Category.ID, first.Type.CategoryID)
	require.NotNil(t, first.Category.CreatedBy)
	assert.Equal(t, "actor-1", *first.Category.CreatedBy)

	stats := cache.Stats()
	assert.Equal(t, 1, stats.CategoriesCreated)
	assert.Equal(t, 1, stats.TypesCreated)
	assert.Equal(t, 2, stats.Hits)
	assert.Equal(t, 2, stats.Misses)
}

func TestResolverUsesExistingCategory(t *testing.T) {
	store := newFakeStore()
	existing := store.seedCategory("Earrings")
	resolver := NewResolver(store, NewRefCache(), "", testLogger())

	res, err := resolver.Resolve(context.Background(), "earrings", "Jhumka")
	require.NoError(t, err)

	assert.Equal(t, existing.ID, res.Category.ID)
	assert.Equal(t, 0, store.categoryCreates)
}

func TestResolverRefetchesOnCategoryConflict(t *testing.T) {
	store := newFakeStore()
	store.conflictCategories = true
	cache := NewRefCache()
	resolver := NewResolver(store, cache, "", testLogger())

	res, err := resolver.Resolve(context.Background(), "Necklaces", "Choker")
	require.NoError(t, err)

	assert.Equal(t, store.categories["necklaces"].ID, res.Category.ID)
	assert.Equal(t, 2, store.categoryFinds)
	assert.Equal(t, 0, cache.Stats().CategoriesCreated)
}

func TestResolverRequiresCategory(t *testing.T) {
	store := newFakeStore()
	resolver := NewResolver(store, nil, "", testLogger())

	_, err := resolver.Resolve(context.Background(), "   ", "Kada")

	assert.ErrorIs(t, err, ErrCategoryRequired)
	assert.Equal(t, 0, store.categoryFinds)
	assert.Equal(t, 0, store.writes())
}

func TestResolverSkipsBlankType(t *testing.T) {
	store := newFakeStore()
	resolver := NewResolver(store, nil, "", testLogger())

	_, err := resolver.Resolve(context.Background(), "Bangles", "")

	var skip *SkipSignal
	require.ErrorAs(t, err, &skip)
	assert.Equal(t, ReasonTypeRequired, skip.Reason)
	assert.Equal(t, 0, store.typeCreates)
}

func TestResolverSkipsWhenTypeCannotBeCreated(t *testing.T) {
	store := newFakeStore()
	store.createTypeErr = errors.New("permission denied")
	resolver := NewResolver(store, nil, "", testLogger())

	_, err := resolver.Resolve(context.Background(), "Bangles", "Kada")

	var skip *SkipSignal
	require.ErrorAs(t, err, &skip)
	assert.Equal(t, ReasonTypeCreationFailed, skip.Reason)
}

func TestResolverScopesTypesToTheirCategory(t *testing.T) {
	store := newFakeStore()
	resolver := NewResolver(store, nil, "", testLogger())
	ctx := context.Background()

	a, err := resolver.Resolve(ctx, "Bangles", "Classic")
	require.NoError(t, err)
	b, err := resolver.Resolve(ctx, "Earrings", "Classic")
	require.NoError(t, err)

	assert.NotEqual(t, a.Type.ID, b.Type.ID)
	assert.Equal(t, 2, store.typeCreates)
}

func TestResolverReturnsLookupErrors(t *testing.T) {
	store := newFakeStore()
	store.findCategoryErr = errors.New("connection reset")
	resolver := NewResolver(store, nil, "", testLogger())

	_, err := resolver.Resolve(context.Background(), "Bangles", "Kada")

	require.Error(t, err)
	assert.ErrorIs(t, err, store.findCategoryErr)
	var skip *SkipSignal
	assert.False(t, errors.As(err, &skip))
}

func TestResolverCachesAreRunScoped(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()

	_, err := NewResolver(store, NewRefCache(), "", testLogger()).Resolve(ctx, "Bangles", "Kada")
	require.NoError(t, err)
	_, err = NewResolver(store, NewRefCache(), "", testLogger()).Resolve(ctx, "Bangles", "Kada")
	require.NoError(t, err)

	assert.Equal(t, 2, store.categoryFinds)
	assert.Equal(t, 1, store.categoryCreates)
}

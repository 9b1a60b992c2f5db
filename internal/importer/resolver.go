package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"catalog-import-service/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	ReasonTypeRequired       = "type required"
	ReasonTypeCreationFailed = "type creation failed"
)

// ErrCategoryRequired fails a row that has no category name
var ErrCategoryRequired = errors.New("category is required")

// SkipSignal ends a row as Skipped rather than Failed
type SkipSignal struct {
	Reason string
}

func (s *SkipSignal) Error() string {
	return "row skipped: " + s.Reason
}

// CacheStats counts reference lookups for one run
type CacheStats struct {
	Hits              int `json:"hits"`
	Misses            int `json:"misses"`
	CategoriesCreated int `json:"categoriesCreated"`
	TypesCreated      int `json:"typesCreated"`
}

type typeCacheKey struct {
	categoryID uuid.UUID
	nameKey    string
}

// RefCache is the reference cache of a single run. It is read-through and
// write-through over the entity store and must not outlive the run.
type RefCache struct {
	categories map[string]*models.Category
	types      map[typeCacheKey]*models.ProductType
	stats      CacheStats
}

func NewRefCache() *RefCache {
	return &RefCache{
		categories: make(map[string]*models.Category),
		types:      make(map[typeCacheKey]*models.ProductType),
	}
}

func (c *RefCache) Stats() CacheStats {
	return c.stats
}

// Resolution is the category and product type a row belongs to
type Resolution struct {
	Category *models.Category
	Type     *models.ProductType
}

// Resolver finds or creates categories and product types by name
type Resolver struct {
	store   EntityStore
	cache   *RefCache
	actorID string
	logger  *logrus.Entry
}

func NewResolver(store EntityStore, cache *RefCache, actorID string, logger *logrus.Entry) *Resolver {
	if cache == nil {
		cache = NewRefCache()
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Resolver{
		store:   store,
		cache:   cache,
		actorID: actorID,
		logger:  logger,
	}
}

// Resolve returns the entities for a row. An empty category yields
// ErrCategoryRequired; a type that is blank or cannot be produced yields a
// *SkipSignal; lookup failures are returned as errors.
func (r *Resolver) Resolve(ctx context.Context, categoryName, typeName string) (*Resolution, error) {
	categoryName = strings.TrimSpace(categoryName)
	typeName = strings.TrimSpace(typeName)

	categoryKey := models.NameKey(categoryName)
	if categoryKey == "" {
		return nil, ErrCategoryRequired
	}

	category, err := r.resolveCategory(ctx, categoryName, categoryKey)
	if err != nil {
		return nil, err
	}

	typeKey := models.NameKey(typeName)
	if typeKey == "" {
		return nil, &SkipSignal{Reason: ReasonTypeRequired}
	}

	productType, err := r.resolveType(ctx, category, typeName, typeKey)
	if err != nil {
		return nil, err
	}

	return &Resolution{Category: category, Type: productType}, nil
}

func (r *Resolver) resolveCategory(ctx context.Context, name, key string) (*models.Category, error) {
	if cached, ok := r.cache.categories[key]; ok {
		r.cache.stats.Hits++
		return cached, nil
	}
	r.cache.stats.Misses++

	category, err := r.store.FindCategory(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to look up category %q: %w", name, err)
	}

	if category == nil {
		candidate := &models.Category{
			ID:        uuid.New(),
			Name:      name,
			NameKey:   key,
			Slug:      generateSlug(name),
			CreatedBy: optionalString(r.actorID),
		}
		outcome, err := r.store.CreateCategory(ctx, candidate)
		switch outcome {
		case Created:
			r.cache.stats.CategoriesCreated++
			category = candidate
			r.logger.WithFields(logrus.Fields{
				"categoryId": candidate.ID.String(),
				"category":   name,
			}).Info("Category created during import")
		case CreateConflict:
			category, err = r.store.FindCategory(ctx, key)
			if err != nil {
				return nil, fmt.Errorf("failed to re-fetch category %q after conflict: %w", name, err)
			}
			if category == nil {
				return nil, fmt.Errorf("category %q reported as existing but could not be found", name)
			}
		default:
			return nil, fmt.Errorf("failed to create category %q: %w", name, errOrUnknown(err))
		}
	}

	r.cache.categories[key] = category
	return category, nil
}

func (r *Resolver) resolveType(ctx context.Context, category *models.Category, name, key string) (*models.ProductType, error) {
	cacheKey := typeCacheKey{categoryID: category.ID, nameKey: key}
	if cached, ok := r.cache.types[cacheKey]; ok {
		r.cache.stats.Hits++
		return cached, nil
	}
	r.cache.stats.Misses++

	productType, err := r.store.FindProductType(ctx, category.ID, key)
	if err != nil {
		return nil, fmt.Errorf("failed to look up type %q: %w", name, err)
	}

	if productType == nil {
		candidate := &models.ProductType{
			ID:         uuid.New(),
			CategoryID: category.ID,
			Name:       name,
			NameKey:    key,
			Slug:       generateSlug(name),
			CreatedBy:  optionalString(r.actorID),
		}
		outcome, err := r.store.CreateProductType(ctx, candidate)
		switch outcome {
		case Created:
			r.cache.stats.TypesCreated++
			productType = candidate
			r.logger.WithFields(logrus.Fields{
				"typeId":   candidate.ID.String(),
				"type":     name,
				"category": category.Name,
			}).Info("Product type created during import")
		case CreateConflict:
			productType, err = r.store.FindProductType(ctx, category.ID, key)
			if err != nil || productType == nil {
				r.logger.WithError(err).WithField("type", name).Warn("Product type conflicted but could not be re-fetched")
				return nil, &SkipSignal{Reason: ReasonTypeCreationFailed}
			}
		default:
			r.logger.WithError(err).WithField("type", name).Warn("Failed to create product type")
			return nil, &SkipSignal{Reason: ReasonTypeCreationFailed}
		}
	}

	r.cache.types[cacheKey] = productType
	return productType, nil
}

func errOrUnknown(err error) error {
	if err != nil {
		return err
	}
	return errors.New("unknown store error")
}

func generateSlug(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.ReplaceAll(slug, " ", "-")
	var result strings.Builder
	for _, r := range slug {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

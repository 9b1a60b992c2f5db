package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"catalog-import-service/internal/importer"
	"catalog-import-service/internal/models"
	"github.com/Tesseract-Nexus/go-shared/cache"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// PostgreSQL unique_violation
	uniqueViolationCode = "23505"

	CatalogCacheTTL = 5 * time.Minute
)

// CatalogRepository persists categories, product types and products
type CatalogRepository struct {
	db    *gorm.DB
	cache *cache.CacheLayer
}

func NewCatalogRepository(db *gorm.DB, redis *redis.Client) *CatalogRepository {
	repo := &CatalogRepository{db: db}

	// Storefront read caches live in the shared cache layer; imports only invalidate them
	if redis != nil {
		cacheConfig := cache.CacheConfig{
			L1Enabled:  true,
			L1MaxItems: 1000,
			L1TTL:      30 * time.Second,
			DefaultTTL: CatalogCacheTTL,
			KeyPrefix:  "tesseract:products:",
		}
		repo.cache = cache.NewCacheLayerFromClient(redis, cacheConfig)
	}

	return repo
}

// ForTenant returns an entity store whose reads and writes are scoped to a tenant
func (r *CatalogRepository) ForTenant(tenantID string) *TenantCatalog {
	return &TenantCatalog{repo: r, tenantID: tenantID}
}

// invalidateProductCaches drops the tenant's cached product lists
func (r *CatalogRepository) invalidateProductCaches(ctx context.Context, tenantID string) {
	if r.cache == nil {
		return
	}
	_ = r.cache.DeletePattern(ctx, fmt.Sprintf("products:list:%s:*", tenantID))
}

// invalidateCategoryCaches drops the tenant's cached category lists
func (r *CatalogRepository) invalidateCategoryCaches(ctx context.Context, tenantID string, categoryID uuid.UUID) {
	if r.cache == nil {
		return
	}
	_ = r.cache.Delete(ctx, fmt.Sprintf("category:%s:%s", tenantID, categoryID.String()))
	_ = r.cache.DeletePattern(ctx, fmt.Sprintf("categories:*:%s:*", tenantID))
}

// TenantCatalog implements importer.EntityStore for one tenant
type TenantCatalog struct {
	repo     *CatalogRepository
	tenantID string
}

var _ importer.EntityStore = (*TenantCatalog)(nil)

func (t *TenantCatalog) db(ctx context.Context) *gorm.DB {
	return t.repo.db.WithContext(ctx)
}

func (t *TenantCatalog) FindCategory(ctx context.Context, nameKey string) (*models.Category, error) {
	var category models.Category
	err := t.db(ctx).
		Where("tenant_id = ? AND name_key = ?", t.tenantID, nameKey).
		First(&category).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &category, nil
}

func (t *TenantCatalog) CreateCategory(ctx context.Context, category *models.Category) (importer.CreateOutcome, error) {
	category.TenantID = t.tenantID
	outcome, err := t.insert(ctx, category)
	if outcome == importer.Created {
		t.repo.invalidateCategoryCaches(ctx, t.tenantID, category.ID)
	}
	return outcome, err
}

func (t *TenantCatalog) FindProductType(ctx context.Context, categoryID uuid.UUID, nameKey string) (*models.ProductType, error) {
	var productType models.ProductType
	err := t.db(ctx).
		Where("tenant_id = ? AND category_id = ? AND name_key = ?", t.tenantID, categoryID, nameKey).
		First(&productType).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &productType, nil
}

func (t *TenantCatalog) CreateProductType(ctx context.Context, productType *models.ProductType) (importer.CreateOutcome, error) {
	productType.TenantID = t.tenantID
	outcome, err := t.insert(ctx, productType)
	if outcome == importer.Created {
		t.repo.invalidateCategoryCaches(ctx, t.tenantID, productType.CategoryID)
	}
	return outcome, err
}

func (t *TenantCatalog) ProductExists(ctx context.Context, key importer.ProductKey) (bool, error) {
	var count int64
	err := t.db(ctx).Model(&models.Product{}).
		Where("tenant_id = ? AND name_key = ? AND category_id = ? AND product_type_id = ? AND mrp_price = ?",
			t.tenantID, key.NameKey, key.CategoryID, key.TypeID, key.MRP).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (t *TenantCatalog) CreateProduct(ctx context.Context, product *models.Product) (importer.CreateOutcome, error) {
	product.TenantID = t.tenantID
	outcome, err := t.insert(ctx, product)
	if outcome == importer.Created {
		t.repo.invalidateProductCaches(ctx, t.tenantID)
	}
	return outcome, err
}

// insert creates a row and reports a unique-key collision as a conflict.
// ON CONFLICT DO NOTHING turns the collision into zero affected rows; the
// error check covers drivers that still surface the violation.
func (t *TenantCatalog) insert(ctx context.Context, value interface{}) (importer.CreateOutcome, error) {
	result := t.db(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(value)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return importer.CreateConflict, nil
		}
		return importer.CreateError, result.Error
	}
	if result.RowsAffected == 0 {
		return importer.CreateConflict, nil
	}
	return importer.Created, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

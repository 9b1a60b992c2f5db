package importer

import (
	"context"

	"catalog-import-service/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateOutcome tags the result of a create call. A conflict means the
// entity already exists and is never reported as an error.
type CreateOutcome int

const (
	CreateError CreateOutcome = iota
	Created
	CreateConflict
)

func (o CreateOutcome) String() string {
	switch o {
	case Created:
		return "created"
	case CreateConflict:
		return "conflict"
	default:
		return "error"
	}
}

// ProductKey is the duplicate identity of a product
type ProductKey struct {
	NameKey    string
	CategoryID uuid.UUID
	TypeID     uuid.UUID
	MRP        decimal.Decimal
}

// EntityStore is the catalog persistence the importer writes through.
// Find methods return nil, nil when nothing matches.
type EntityStore interface {
	FindCategory(ctx context.Context, nameKey string) (*models.Category, error)
	CreateCategory(ctx context.Context, category *models.Category) (CreateOutcome, error)
	FindProductType(ctx context.Context, categoryID uuid.UUID, nameKey string) (*models.ProductType, error)
	CreateProductType(ctx context.Context, productType *models.ProductType) (CreateOutcome, error)
	ProductExists(ctx context.Context, key ProductKey) (bool, error)
	CreateProduct(ctx context.Context, product *models.Product) (CreateOutcome, error)
}

// BlobStore fetches a remote image and persists it, returning a durable URL
type BlobStore interface {
	FetchAndStore(ctx context.Context, url, bucket string) (string, error)
}

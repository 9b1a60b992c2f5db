package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CatalogStatus represents the visibility of a product in the storefront
type CatalogStatus string

const (
	CatalogStatusActive   CatalogStatus = "active"
	CatalogStatusInactive CatalogStatus = "inactive"
)

// StringList type for PostgreSQL JSONB (array of strings)
type StringList []string

func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal([]string(s))
}

func (s *StringList) Scan(value interface{}) error {
	if value == nil {
		*s = StringList{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported StringList source type %T", value)
	}
	return json.Unmarshal(bytes, s)
}

// NameKey normalizes a display name into the key used for matching
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Category is a top-level catalog grouping
type Category struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID  string    `json:"tenantId" gorm:"not null;uniqueIndex:idx_categories_tenant_name_key"`
	Name      string    `json:"name" gorm:"not null"`
	NameKey   string    `json:"nameKey" gorm:"not null;uniqueIndex:idx_categories_tenant_name_key"`
	Slug      string    `json:"slug" gorm:"index"`
	CreatedBy *string   `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// ProductType is a catalog type nested under a category
type ProductType struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID   string    `json:"tenantId" gorm:"not null;uniqueIndex:idx_product_types_tenant_category_name_key"`
	CategoryID uuid.UUID `json:"categoryId" gorm:"type:uuid;not null;uniqueIndex:idx_product_types_tenant_category_name_key"`
	Name       string    `json:"name" gorm:"not null"`
	NameKey    string    `json:"nameKey" gorm:"not null;uniqueIndex:idx_product_types_tenant_category_name_key"`
	Slug       string    `json:"slug" gorm:"index"`
	CreatedBy  *string   `json:"createdBy,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (t *ProductType) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Product is a catalog entry. The composite unique index mirrors the
// duplicate identity used by the importer.
type Product struct {
	ID            uuid.UUID           `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID      string              `json:"tenantId" gorm:"not null;uniqueIndex:idx_products_identity"`
	Name          string              `json:"name" gorm:"not null"`
	NameKey       string              `json:"nameKey" gorm:"not null;uniqueIndex:idx_products_identity"`
	Slug          string              `json:"slug" gorm:"index"`
	Title         string              `json:"title"`
	CategoryID    uuid.UUID           `json:"categoryId" gorm:"type:uuid;not null;uniqueIndex:idx_products_identity"`
	ProductTypeID uuid.UUID           `json:"productTypeId" gorm:"type:uuid;not null;uniqueIndex:idx_products_identity"`
	MRPPrice      decimal.Decimal     `json:"mrpPrice" gorm:"type:decimal(12,2);not null;uniqueIndex:idx_products_identity"`
	OfferPrice    decimal.NullDecimal `json:"offerPrice" gorm:"type:decimal(12,2)"`
	Ribbon        *string             `json:"ribbon,omitempty"`
	Description   *string             `json:"description,omitempty"`
	Status        CatalogStatus       `json:"status" gorm:"not null"`
	Images        StringList          `json:"images" gorm:"type:jsonb"`
	ImportRunID   *string             `json:"importRunId,omitempty" gorm:"index"`
	CreatedBy     *string             `json:"createdBy,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// CatalogModels lists the models migrated at startup
func CatalogModels() []interface{} {
	return []interface{}{
		&Category{},
		&ProductType{},
		&Product{},
	}
}

package models

import "strings"

// ImportFormat represents the file format for import
type ImportFormat string

const (
	ImportFormatCSV  ImportFormat = "csv"
	ImportFormatTSV  ImportFormat = "tsv"
	ImportFormatXLSX ImportFormat = "xlsx"
)

// ImportFormatFromFilename detects the import format from a file extension
func ImportFormatFromFilename(filename string) (ImportFormat, bool) {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".csv"):
		return ImportFormatCSV, true
	case strings.HasSuffix(lower, ".tsv"), strings.HasSuffix(lower, ".txt"):
		return ImportFormatTSV, true
	case strings.HasSuffix(lower, ".xlsx"):
		return ImportFormatXLSX, true
	}
	return "", false
}

// RunStatus represents the lifecycle of an import run
type RunStatus string

const (
	RunStatusProcessing RunStatus = "PROCESSING"
	RunStatusCompleted  RunStatus = "COMPLETED"
	RunStatusStopped    RunStatus = "STOPPED"
)

// ImportColumn defines a semantic column of the import schema
type ImportColumn struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Type        string `json:"type"` // string, number, list
	Example     string `json:"example"`
}

// ImportTemplate defines the structure of an import template
type ImportTemplate struct {
	Entity     string              `json:"entity"`
	Version    string              `json:"version"`
	Columns    []ImportColumn      `json:"columns"`
	SampleData []map[string]string `json:"sampleData,omitempty"`
}

// Schema keys of the product import
const (
	ColumnName        = "name"
	ColumnCategory    = "category"
	ColumnType        = "type"
	ColumnMRPPrice    = "mrp_price"
	ColumnTitle       = "title"
	ColumnOfferPrice  = "offer_price"
	ColumnRibbon      = "ribbon"
	ColumnDescription = "description"
	ColumnImages      = "images"
	ColumnStatus      = "status"
)

// ProductImportColumns returns the column definitions for product import
func ProductImportColumns() []ImportColumn {
	return []ImportColumn{
		{Key: ColumnName, Label: "Name", Description: "Product display name", Required: true, Type: "string", Example: "Silk Bangles"},
		{Key: ColumnCategory, Label: "Category", Description: "Category name - auto-creates if not exists", Required: true, Type: "string", Example: "Bangles"},
		{Key: ColumnType, Label: "Type", Description: "Product type within the category - auto-creates if not exists, row skipped if blank", Required: true, Type: "string", Example: "Kada"},
		{Key: ColumnMRPPrice, Label: "MRP Price", Description: "Maximum retail price", Required: true, Type: "number", Example: "500"},
		{Key: ColumnTitle, Label: "Title", Description: "Material or brand tag (default: Silk Thread)", Required: false, Type: "string", Example: "Silk Thread"},
		{Key: ColumnOfferPrice, Label: "Offer Price", Description: "Discounted price, omitted if blank", Required: false, Type: "number", Example: "449"},
		{Key: ColumnRibbon, Label: "Ribbon", Description: "Badge text shown on the product card", Required: false, Type: "string", Example: "Bestseller"},
		{Key: ColumnDescription, Label: "Description", Description: "Product description", Required: false, Type: "string", Example: "Hand-wrapped silk thread bangles"},
		{Key: ColumnImages, Label: "Images", Description: "Comma-separated image URLs", Required: false, Type: "list", Example: "https://example.com/a.jpg,https://example.com/b.jpg"},
		{Key: ColumnStatus, Label: "Status", Description: "active or inactive (default: active)", Required: false, Type: "string", Example: "active"},
	}
}

// ProductImportTemplate returns the full import template for products
func ProductImportTemplate() ImportTemplate {
	return ImportTemplate{
		Entity:  "products",
		Version: "1.0",
		Columns: ProductImportColumns(),
		SampleData: []map[string]string{
			{
				"Name":        "Silk Bangles",
				"Category":    "Bangles",
				"Type":        "Kada",
				"MRP Price":   "500",
				"Offer Price": "449",
				"Status":      "active",
			},
		},
	}
}

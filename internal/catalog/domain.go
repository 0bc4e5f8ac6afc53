package catalog

import "time"

// Storage keys for the catalog collections. The JSON field names below match
// the original persisted shape, so existing data imports cleanly.
const (
	KeySuperCategories = "superCategories"
	KeySubCategories   = "subCategories"
	KeyProducts        = "products"
)

// SuperCategory is the root of the catalog hierarchy.
type SuperCategory struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Icon      string    `json:"icon"`
	Image     string    `json:"image,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SubCategory groups products under a super category.
type SubCategory struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Icon            string    `json:"icon"`
	Image           string    `json:"image,omitempty"`
	SuperCategoryID string    `json:"superCategoryId"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Product is a sellable item. Stock is the authoritative on-hand quantity,
// maintained by sale recording and purchase receiving.
type Product struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Price         float64   `json:"price"`
	Stock         float64   `json:"stock"`
	Unit          string    `json:"unit"`
	Image         string    `json:"image,omitempty"`
	SubCategoryID string    `json:"subCategoryId"`
	HamaliValue   float64   `json:"hamaliValue"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// SuperCategoryInput carries the caller-supplied fields for create.
type SuperCategoryInput struct {
	Name  string `validate:"required"`
	Icon  string `validate:"required"`
	Image string
}

// SubCategoryInput carries the caller-supplied fields for create.
type SubCategoryInput struct {
	Name            string `validate:"required"`
	Icon            string `validate:"required"`
	Image           string
	SuperCategoryID string `validate:"required"`
}

// ProductInput carries the caller-supplied fields for create.
type ProductInput struct {
	Name          string  `validate:"required"`
	Price         float64 `validate:"gte=0"`
	Stock         float64 `validate:"gte=0"`
	Unit          string  `validate:"required"`
	Image         string
	SubCategoryID string  `validate:"required"`
	HamaliValue   float64 `validate:"gte=0"`
}

// SuperCategoryPatch updates a subset of fields; nil means unchanged.
type SuperCategoryPatch struct {
	Name  *string
	Icon  *string
	Image *string
}

// SubCategoryPatch updates a subset of fields; nil means unchanged.
type SubCategoryPatch struct {
	Name            *string
	Icon            *string
	Image           *string
	SuperCategoryID *string
}

// ProductPatch updates a subset of fields; nil means unchanged.
type ProductPatch struct {
	Name          *string
	Price         *float64
	Stock         *float64
	Unit          *string
	Image         *string
	SubCategoryID *string
	HamaliValue   *float64
}

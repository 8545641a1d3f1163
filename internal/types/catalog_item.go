package types

import (
	"time"

	"gorm.io/datatypes"
)

// CatalogItem is the canonical per-product record. It is created on the first
// adapter sighting of an item id, mutated on every run that sees new data for
// that id, and never deleted.
//
// PriceHistory stays a raw JSON column: rows written before the price-history
// normalizer ran may carry epoch numbers or loose date strings, and the
// normalizer is the one place that interprets them.
type CatalogItem struct {
	ID                string                              `gorm:"primaryKey" json:"id"`
	ProductName       string                              `gorm:"column:product_name" json:"productName"`
	ImageURL          string                              `gorm:"column:image_url" json:"imageUrl"`
	Specs             datatypes.JSONType[Specs]           `gorm:"column:specs;type:jsonb" json:"specs"`
	PriceHistory      datatypes.JSON                      `gorm:"column:price_history;type:jsonb" json:"priceHistory"`
	Affiliate         datatypes.JSONType[map[string]string] `gorm:"column:affiliate;type:jsonb" json:"affiliate"`
	Tags              datatypes.JSONType[[]string]        `gorm:"column:tags;type:jsonb" json:"tags"`
	FeatureHighlights datatypes.JSONType[[]string]        `gorm:"column:feature_highlights;type:jsonb" json:"featureHighlights"`
	Scores            datatypes.JSONType[map[string]float64] `gorm:"column:scores;type:jsonb" json:"scores"`
	CreatedAt         time.Time                           `gorm:"not null" json:"createdAt"`
	UpdatedAt         time.Time                           `gorm:"not null" json:"updatedAt"`
}

func (CatalogItem) TableName() string { return "catalog_item" }

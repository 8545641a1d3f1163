package types

import (
	"time"

	"gorm.io/datatypes"
)

// MonitoredItem is the denormalized, UI-facing projection of a CatalogItem.
// The projection engine is the sole writer of the projected fields; the
// quality sweep owns DataQuality. Specs are also copied to top level for
// backward compatibility with older page templates.
type MonitoredItem struct {
	ID           string  `gorm:"primaryKey" json:"id"`
	ProductName  string  `gorm:"column:product_name" json:"productName"`
	ImageURL     string  `gorm:"column:image_url" json:"imageUrl"`
	Price        float64 `gorm:"column:price" json:"price"`
	AffiliateURL string  `gorm:"column:affiliate_url" json:"affiliateUrl"`

	CapacityMah  *float64 `gorm:"column:capacity_mah" json:"capacity,omitempty"`
	OutputPowerW *float64 `gorm:"column:output_power_w" json:"outputPower,omitempty"`
	WeightG      *float64 `gorm:"column:weight_g" json:"weight,omitempty"`
	HasTypeC     *bool    `gorm:"column:has_type_c" json:"hasTypeC,omitempty"`

	Offers            datatypes.JSONType[[]Offer]            `gorm:"column:offers;type:jsonb" json:"offers"`
	PriceHistory      datatypes.JSON                         `gorm:"column:price_history;type:jsonb" json:"priceHistory"`
	Tags              datatypes.JSONType[[]string]           `gorm:"column:tags;type:jsonb" json:"tags"`
	Category          string                                 `gorm:"column:category" json:"category"`
	FeatureHighlights datatypes.JSONType[[]string]           `gorm:"column:feature_highlights;type:jsonb" json:"featureHighlights"`
	AISummary         string                                 `gorm:"column:ai_summary" json:"aiSummary"`
	Scores            datatypes.JSONType[map[string]float64] `gorm:"column:scores;type:jsonb" json:"scores"`
	DataQuality       datatypes.JSONType[QualityStamp]       `gorm:"column:data_quality;type:jsonb" json:"dataQuality"`

	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

func (MonitoredItem) TableName() string { return "monitored_item" }

package types

import (
	"time"

	"gorm.io/datatypes"
)

// SourceItem archives one raw adapter payload before normalization.
// Append-only; kept so a bad merge can always be replayed from source data.
type SourceItem struct {
	ID         uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	Source     string         `gorm:"column:source;index:idx_source_item_source_external" json:"source"`
	ExternalID string         `gorm:"column:external_id;index:idx_source_item_source_external" json:"externalId"`
	Payload    datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload"`
	FetchedAt  time.Time      `gorm:"column:fetched_at;not null" json:"fetchedAt"`
}

func (SourceItem) TableName() string { return "source_item" }

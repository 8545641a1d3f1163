package types

import "time"

// FlagGenerationEnabled gates every language-model stage. Read at trigger
// time and passed into the job explicitly, never consulted mid-run.
const FlagGenerationEnabled = "generationEnabled"

type FeatureFlag struct {
	Name      string    `gorm:"primaryKey" json:"name"`
	Enabled   bool      `gorm:"column:enabled;not null;default:false" json:"enabled"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

func (FeatureFlag) TableName() string { return "feature_flag" }

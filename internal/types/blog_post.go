package types

import (
	"time"

	"gorm.io/datatypes"
)

const (
	BlogStatusDraft     = "draft"
	BlogStatusPublished = "published"
)

// BlogPost is one generated article. Slug is stable and drives both the page
// path and the deterministic image keys under the bucket.
type BlogPost struct {
	ID           string                           `gorm:"primaryKey" json:"id"`
	Slug         string                           `gorm:"column:slug;uniqueIndex;not null" json:"slug"`
	Title        string                           `gorm:"column:title" json:"title"`
	Body         string                           `gorm:"column:body" json:"body"`
	Excerpt      string                           `gorm:"column:excerpt" json:"excerpt"`
	Status       string                           `gorm:"column:status;not null;default:'draft'" json:"status"`
	ItemID       string                           `gorm:"column:item_id;index" json:"itemId"`
	ThumbnailURL string                           `gorm:"column:thumbnail_url" json:"thumbnailUrl"`
	OGImageURL   string                           `gorm:"column:og_image_url" json:"ogImageUrl"`
	DataQuality  datatypes.JSONType[QualityStamp] `gorm:"column:data_quality;type:jsonb" json:"dataQuality"`
	PublishedAt  *time.Time                       `gorm:"column:published_at" json:"publishedAt,omitempty"`
	CreatedAt    time.Time                        `gorm:"not null" json:"createdAt"`
	UpdatedAt    time.Time                        `gorm:"not null" json:"updatedAt"`
}

func (BlogPost) TableName() string { return "blog_post" }

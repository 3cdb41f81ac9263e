package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/etherloops/ether-backend/pkg/enums"
)

// Product is a video loop listed by a vendor.
type Product struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	VendorID        uuid.UUID           `gorm:"column:vendor_id;type:uuid;not null"`
	Title           string              `gorm:"column:title;not null"`
	Description     string              `gorm:"column:description;not null;default:''"`
	Price           decimal.Decimal     `gorm:"column:price;type:numeric(10,2);not null"`
	Resolution      string              `gorm:"column:resolution;not null"`
	FPS             int                 `gorm:"column:fps;not null"`
	Codec           string              `gorm:"column:codec;not null"`
	DurationSeconds int                 `gorm:"column:duration;not null;default:0"`
	Tags            pq.StringArray      `gorm:"column:tags;type:text[];not null"`
	IsExclusive     bool                `gorm:"column:is_exclusive;not null;default:false"`
	Status          enums.ProductStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	RejectionReason *string             `gorm:"column:rejection_reason"`
	ReviewedBy      *uuid.UUID          `gorm:"column:reviewed_by;type:uuid"`
	ReviewedAt      *time.Time          `gorm:"column:reviewed_at"`
	Assets          []Asset             `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Asset is a media derivative of a product produced by the media pipeline.
type Asset struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID    uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	OriginalKey  string    `gorm:"column:s3_key_original;not null"`
	PreviewKey   string    `gorm:"column:s3_key_preview;not null"`
	ThumbnailKey string    `gorm:"column:s3_key_thumb;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Asset) TableName() string {
	return "product_assets"
}

func (a *Asset) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

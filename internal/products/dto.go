package products

import (
	"time"

	"github.com/google/uuid"

	"github.com/etherloops/ether-backend/internal/catalog"
	"github.com/etherloops/ether-backend/pkg/db/models"
	"github.com/etherloops/ether-backend/pkg/enums"
)

// ProductDTO represents a loop returned to clients.
type ProductDTO struct {
	ID              uuid.UUID           `json:"id"`
	VendorID        uuid.UUID           `json:"vendor_id"`
	Title           string              `json:"title"`
	Description     string              `json:"description"`
	Price           string              `json:"price"`
	Resolution      string              `json:"resolution"`
	FPS             int                 `json:"fps"`
	Codec           string              `json:"codec"`
	DurationSeconds int                 `json:"duration_seconds"`
	Tags            []string            `json:"tags"`
	IsExclusive     bool                `json:"is_exclusive"`
	Status          enums.ProductStatus `json:"status"`
	RejectionReason *string             `json:"rejection_reason,omitempty"`
	Assets          []AssetDTO          `json:"assets"`
	CreatedAt       time.Time           `json:"created_at"`
}

// AssetDTO exposes storage keys for the media derivatives.
type AssetDTO struct {
	ID           uuid.UUID `json:"id"`
	OriginalKey  string    `json:"original_key"`
	PreviewKey   string    `json:"preview_key"`
	ThumbnailKey string    `json:"thumbnail_key"`
}

// BrowseResult is the explore page payload.
type BrowseResult struct {
	Products []ProductDTO   `json:"products"`
	Facets   catalog.Facets `json:"facets"`
	Total    int            `json:"total"`
}

// NewProductDTO maps a product model onto the API shape.
func NewProductDTO(p models.Product) ProductDTO {
	tags := []string(p.Tags)
	if tags == nil {
		tags = []string{}
	}
	dto := ProductDTO{
		ID:              p.ID,
		VendorID:        p.VendorID,
		Title:           p.Title,
		Description:     p.Description,
		Price:           p.Price.StringFixed(2),
		Resolution:      p.Resolution,
		FPS:             p.FPS,
		Codec:           p.Codec,
		DurationSeconds: p.DurationSeconds,
		Tags:            tags,
		IsExclusive:     p.IsExclusive,
		Status:          p.Status,
		RejectionReason: p.RejectionReason,
		Assets:          make([]AssetDTO, 0, len(p.Assets)),
		CreatedAt:       p.CreatedAt,
	}
	for _, a := range p.Assets {
		dto.Assets = append(dto.Assets, AssetDTO{
			ID:           a.ID,
			OriginalKey:  a.OriginalKey,
			PreviewKey:   a.PreviewKey,
			ThumbnailKey: a.ThumbnailKey,
		})
	}
	return dto
}

// NewProductDTOs maps a slice of products.
func NewProductDTOs(rows []models.Product) []ProductDTO {
	out := make([]ProductDTO, 0, len(rows))
	for _, p := range rows {
		out = append(out, NewProductDTO(p))
	}
	return out
}

package main

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/etherloops/ether-backend/internal/products"
	"github.com/etherloops/ether-backend/pkg/db/models"
	"github.com/etherloops/ether-backend/pkg/enums"
)

// seedNamespace keeps seeded ids stable across runs.
var seedNamespace = uuid.MustParse("5d0c2f4e-7a51-4c7e-9a43-0c8f6b1e2d10")

type seedVendor struct {
	Brand string
	Email string
}

type seedLoop struct {
	Vendor      string
	Title       string
	Description string
	Price       string
	Resolution  string
	FPS         int
	Codec       string
	Duration    int
	Tags        []string
	Exclusive   bool
	Status      enums.ProductStatus
	Preview     string
}

var seedVendors = []seedVendor{
	{Brand: "NeonLabs", Email: "artist@example.com"},
	{Brand: "CyberVisuals", Email: "cyber@example.com"},
	{Brand: "ParticleFX", Email: "particles@example.com"},
	{Brand: "GeoMotion", Email: "geo@example.com"},
	{Brand: "CosmicFX", Email: "cosmic@example.com"},
}

var seedLoops = []seedLoop{
	{Vendor: "NeonLabs", Title: "Neon Waves Abstract", Description: "Flowing neon waves with dynamic color transitions", Price: "49.90", Resolution: "4K", FPS: 60, Codec: "ProRes", Duration: 10, Tags: []string{"abstract", "neon", "waves"}, Exclusive: true, Status: enums.ProductStatusApproved, Preview: "https://assets.mixkit.co/videos/preview/mixkit-ink-swirling-in-water-69-large.mp4"},
	{Vendor: "CyberVisuals", Title: "Cyber Grid Matrix", Description: "Retro grid racing toward a glowing horizon", Price: "39.90", Resolution: "4K", FPS: 30, Codec: "H.264", Duration: 15, Tags: []string{"cyber", "grid", "tech"}, Status: enums.ProductStatusApproved},
	{Vendor: "ParticleFX", Title: "Particle Storm", Description: "Dense particle bursts for high energy drops", Price: "59.90", Resolution: "4K", FPS: 60, Codec: "ProRes", Duration: 8, Tags: []string{"particles", "explosion", "dynamic"}, Exclusive: true, Status: enums.ProductStatusApproved},
	{Vendor: "NeonLabs", Title: "Liquid Chrome", Description: "Molten chrome folding over itself", Price: "44.90", Resolution: "1080p", FPS: 30, Codec: "H.265", Duration: 12, Tags: []string{"liquid", "chrome", "metallic"}, Status: enums.ProductStatusApproved},
	{Vendor: "GeoMotion", Title: "Geometric Tunnel", Description: "Endless tunnel of rotating polygons", Price: "34.90", Resolution: "4K", FPS: 60, Codec: "ProRes", Duration: 20, Tags: []string{"geometric", "tunnel", "loop"}, Status: enums.ProductStatusApproved},
	{Vendor: "CyberVisuals", Title: "Aurora Lights", Description: "Slow aurora ribbons over a night sky", Price: "29.90", Resolution: "4K", FPS: 30, Codec: "H.264", Duration: 30, Tags: []string{"aurora", "nature", "lights"}, Status: enums.ProductStatusApproved},
	{Vendor: "CosmicFX", Title: "Cosmic Nebula Explosion", Description: "A stunning cosmic explosion with vibrant colors and particles", Price: "59.90", Resolution: "4K", FPS: 60, Codec: "ProRes", Duration: 12, Tags: []string{"space", "cosmic", "explosion", "particles"}, Exclusive: true, Status: enums.ProductStatusPending},
	{Vendor: "CosmicFX", Title: "Liquid Gold Flow", Description: "Smooth flowing liquid gold with metallic reflections", Price: "44.90", Resolution: "4K", FPS: 30, Codec: "H.264", Duration: 15, Tags: []string{"liquid", "gold", "flow", "metallic"}, Status: enums.ProductStatusPending},
	{Vendor: "NeonLabs", Title: "Neon City Skyline", Description: "Futuristic city skyline with neon lights", Price: "39.90", Resolution: "1080p", FPS: 30, Codec: "H.264", Duration: 20, Tags: []string{"city", "neon", "futuristic", "skyline"}, Status: enums.ProductStatusPending},
}

func vendorID(brand string) uuid.UUID {
	return uuid.NewSHA1(seedNamespace, []byte("vendor:"+brand))
}

func loopID(title string) uuid.UUID {
	return uuid.NewSHA1(seedNamespace, []byte("loop:"+title))
}

func (l seedLoop) model() (*models.Product, error) {
	price, err := decimal.NewFromString(l.Price)
	if err != nil {
		return nil, err
	}
	id := loopID(l.Title)
	preview := l.Preview
	if preview == "" {
		preview = "previews/" + id.String() + ".mp4"
	}
	return &models.Product{
		ID:              id,
		VendorID:        vendorID(l.Vendor),
		Title:           l.Title,
		Description:     l.Description,
		Price:           price,
		Resolution:      l.Resolution,
		FPS:             l.FPS,
		Codec:           l.Codec,
		DurationSeconds: l.Duration,
		Tags:            pq.StringArray(l.Tags),
		IsExclusive:     l.Exclusive,
		Status:          l.Status,
		Assets: []models.Asset{{
			ID:           uuid.NewSHA1(seedNamespace, []byte("asset:"+l.Title)),
			ProductID:    id,
			OriginalKey:  "originals/" + id.String() + ".mov",
			PreviewKey:   preview,
			ThumbnailKey: "thumbs/" + id.String() + ".jpg",
		}},
	}, nil
}

type productWriter interface {
	Create(ctx context.Context, product *models.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type seedResult struct {
	Created int
	Skipped int
}

// seedCatalog inserts every loop that does not exist yet. Existing rows are
// left untouched so review decisions survive a reseed.
func seedCatalog(ctx context.Context, repo productWriter, loops []seedLoop) (seedResult, error) {
	var res seedResult
	for _, loop := range loops {
		product, err := loop.model()
		if err != nil {
			return res, err
		}
		_, err = repo.FindByID(ctx, product.ID)
		switch {
		case err == nil:
			res.Skipped++
			continue
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return res, err
		}
		if err := repo.Create(ctx, product); err != nil {
			return res, err
		}
		res.Created++
	}
	return res, nil
}

var _ productWriter = (*products.Repository)(nil)

package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etherloops/ether-backend/internal/products"
	"github.com/etherloops/ether-backend/pkg/db/dbtest"
	"github.com/etherloops/ether-backend/pkg/enums"
)

func TestSeedLoopsAreWellFormed(t *testing.T) {
	brands := map[string]bool{}
	for _, v := range seedVendors {
		brands[v.Brand] = true
	}
	titles := map[string]bool{}
	for _, loop := range seedLoops {
		assert.True(t, brands[loop.Vendor], "unknown vendor %s", loop.Vendor)
		assert.False(t, titles[loop.Title], "duplicate title %s", loop.Title)
		titles[loop.Title] = true

		product, err := loop.model()
		require.NoError(t, err)
		assert.True(t, product.Price.IsPositive())
		assert.NotEmpty(t, product.Tags)
		require.Len(t, product.Assets, 1)
	}
}

func TestSeedCatalogIsRepeatable(t *testing.T) {
	conn := dbtest.Open(t)
	repo := products.NewRepository(conn)
	ctx := context.Background()

	first, err := seedCatalog(ctx, repo, seedLoops)
	require.NoError(t, err)
	assert.Equal(t, len(seedLoops), first.Created)

	second, err := seedCatalog(ctx, repo, seedLoops)
	require.NoError(t, err)
	assert.Zero(t, second.Created)
	assert.Equal(t, len(seedLoops), second.Skipped)

	pending, err := repo.ListPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 3)
	for _, p := range pending {
		assert.Equal(t, enums.ProductStatusPending, p.Status)
	}

	nebula, err := repo.FindByID(ctx, loopID("Cosmic Nebula Explosion"))
	require.NoError(t, err)
	assert.True(t, nebula.IsExclusive)
	assert.Equal(t, "ProRes", nebula.Codec)
	assert.Equal(t, vendorID("CosmicFX"), nebula.VendorID)
}

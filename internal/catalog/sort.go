package catalog

import (
	"sort"
	"strings"

	"github.com/etherloops/ether-backend/pkg/db/models"
)

// SortKey selects the ordering of browse results.
type SortKey string

const (
	SortNewest    SortKey = "newest"
	SortPriceLow  SortKey = "price-low"
	SortPriceHigh SortKey = "price-high"
	// SortPopular puts exclusive loops first. There is no popularity signal yet.
	SortPopular SortKey = "popular"
)

// ParseSortKey normalizes raw input. Unknown keys fall back to SortNewest.
func ParseSortKey(value string) SortKey {
	switch key := SortKey(strings.ToLower(strings.TrimSpace(value))); key {
	case SortNewest, SortPriceLow, SortPriceHigh, SortPopular:
		return key
	default:
		return SortNewest
	}
}

func sortProducts(products []models.Product, key SortKey) {
	var less func(a, b models.Product) bool
	switch ParseSortKey(string(key)) {
	case SortPriceLow:
		less = func(a, b models.Product) bool { return a.Price.LessThan(b.Price) }
	case SortPriceHigh:
		less = func(a, b models.Product) bool { return a.Price.GreaterThan(b.Price) }
	case SortPopular:
		less = func(a, b models.Product) bool {
			if a.IsExclusive != b.IsExclusive {
				return a.IsExclusive
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
	default:
		less = func(a, b models.Product) bool { return a.CreatedAt.After(b.CreatedAt) }
	}
	sort.SliceStable(products, func(i, j int) bool {
		return less(products[i], products[j])
	})
}

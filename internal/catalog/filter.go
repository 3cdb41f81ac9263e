// Package catalog filters and sorts approved loops for the explore surface.
package catalog

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/etherloops/ether-backend/pkg/db/models"
)

// PriceRange is an inclusive price window. A nil bound is open.
type PriceRange struct {
	Min *decimal.Decimal `json:"min,omitempty"`
	Max *decimal.Decimal `json:"max,omitempty"`
}

// FilterState captures every sidebar selection. Empty sets do not filter.
type FilterState struct {
	Categories  []string    `json:"categories,omitempty"`
	Resolutions []string    `json:"resolutions,omitempty"`
	FPS         []int       `json:"fps,omitempty"`
	Codecs      []string    `json:"codecs,omitempty"`
	Price       *PriceRange `json:"price,omitempty"`
	Exclusive   *bool       `json:"exclusive,omitempty"`
}

// IsZero reports whether no filter is selected.
func (f FilterState) IsZero() bool {
	return len(f.Categories) == 0 &&
		len(f.Resolutions) == 0 &&
		len(f.FPS) == 0 &&
		len(f.Codecs) == 0 &&
		f.Price == nil &&
		(f.Exclusive == nil || !*f.Exclusive)
}

// Apply runs text search, filters and the requested sort. The input slice is never modified.
func Apply(products []models.Product, filters FilterState, sortKey SortKey, query string) []models.Product {
	matcher := newMatcher(filters, query)

	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if matcher.match(p) {
			out = append(out, p)
		}
	}

	sortProducts(out, sortKey)
	return out
}

type matcher struct {
	query       string
	categories  []string
	resolutions map[string]struct{}
	fps         map[int]struct{}
	codecs      map[string]struct{}
	price       *PriceRange
	exclusive   bool
}

func newMatcher(filters FilterState, query string) matcher {
	m := matcher{
		query:       strings.ToLower(strings.TrimSpace(query)),
		resolutions: lowerSet(filters.Resolutions),
		codecs:      lowerSet(filters.Codecs),
		price:       filters.Price,
		exclusive:   filters.Exclusive != nil && *filters.Exclusive,
	}
	for _, c := range filters.Categories {
		if trimmed := strings.ToLower(strings.TrimSpace(c)); trimmed != "" {
			m.categories = append(m.categories, trimmed)
		}
	}
	if len(filters.FPS) > 0 {
		m.fps = make(map[int]struct{}, len(filters.FPS))
		for _, v := range filters.FPS {
			m.fps[v] = struct{}{}
		}
	}
	return m
}

func (m matcher) match(p models.Product) bool {
	return m.matchQuery(p) &&
		m.matchCategories(p) &&
		inSet(m.resolutions, strings.ToLower(p.Resolution)) &&
		m.matchFPS(p) &&
		inSet(m.codecs, strings.ToLower(p.Codec)) &&
		m.matchPrice(p) &&
		(!m.exclusive || p.IsExclusive)
}

func (m matcher) matchQuery(p models.Product) bool {
	if m.query == "" {
		return true
	}
	if strings.Contains(strings.ToLower(p.Title), m.query) {
		return true
	}
	for _, tag := range p.Tags {
		if strings.Contains(strings.ToLower(tag), m.query) {
			return true
		}
	}
	return false
}

// matchCategories keeps a product when any selected category is a substring of any tag.
func (m matcher) matchCategories(p models.Product) bool {
	if len(m.categories) == 0 {
		return true
	}
	for _, category := range m.categories {
		for _, tag := range p.Tags {
			if strings.Contains(strings.ToLower(tag), category) {
				return true
			}
		}
	}
	return false
}

func (m matcher) matchFPS(p models.Product) bool {
	if len(m.fps) == 0 {
		return true
	}
	_, ok := m.fps[p.FPS]
	return ok
}

func (m matcher) matchPrice(p models.Product) bool {
	if m.price == nil {
		return true
	}
	if m.price.Min != nil && p.Price.LessThan(*m.price.Min) {
		return false
	}
	if m.price.Max != nil && p.Price.GreaterThan(*m.price.Max) {
		return false
	}
	return true
}

func lowerSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if trimmed := strings.ToLower(strings.TrimSpace(v)); trimmed != "" {
			set[trimmed] = struct{}{}
		}
	}
	return set
}

func inSet(set map[string]struct{}, value string) bool {
	if len(set) == 0 {
		return true
	}
	_, ok := set[value]
	return ok
}

package catalog

import (
	"sort"
	"strings"

	"github.com/etherloops/ether-backend/pkg/db/models"
)

// Facets lists the distinct values shown in the explore sidebar.
type Facets struct {
	Categories  []string `json:"categories"`
	Resolutions []string `json:"resolutions"`
	FPS         []int    `json:"fps"`
	Codecs      []string `json:"codecs"`
}

// BuildFacets collects sorted distinct tags, resolutions, frame rates and codecs.
func BuildFacets(products []models.Product) Facets {
	categories := map[string]struct{}{}
	resolutions := map[string]struct{}{}
	codecs := map[string]struct{}{}
	fps := map[int]struct{}{}

	for _, p := range products {
		for _, tag := range p.Tags {
			if t := strings.TrimSpace(tag); t != "" {
				categories[t] = struct{}{}
			}
		}
		if p.Resolution != "" {
			resolutions[p.Resolution] = struct{}{}
		}
		if p.Codec != "" {
			codecs[p.Codec] = struct{}{}
		}
		if p.FPS > 0 {
			fps[p.FPS] = struct{}{}
		}
	}

	f := Facets{
		Categories:  sortedKeys(categories),
		Resolutions: sortedKeys(resolutions),
		Codecs:      sortedKeys(codecs),
		FPS:         make([]int, 0, len(fps)),
	}
	for v := range fps {
		f.FPS = append(f.FPS, v)
	}
	sort.Ints(f.FPS)
	return f
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

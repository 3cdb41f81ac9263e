package catalog

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/etherloops/ether-backend/pkg/errors"
)

// Query is the parsed browse request.
type Query struct {
	Filters FilterState
	Sort    SortKey
	Text    string
}

type invalidParam struct {
	Param  string `json:"param"`
	Reason string `json:"reason"`
}

// ParseQuery reads browse parameters. List params accept repeats and comma separated values.
func ParseQuery(values url.Values) (Query, error) {
	q := Query{
		Sort: ParseSortKey(values.Get("sort")),
		Text: strings.TrimSpace(values.Get("q")),
	}
	q.Filters.Categories = listParam(values, "category")
	q.Filters.Resolutions = listParam(values, "resolution")
	q.Filters.Codecs = listParam(values, "codec")

	var problems []invalidParam

	for _, raw := range listParam(values, "fps") {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			problems = append(problems, invalidParam{Param: "fps", Reason: "must be a positive integer"})
			continue
		}
		q.Filters.FPS = append(q.Filters.FPS, v)
	}

	minPrice, ok := decimalParam(values, "price_min", &problems)
	maxPrice, ok2 := decimalParam(values, "price_max", &problems)
	if ok && ok2 && (minPrice != nil || maxPrice != nil) {
		if minPrice != nil && maxPrice != nil && minPrice.GreaterThan(*maxPrice) {
			problems = append(problems, invalidParam{Param: "price_min", Reason: "must not exceed price_max"})
		} else {
			q.Filters.Price = &PriceRange{Min: minPrice, Max: maxPrice}
		}
	}

	if raw := strings.TrimSpace(values.Get("exclusive")); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			problems = append(problems, invalidParam{Param: "exclusive", Reason: "must be a boolean"})
		} else {
			q.Filters.Exclusive = &b
		}
	}

	if len(problems) > 0 {
		return Query{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid browse parameters").
			WithDetails(map[string]any{"params": problems})
	}
	return q, nil
}

func listParam(values url.Values, key string) []string {
	var out []string
	for _, raw := range values[key] {
		for _, part := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}

func decimalParam(values url.Values, key string, problems *[]invalidParam) (*decimal.Decimal, bool) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return nil, true
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		*problems = append(*problems, invalidParam{Param: key, Reason: "must be a non-negative number"})
		return nil, false
	}
	return &d, true
}

package catalog

import (
	"strings"

	"github.com/abahm00/shopwise-clone/src/frontend/model"
)

// Filter keeps the products whose title contains query and whose category equals
// category, both case-insensitively. An empty query or category matches everything.
func Filter(products []model.Product, query, category string) []model.Product {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]model.Product, 0, len(products))
	for _, p := range products {
		if q != "" && !strings.Contains(strings.ToLower(p.Title), q) {
			continue
		}
		if category != "" && !strings.EqualFold(p.Category, category) {
			continue
		}
		out = append(out, p)
	}
	return out
}

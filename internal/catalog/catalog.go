// Package catalog holds the storefront's mock product data.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"rupped-storefront/internal/model"

	"gopkg.in/yaml.v3"
)

//go:embed products.yaml
var embedded []byte

var ErrEmptyCatalog = errors.New("catalog has no products")

// Catalog is immutable after loading and safe for concurrent reads.
type Catalog struct {
	products []model.Product
	byID     map[string]int
}

// Load reads the catalog from path, or the embedded catalog when path is
// empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(embedded)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var products []model.Product
	if err := yaml.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(products) == 0 {
		return nil, ErrEmptyCatalog
	}

	byID := make(map[string]int, len(products))
	for i, p := range products {
		if p.ID == "" {
			return nil, fmt.Errorf("catalog entry %d has no id", i)
		}
		if _, dup := byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate product id %q", p.ID)
		}
		byID[p.ID] = i
	}

	return &Catalog{products: products, byID: byID}, nil
}

// All returns the products in featured order. The slice is a copy.
func (c *Catalog) All() []model.Product {
	return append([]model.Product(nil), c.products...)
}

func (c *Catalog) Get(id string) (model.Product, bool) {
	i, ok := c.byID[id]
	if !ok {
		return model.Product{}, false
	}
	return c.products[i], true
}

func (c *Catalog) Len() int {
	return len(c.products)
}

// Categories lists category names alphabetically with product counts.
func (c *Catalog) Categories() []model.CategoryCount {
	counts := make(map[string]int)
	for _, p := range c.products {
		counts[p.Category]++
	}

	out := make([]model.CategoryCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, model.CategoryCount{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (c *Catalog) HasCategory(name string) bool {
	for _, p := range c.products {
		if p.Category == name {
			return true
		}
	}
	return false
}

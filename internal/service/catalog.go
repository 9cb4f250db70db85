package service

import (
	"errors"
	"sort"
	"strings"

	"rupped-storefront/internal/catalog"
	"rupped-storefront/internal/model"
)

const (
	SortFeatured  = "featured"
	SortPriceLow  = "price-low"
	SortPriceHigh = "price-high"
	SortRating    = "rating"
	SortNewest    = "newest"
)

const maxRelated = 3

var ErrProductNotFound = errors.New("product not found")

type CatalogService struct {
	catalog *catalog.Catalog
}

func NewCatalogService(c *catalog.Catalog) *CatalogService {
	return &CatalogService{catalog: c}
}

func (s *CatalogService) Catalog() *catalog.Catalog {
	return s.catalog
}

// List filters and sorts the whole catalog.
func (s *CatalogService) List(q model.ProductQuery) model.ProductListResponse {
	products := filterProducts(s.catalog.All(), q)
	sortProducts(products, q.Sort)
	return model.ProductListResponse{
		Category: q.Category,
		Total:    len(products),
		Products: products,
	}
}

// Category lists one category. An unknown category shows every product.
func (s *CatalogService) Category(name string, q model.ProductQuery) model.ProductListResponse {
	q.Category = name
	if !s.catalog.HasCategory(name) {
		q.Category = ""
	}
	resp := s.List(q)
	resp.Category = name
	return resp
}

func (s *CatalogService) Detail(id string) (model.ProductDetail, error) {
	product, ok := s.catalog.Get(id)
	if !ok {
		return model.ProductDetail{}, ErrProductNotFound
	}

	related := make([]model.Product, 0, maxRelated)
	for _, p := range s.catalog.All() {
		if len(related) == maxRelated {
			break
		}
		if p.Category == product.Category && p.ID != product.ID {
			related = append(related, p)
		}
	}

	return model.ProductDetail{Product: product, Related: related}, nil
}

func (s *CatalogService) Categories() []model.CategoryCount {
	return s.catalog.Categories()
}

func filterProducts(products []model.Product, q model.ProductQuery) []model.Product {
	search := strings.ToLower(strings.TrimSpace(q.Search))

	out := products[:0]
	for _, p := range products {
		if q.Category != "" && p.Category != q.Category {
			continue
		}
		if q.MinPrice > 0 && p.Price < q.MinPrice {
			continue
		}
		if q.MaxPrice > 0 && p.Price > q.MaxPrice {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// sortProducts orders in place. Unknown keys keep the featured order.
func sortProducts(products []model.Product, key string) {
	switch key {
	case SortPriceLow:
		sort.SliceStable(products, func(i, j int) bool { return products[i].Price < products[j].Price })
	case SortPriceHigh:
		sort.SliceStable(products, func(i, j int) bool { return products[i].Price > products[j].Price })
	case SortRating:
		sort.SliceStable(products, func(i, j int) bool { return products[i].Rating > products[j].Rating })
	case SortNewest:
		sort.SliceStable(products, func(i, j int) bool { return products[i].IsNew && !products[j].IsNew })
	}
}

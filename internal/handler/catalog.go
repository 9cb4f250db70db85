package handler

import (
	"errors"
	"net/http"
	"strconv"

	"rupped-storefront/internal/model"
	"rupped-storefront/internal/service"

	"github.com/gin-gonic/gin"
)

type CatalogHandler struct {
	catalog *service.CatalogService
}

func NewCatalogHandler(catalog *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// ListProducts GET /api/products
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	q, err := bindProductQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	q.Category = c.Query("category")
	c.JSON(http.StatusOK, h.catalog.List(q))
}

// GetProduct GET /api/products/:id
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	detail, err := h.catalog.Detail(c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, detail)
}

// ListCategories GET /api/categories
func (h *CatalogHandler) ListCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": h.catalog.Categories()})
}

// GetCategory GET /api/categories/:category
func (h *CatalogHandler) GetCategory(c *gin.Context) {
	q, err := bindProductQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.catalog.Category(c.Param("category"), q))
}

func bindProductQuery(c *gin.Context) (model.ProductQuery, error) {
	q := model.ProductQuery{
		Sort:   c.DefaultQuery("sort", service.SortFeatured),
		Search: c.Query("q"),
	}

	var err error
	if v := c.Query("min_price"); v != "" {
		if q.MinPrice, err = strconv.ParseFloat(v, 64); err != nil {
			return q, errors.New("invalid min_price")
		}
	}
	if v := c.Query("max_price"); v != "" {
		if q.MaxPrice, err = strconv.ParseFloat(v, 64); err != nil {
			return q, errors.New("invalid max_price")
		}
	}
	return q, nil
}

package handler

import (
	"errors"
	"net/http"

	"rupped-storefront/internal/model"
	"rupped-storefront/internal/service"
	"rupped-storefront/internal/storage"

	"github.com/gin-gonic/gin"
)

type CartHandler struct {
	carts *service.CartService
}

func NewCartHandler(carts *service.CartService) *CartHandler {
	return &CartHandler{carts: carts}
}

// CreateCart POST /api/cart
func (h *CartHandler) CreateCart(c *gin.Context) {
	summary, err := h.carts.Create()
	if err != nil {
		cartError(c, err)
		return
	}
	c.JSON(http.StatusCreated, summary)
}

// GetCart GET /api/cart/:id
func (h *CartHandler) GetCart(c *gin.Context) {
	summary, err := h.carts.Get(c.Param("id"))
	if err != nil {
		cartError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// UpdateItem PUT /api/cart/:id/items/:productId
func (h *CartHandler) UpdateItem(c *gin.Context) {
	var req model.UpdateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	summary, err := h.carts.SetQuantity(c.Param("id"), c.Param("productId"), req.Quantity)
	if err != nil {
		cartError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// RemoveItem DELETE /api/cart/:id/items/:productId
func (h *CartHandler) RemoveItem(c *gin.Context) {
	summary, err := h.carts.RemoveItem(c.Param("id"), c.Param("productId"))
	if err != nil {
		cartError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// ApplyPromo POST /api/cart/:id/promo
func (h *CartHandler) ApplyPromo(c *gin.Context) {
	var req model.PromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	summary, err := h.carts.ApplyPromo(c.Param("id"), req.Code)
	if err != nil {
		cartError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func cartError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidPromo):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid promo code"})
	case errors.Is(err, service.ErrInvalidQuantity):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Quantity must be at least 1"})
	case errors.Is(err, storage.ErrCartNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Cart not found"})
	case errors.Is(err, service.ErrProductNotFound), errors.Is(err, service.ErrItemNotInCart):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

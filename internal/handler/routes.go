package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Storefront groups the handlers served by the storefront binary.
type Storefront struct {
	Negotiate *NegotiateHandler
	Catalog   *CatalogHandler
	Cart      *CartHandler
	Setup     *SetupHandler
}

// RegisterStorefront mounts the storefront API. pullLimit guards the model
// pull proxy and may be nil.
func RegisterStorefront(router gin.IRouter, h Storefront, pullLimit gin.HandlerFunc) {
	router.GET("/health", Health)

	api := router.Group("/api")
	{
		api.POST("/negotiate", h.Negotiate.Negotiate)

		api.GET("/products", h.Catalog.ListProducts)
		api.GET("/products/:id", h.Catalog.GetProduct)
		api.GET("/categories", h.Catalog.ListCategories)
		api.GET("/categories/:category", h.Catalog.GetCategory)

		cart := api.Group("/cart")
		{
			cart.POST("", h.Cart.CreateCart)
			cart.GET("/:id", h.Cart.GetCart)
			cart.PUT("/:id/items/:productId", h.Cart.UpdateItem)
			cart.DELETE("/:id/items/:productId", h.Cart.RemoveItem)
			cart.POST("/:id/promo", h.Cart.ApplyPromo)
		}

		setup := api.Group("/setup")
		{
			setup.GET("/status", h.Setup.Status)
			setup.POST("/refresh", h.Setup.Refresh)
			setup.GET("/models", h.Setup.Models)
			if pullLimit != nil {
				setup.POST("/pull-model", pullLimit, h.Setup.PullModel)
			} else {
				setup.POST("/pull-model", h.Setup.PullModel)
			}
		}

		api.GET("/debug/tests", h.Setup.Tests)
	}
}

// RegisterNegotiator mounts the negotiation backend API.
func RegisterNegotiator(router gin.IRouter, h *BackendHandler) {
	router.GET("/", h.Root)
	router.GET("/health", h.Health)

	api := router.Group("/api")
	{
		api.POST("/negotiate", h.Negotiate)
		api.POST("/negotiate/non-streaming", h.NegotiateNonStreaming)
		api.POST("/negotiate/mock", h.NegotiateMock)
		api.GET("/models", h.Models)
		api.POST("/pull-model", h.PullModel)
	}
}

// Health is the storefront liveness probe.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

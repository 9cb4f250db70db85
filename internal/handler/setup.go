package handler

import (
	"net/http"

	"rupped-storefront/internal/middleware"
	"rupped-storefront/internal/service"

	"github.com/gin-gonic/gin"
)

// SetupHandler serves the setup console and the storefront self checks.
type SetupHandler struct {
	setup *service.SetupService
}

func NewSetupHandler(setup *service.SetupService) *SetupHandler {
	return &SetupHandler{setup: setup}
}

// Status GET /api/setup/status
func (h *SetupHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.setup.Status())
}

// Refresh POST /api/setup/refresh
func (h *SetupHandler) Refresh(c *gin.Context) {
	c.JSON(http.StatusOK, h.setup.Probe(c.Request.Context()))
}

// Models GET /api/setup/models
func (h *SetupHandler) Models(c *gin.Context) {
	list, err := h.setup.Negotiator().Models(c.Request.Context())
	if err != nil {
		middleware.Log(c).Warnf("list models failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, list)
}

// PullModel POST /api/setup/pull-model?model_name=
func (h *SetupHandler) PullModel(c *gin.Context) {
	out, err := h.setup.Negotiator().PullModel(c.Request.Context(), c.Query("model_name"))
	if err != nil {
		middleware.Log(c).Errorf("pull model failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, out)
}

// Tests GET /api/debug/tests
func (h *SetupHandler) Tests(c *gin.Context) {
	results := h.setup.RunDiagnostics(c.Request.Context())

	passed := true
	for _, r := range results {
		if !r.Passed {
			passed = false
			break
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"passed":  passed,
		"results": results,
	})
}

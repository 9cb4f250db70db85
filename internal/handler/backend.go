package handler

import (
	"fmt"
	"net/http"

	"rupped-storefront/internal/middleware"
	"rupped-storefront/internal/model"
	"rupped-storefront/internal/service"
	"rupped-storefront/internal/utils"

	"github.com/gin-gonic/gin"
)

// BackendHandler serves the negotiator API that the storefront relay talks
// to.
type BackendHandler struct {
	negotiator *service.Negotiator
	ollama     *service.OllamaClient
}

func NewBackendHandler(negotiator *service.Negotiator, ollama *service.OllamaClient) *BackendHandler {
	return &BackendHandler{
		negotiator: negotiator,
		ollama:     ollama,
	}
}

// Root GET /
func (h *BackendHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Rupped AI Negotiation API is running."})
}

// Negotiate POST /api/negotiate
func (h *BackendHandler) Negotiate(c *gin.Context) {
	var req model.NegotiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	log := middleware.Log(c).WithField("product_id", req.ProductID)
	ctx := c.Request.Context()

	sr, err := h.negotiator.Stream(ctx, req)
	if err != nil {
		log.Errorf("打开模型流失败: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	sse := utils.NewSSEWriter(c.Writer)
	c.Status(http.StatusOK)

	err = h.negotiator.StreamSnapshots(ctx, sr, func(snapshot string) error {
		return sse.Write("", snapshot)
	})
	if err != nil {
		// 连接已建立，只能中止流
		log.Errorf("negotiation stream failed: %v", err)
		return
	}

	if err := sse.Close(); err != nil {
		log.Warnf("failed to write stream terminator: %v", err)
	}
}

// NegotiateNonStreaming POST /api/negotiate/non-streaming
func (h *BackendHandler) NegotiateNonStreaming(c *gin.Context) {
	var req model.NegotiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	text, err := h.negotiator.Reply(c.Request.Context(), req)
	if err != nil {
		middleware.Log(c).Errorf("Error in negotiation: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, model.TextResponse{Text: text})
}

// NegotiateMock POST /api/negotiate/mock
func (h *BackendHandler) NegotiateMock(c *gin.Context) {
	var req model.NegotiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, model.TextResponse{Text: service.MockReply(req)})
}

// Health GET /health
func (h *BackendHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, h.ollama.Health(c.Request.Context()))
}

// Models GET /api/models
func (h *BackendHandler) Models(c *gin.Context) {
	list, err := h.ollama.ListModels(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, list)
}

// PullModel POST /api/pull-model?model_name=
func (h *BackendHandler) PullModel(c *gin.Context) {
	name, err := h.ollama.PullModel(c.Request.Context(), c.Query("model_name"))
	if err != nil {
		middleware.Log(c).Errorf("pull model failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": fmt.Sprintf("Model %s pulled successfully", name),
	})
}

package handler

import (
	"errors"
	"io"
	"net/http"

	"rupped-storefront/internal/metrics"
	"rupped-storefront/internal/middleware"
	"rupped-storefront/internal/model"
	"rupped-storefront/internal/relay"
	"rupped-storefront/internal/utils"

	"github.com/gin-gonic/gin"
)

// NegotiateHandler is the storefront side of the negotiation stream. It
// forwards the request to the negotiator and copies the answer back as is.
type NegotiateHandler struct {
	relay *relay.Relay
}

func NewNegotiateHandler(r *relay.Relay) *NegotiateHandler {
	return &NegotiateHandler{relay: r}
}

// Negotiate POST /api/negotiate
func (h *NegotiateHandler) Negotiate(c *gin.Context) {
	log := middleware.Log(c)

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.fail(c, "read_error", err)
		return
	}

	upstream, err := h.relay.Open(c.Request.Context(), body)
	if err != nil {
		outcome := "upstream_error"
		switch {
		case errors.Is(err, relay.ErrInvalidRequest):
			outcome = "invalid_request"
		case errors.Is(err, relay.ErrUpstreamStatus):
			outcome = "upstream_status"
		}
		h.fail(c, outcome, err)
		return
	}
	defer upstream.Close()

	utils.SetStreamHeaders(c.Writer.Header())
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	written, err := relay.Passthrough(c.Writer, c.Writer.Flush, upstream)
	if err != nil {
		// 已经开始输出，状态码无法再修改，只能记录
		metrics.RelayRequests.WithLabelValues("stream_error").Inc()
		log.Errorf("negotiation stream interrupted after %d bytes: %v", written, err)
		return
	}

	metrics.RelayRequests.WithLabelValues("ok").Inc()
	log.Debugf("negotiation stream relayed %d bytes", written)
}

func (h *NegotiateHandler) fail(c *gin.Context, outcome string, err error) {
	metrics.RelayRequests.WithLabelValues(outcome).Inc()
	middleware.Log(c).Errorf("Error in negotiation API: %v", err)
	c.JSON(http.StatusInternalServerError, model.TextResponse{Text: relay.UnavailableMessage})
}

package middleware

import (
	"strconv"
	"time"

	"rupped-storefront/internal/metrics"
	"rupped-storefront/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	loggerKey       = "logger"
)

// RequestID reuses the caller's X-Request-ID or mints a new one, and echoes
// it on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// Logger stores a request scoped entry on the context and writes one access
// line per request. It also records the HTTP metrics.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		entry := logger.WithFields(logger.Fields{
			"http.req.id":     GetRequestID(c),
			"http.req.method": c.Request.Method,
			"http.req.path":   c.Request.URL.Path,
		})
		c.Set(loggerKey, entry)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)

		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(elapsed.Seconds())

		done := entry.WithFields(logrus.Fields{
			"http.resp.status":  status,
			"http.resp.took_ms": elapsed.Milliseconds(),
			"http.resp.bytes":   c.Writer.Size(),
		})
		if len(c.Errors) > 0 {
			done.Warn(c.Errors.String())
			return
		}
		done.Debug("request complete")
	}
}

// Log returns the request scoped entry, or a plain one outside Logger.
func Log(c *gin.Context) logrus.FieldLogger {
	if v, ok := c.Get(loggerKey); ok {
		if entry, ok := v.(*logrus.Entry); ok {
			return entry
		}
	}
	return logger.WithField("http.req.id", GetRequestID(c))
}

package logger

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	obscontext "github.com/ZhulikovN/platform-payment-sync/internal/observability/context"
)

const requestIDHeader = "X-Request-Id"

// MiddlewareConfig controls the request logging middleware.
type MiddlewareConfig struct {
	// Paths that are not logged on success, e.g. health probes.
	SkipPaths []string
}

// GinMiddleware assigns a request id, stores it in the request context and
// logs one line per request with masked headers.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, path := range cfg.SkipPaths {
		skip[path] = struct{}{}
	}

	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)

		ctx := obscontext.WithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		if _, skipped := skip[c.Request.URL.Path]; skipped && status < 500 {
			return
		}

		log := FromContext(c.Request.Context()).With(
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.Any("headers", MaskHeaders(c.Request.Header)),
		)
		switch {
		case status >= 500:
			log.Error("request failed")
		case status >= 400:
			log.Warn("request rejected")
		default:
			log.Info("request handled")
		}
	}
}

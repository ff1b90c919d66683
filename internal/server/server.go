// Package server is the inbound HTTP boundary: webhook intake, operational
// endpoints and the outcome-to-status mapping.
package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/ZhulikovN/platform-payment-sync/internal/config"
	eventlogdomain "github.com/ZhulikovN/platform-payment-sync/internal/eventlog/domain"
	"github.com/ZhulikovN/platform-payment-sync/internal/observability/logger"
	"github.com/ZhulikovN/platform-payment-sync/internal/observability/metrics"
	reconciledomain "github.com/ZhulikovN/platform-payment-sync/internal/reconcile/domain"
)

type ServerParam struct {
	fx.In

	Config      config.Config
	Log         *zap.Logger
	Reconciler  reconciledomain.Service
	Ledger      eventlogdomain.Repository
	SyncMetrics *metrics.SyncMetrics `optional:"true"`
	HTTPMetrics *metrics.HTTPMetrics `optional:"true"`
}

// Server holds the handler dependencies.
type Server struct {
	cfg         config.Config
	log         *zap.Logger
	reconciler  reconciledomain.Service
	ledger      eventlogdomain.Repository
	syncMetrics *metrics.SyncMetrics
	limiter     *rateLimiter
}

func New(p ServerParam) *Server {
	return &Server{
		cfg:         p.Config,
		log:         p.Log.Named("server"),
		reconciler:  p.Reconciler,
		ledger:      p.Ledger,
		syncMetrics: p.SyncMetrics,
		limiter:     newRateLimiter(120, rateLimitWindow),
	}
}

// NewEngine builds the gin engine with the shared middleware stack.
func NewEngine(cfg config.Config, httpMetrics *metrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		SkipPaths: []string{"/webhook/health", "/metrics"},
	}))
	engine.Use(metrics.GinMiddleware(httpMetrics))
	return engine
}

// RegisterRoutes mounts the webhook and operational endpoints.
func (s *Server) RegisterRoutes(engine *gin.Engine) {
	webhook := engine.Group("/webhook")
	webhook.GET("/health", s.Health)
	webhook.POST("/payment", s.requireSecret, s.rateLimit, s.HandlePayment)
	webhook.POST("/payment-batch", s.requireSecret, s.rateLimit, s.HandlePaymentBatch)

	ops := engine.Group("/ops", s.requireSecret)
	ops.GET("/stats", s.Stats)
	ops.POST("/replay", s.Replay)
	ops.POST("/cleanup", s.Cleanup)

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Health reports liveness.
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) rateLimit(c *gin.Context) {
	if !s.limiter.Allow(c.ClientIP()) {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
		return
	}
	c.Next()
}

// outcomeStatus maps a reconciliation outcome onto an HTTP status.
func outcomeStatus(outcome reconciledomain.Outcome) int {
	switch outcome.Status {
	case reconciledomain.OutcomeSuccess:
		return http.StatusOK
	case reconciledomain.OutcomeDuplicate:
		return http.StatusConflict
	case reconciledomain.OutcomeSkipped:
		return http.StatusAccepted
	case reconciledomain.OutcomeContactNotFound, reconciledomain.OutcomeLeadNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func outcomeBody(outcome reconciledomain.Outcome) gin.H {
	body := gin.H{"status": string(outcome.Status)}
	if outcome.Reason != "" {
		body["reason"] = outcome.Reason
	}
	if outcome.ContactID != 0 {
		body["contact_id"] = outcome.ContactID
	}
	if outcome.LeadID != 0 {
		body["lead_id"] = outcome.LeadID
		body["lead_created"] = outcome.LeadCreated
	}
	return body
}

func trimmedQuery(c *gin.Context, key string) string {
	return strings.TrimSpace(c.Query(key))
}

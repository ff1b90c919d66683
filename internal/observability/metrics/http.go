package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics captures low-cardinality HTTP server metrics.
type HTTPMetrics struct {
	requestDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge
}

func newHTTPMetrics(registerer prometheus.Registerer, constLabels prometheus.Labels) *HTTPMetrics {
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:        "paymentsync_http_request_duration_seconds",
			Help:        "HTTP request duration by route and status.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		},
		[]string{"endpoint", "status_code"},
	)
	inFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name:        "paymentsync_http_in_flight_requests",
			Help:        "Requests currently being served.",
			ConstLabels: constLabels,
		},
	)
	registerer.MustRegister(requestDuration, inFlight)
	return &HTTPMetrics{requestDuration: requestDuration, inFlight: inFlight}
}

// GinMiddleware records request duration and in-flight metrics.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		m.inFlight.Inc()
		start := time.Now()
		c.Next()
		m.inFlight.Dec()

		endpoint := normalizeEndpoint(c.FullPath())
		status := strconv.Itoa(c.Writer.Status())
		m.requestDuration.WithLabelValues(endpoint, status).Observe(time.Since(start).Seconds())
	}
}

func normalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "unknown"
	}
	return endpoint
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/ZhulikovN/platform-payment-sync/internal/config"
)

// Module provides the HTTP and reconciliation instruments on the default
// prometheus registry.
var Module = fx.Module("metrics",
	fx.Provide(func(cfg config.Config) (*HTTPMetrics, *SyncMetrics) {
		labels := constLabels(Config{
			ServiceName: "platform-payment-sync",
			Environment: cfg.Environment,
		})
		return newHTTPMetrics(prometheus.DefaultRegisterer, labels),
			newSyncMetrics(prometheus.DefaultRegisterer, labels)
	}),
)

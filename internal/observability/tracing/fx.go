package tracing

import (
	"go.uber.org/fx"

	"github.com/ZhulikovN/platform-payment-sync/internal/config"
)

const (
	serviceName    = "platform-payment-sync"
	serviceVersion = "1.0.0"
)

// Module wires the tracer provider into the application lifecycle.
var Module = fx.Module("tracing",
	fx.Provide(func(cfg config.Config) Config {
		return Config{
			Enabled:          cfg.Tracing.Enabled,
			ServiceName:      serviceName,
			ServiceVersion:   serviceVersion,
			Environment:      cfg.Environment,
			ExporterEndpoint: cfg.Tracing.ExporterEndpoint,
			ExporterProtocol: cfg.Tracing.ExporterProtocol,
			SamplingRatio:    cfg.Tracing.SamplingRatio,
		}
	}),
	fx.Invoke(NewProvider),
)

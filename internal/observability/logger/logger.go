// Package logger builds the process-wide zap logger and the request logging
// middleware. Sensitive material never reaches the log stream: headers and
// payload fields go through the masking helpers first.
package logger

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ZhulikovN/platform-payment-sync/internal/config"
	obscontext "github.com/ZhulikovN/platform-payment-sync/internal/observability/context"
)

// Config controls logger construction.
type Config struct {
	Level       string
	Environment string
}

// Module provides *zap.Logger and installs it as the zap global.
var Module = fx.Module("logger",
	fx.Provide(func(cfg config.Config) Config {
		return Config{Level: cfg.LogLevel, Environment: cfg.Environment}
	}),
	fx.Provide(New),
	fx.Invoke(func(log *zap.Logger) {
		zap.ReplaceGlobals(log)
	}),
)

// New builds a production or development logger depending on the environment.
func New(cfg Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if strings.EqualFold(cfg.Environment, "production") {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(parseLevel(cfg.Level))
	return zapCfg.Build()
}

// ContextFields returns the identifier fields the context carries: the
// active span's trace/span ids, the request id and the payment id under
// reconciliation.
func ContextFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	var fields []zap.Field
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	if paymentID := obscontext.PaymentIDFromContext(ctx); paymentID != "" {
		fields = append(fields, zap.String("payment_id", paymentID))
	}
	return fields
}

// FromContext returns the global logger enriched with ContextFields.
func FromContext(ctx context.Context) *zap.Logger {
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return zap.L()
	}
	return zap.L().With(fields...)
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

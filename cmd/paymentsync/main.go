package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/ZhulikovN/platform-payment-sync/internal/amocrm"
	"github.com/ZhulikovN/platform-payment-sync/internal/clock"
	"github.com/ZhulikovN/platform-payment-sync/internal/config"
	"github.com/ZhulikovN/platform-payment-sync/internal/eventlog"
	"github.com/ZhulikovN/platform-payment-sync/internal/eventlog/maintenance"
	"github.com/ZhulikovN/platform-payment-sync/internal/observability/logger"
	"github.com/ZhulikovN/platform-payment-sync/internal/observability/metrics"
	"github.com/ZhulikovN/platform-payment-sync/internal/observability/tracing"
	"github.com/ZhulikovN/platform-payment-sync/internal/reconcile"
	"github.com/ZhulikovN/platform-payment-sync/internal/server"
	"github.com/ZhulikovN/platform-payment-sync/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		tracing.Module,
		metrics.Module,
		clock.Module,
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		db.Module,
		eventlog.Module,
		amocrm.Module,
		reconcile.Module,
		maintenance.Module,
		server.Module,
	)
	app.Run()
}

package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/ZhulikovN/platform-payment-sync/internal/config"
)

// Module wires the HTTP surface into the application lifecycle.
var Module = fx.Module("server",
	fx.Provide(NewEngine),
	fx.Provide(New),
	fx.Invoke(func(s *Server, engine *gin.Engine) {
		s.RegisterRoutes(engine)
	}),
	fx.Invoke(RunHTTP),
)

// RunHTTP starts the listener on fx start and drains it on stop.
func RunHTTP(lc fx.Lifecycle, cfg config.Config, engine *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("http server shutting down")
			return srv.Shutdown(ctx)
		},
	})
}

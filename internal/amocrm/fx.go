package amocrm

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/ZhulikovN/platform-payment-sync/internal/config"
)

// Module provides the CRM HTTP client.
var Module = fx.Module("amocrm",
	fx.Provide(func(cfg config.Config, log *zap.Logger) *Client {
		return New(Config{
			BaseURL:          cfg.AmoCRM.BaseURL,
			AccessToken:      cfg.AmoCRM.AccessToken,
			Timeout:          cfg.AmoCRM.Timeout,
			RetryMaxAttempts: cfg.AmoCRM.RetryMaxAttempts,
			RetryWaitMin:     cfg.AmoCRM.RetryWaitMin,
			RetryWaitMax:     cfg.AmoCRM.RetryWaitMax,
		}, log)
	}),
)

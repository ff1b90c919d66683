package reconcile

import (
	"go.uber.org/fx"

	"github.com/ZhulikovN/platform-payment-sync/internal/amocrm"
	"github.com/ZhulikovN/platform-payment-sync/internal/reconcile/domain"
	"github.com/ZhulikovN/platform-payment-sync/internal/reconcile/service"
)

// Module provides the reconciliation service backed by the CRM HTTP client.
var Module = fx.Module("reconcile.service",
	fx.Provide(func(client *amocrm.Client) domain.CRMClient { return client }),
	fx.Provide(service.NewService),
)

package eventlog

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/ZhulikovN/platform-payment-sync/internal/eventlog/domain"
	"github.com/ZhulikovN/platform-payment-sync/internal/eventlog/repository"
)

// Module provides the ledger repository and keeps its schema current.
var Module = fx.Module("eventlog",
	fx.Provide(repository.New),
	fx.Invoke(func(conn *gorm.DB) error {
		return conn.AutoMigrate(&domain.EventRecord{})
	}),
)

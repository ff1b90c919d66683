// Package db opens the ledger database and manages its lifecycle. The DSN
// picks the driver: postgres URLs go to the postgres driver, everything else
// is treated as a sqlite file path.
package db

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ZhulikovN/platform-payment-sync/internal/config"
)

// Module provides *gorm.DB and closes it on shutdown.
var Module = fx.Module("db",
	fx.Provide(Open),
)

// Open connects using the configured DSN. Driver errors are translated into
// gorm's portable error set so repositories can detect duplicate keys.
func Open(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: open: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			log.Info("closing database connection")
			return sqlDB.Close()
		},
	})

	return conn, nil
}

func dialectorFor(dsn string) (gorm.Dialector, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("db: empty DSN")
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return postgres.Open(dsn), nil
	}
	return sqlite.Open(dsn), nil
}

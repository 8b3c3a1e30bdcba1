package db

import (
	"context"
	"fmt"

	"github.com/glebarez/sqlite"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/fatflowers/gachapon/internal/models"
	cfgpkg "github.com/fatflowers/gachapon/pkg/config"
	gormzap "github.com/fatflowers/gachapon/pkg/gormlog"
)

// Open connects to the configured database. SQLite is the development stand-in
// and runs with a single connection so in-memory databases stay shared.
func Open(l *zap.SugaredLogger, driver cfgpkg.DBDriver, dsn string, verbose bool) (*gorm.DB, error) {
	if dsn == "" {
		l.Error("database DSN is empty")
		return nil, gorm.ErrInvalidDB
	}
	var dialector gorm.Dialector
	switch driver {
	case cfgpkg.DBDriverPostgres, "":
		dialector = postgres.Open(dsn)
	case cfgpkg.DBDriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormzap.New(l, verbose)})
	if err != nil {
		l.Errorf("failed to connect database: %v", err)
		return nil, err
	}
	if driver == cfgpkg.DBDriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	l.Infow("connected to database", "driver", driver)
	return db, nil
}

func NewDB(l *zap.SugaredLogger, cfg *cfgpkg.Config) (*gorm.DB, error) {
	return Open(l, cfg.Database.Driver, cfg.Database.DSN, cfg.Log.Level == "debug")
}

var Module = fx.Options(
	fx.Provide(NewDB),
	fx.Invoke(AutoMigrate),
	fx.Invoke(registerDBClose),
)

// AutoMigrate runs GORM migrations on startup
func AutoMigrate(l *zap.SugaredLogger, db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Payment{},
		&models.PaymentEventLog{},
		&models.QRCredential{},
		&models.DrawCredit{},
		&models.InventoryItem{},
	); err != nil {
		l.Errorf("automigrate failed: %v", err)
		return err
	}
	l.Infow("automigrate completed")
	return nil
}

// registerDBClose ensures the underlying *sql.DB is closed on shutdown
func registerDBClose(lc fx.Lifecycle, l *zap.SugaredLogger, gdb *gorm.DB) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sqlDB, err := gdb.DB()
			if err != nil {
				l.Warnw("gorm: get sql.DB failed", "err", err)
				return nil
			}
			l.Infow("closing database connection pool")
			return sqlDB.Close()
		},
	})
}

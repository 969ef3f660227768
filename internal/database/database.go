// Package database opens the shared connection pool used by the sqlx
// workflow repository and the gorm-backed packages.
package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"design-desk/request-portal/request-portal-backend/internal/config"
	"design-desk/request-portal/request-portal-backend/internal/identity"
	"design-desk/request-portal/request-portal-backend/internal/inbox"
	"design-desk/request-portal/request-portal-backend/internal/notifications"
	"design-desk/request-portal/request-portal-backend/internal/requests"
	"design-desk/request-portal/request-portal-backend/internal/settings"
)

// DB holds both views of one *sql.DB.
type DB struct {
	SQL  *sqlx.DB
	Gorm *gorm.DB
}

// Open connects and pings the configured database.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	sqlDB, err := sqlx.Open(cfg.Driver, cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite3":
		// One connection keeps sqlite writers from failing with SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
		dialector = &sqlite.Dialector{Conn: sqlDB.DB}
	default:
		sqlDB.SetMaxOpenConns(cfg.MaxConnections)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.MaxLifetime)
		dialector = postgres.New(postgres.Config{Conn: sqlDB.DB})
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	gormDB, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to open gorm: %w", err)
	}

	logger.Info("Database connected", zap.String("driver", cfg.Driver))
	return &DB{SQL: sqlDB, Gorm: gormDB}, nil
}

// Migrate creates every table the service uses. It is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	if err := requests.Migrate(ctx, db.SQL); err != nil {
		return fmt.Errorf("failed to migrate workflow tables: %w", err)
	}
	err := db.Gorm.WithContext(ctx).AutoMigrate(
		&identity.UserRole{},
		&identity.Contact{},
		&settings.SystemSetting{},
		&settings.NotificationPreferences{},
		&notifications.Notification{},
		&notifications.DeliveryLog{},
		&inbox.ViewMarker{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate tables: %w", err)
	}
	return nil
}

func (db *DB) Close() error {
	return db.SQL.Close()
}

package sqlstore

import (
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ternarybob/briefing/internal/common"
	"github.com/ternarybob/briefing/internal/models"
)

const activeWatchlistIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_watchlist_active_code
ON watchlist_items (user_id, code) WHERE is_active`

// Open connects to postgres or sqlite through gorm and applies pool settings
func Open(driver string, config *common.SQLConfig, log arbor.ILogger) (*gorm.DB, error) {
	if config.DSN == "" {
		return nil, fmt.Errorf("storage.sql.dsn is required for %s storage", driver)
	}

	var dialector gorm.Dialector
	switch strings.ToLower(driver) {
	case "postgres", "postgresql":
		dialector = postgres.Open(config.DSN)
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(config.DSN)
	default:
		return nil, fmt.Errorf("unsupported sql driver: %s", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	if config.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if config.AutoMigrate {
		if err := Migrate(db); err != nil {
			return nil, err
		}
	}

	log.Debug().Str("driver", driver).Msg("SQL database initialized")
	return db, nil
}

// Migrate creates or updates the tables used by the briefing stores
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Subscriber{},
		&models.Plan{},
		&models.WatchlistItem{},
		&models.DeliveryRecord{},
		&models.PublishingRunResult{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	// Partial index: removed items keep their rows and may be re-added
	if err := db.Exec(activeWatchlistIndex).Error; err != nil {
		return fmt.Errorf("failed to create watchlist index: %w", err)
	}
	return nil
}

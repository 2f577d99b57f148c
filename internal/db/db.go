package db

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"campus-guardian-backend/config"
	"campus-guardian-backend/internal/model"
)

// Init initializes the database connection and runs migrations. SQLite is
// supported for local development and tests; production runs on Postgres.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres", "":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate runs AutoMigrate for every entity. Exposed so tests can migrate
// their in-memory databases the same way.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.University{},
		&model.BoundaryVertex{},
		&model.User{},
		&model.EmergencyContact{},
		&model.GuardianSession{},
		&model.RoutePoint{},
		&model.SessionContact{},
		&model.SOSIncident{},
		&model.IncidentLocation{},
		&model.ChatMessage{},
		&model.MediaItem{},
		&model.IncidentResponder{},
		&model.IncidentObserver{},
		&model.IncidentContact{},
		&model.Notification{},
		&model.PushSubscription{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}

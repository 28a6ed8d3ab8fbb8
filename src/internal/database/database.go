package database

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/spf13/viper"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Initialize initializes the database connection
func Initialize(cfg *viper.Viper) (*gorm.DB, error) {
	var dialector gorm.Dialector

	// Configure database based on type
	dbType := cfg.GetString("database.type")
	dbDSN := cfg.GetString("database.dsn")
	switch dbType {
	case "postgres", "postgresql":
		dialector = postgres.Open(dbDSN)
	case "mysql":
		dialector = mysql.Open(dbDSN)
	case "sqlite", "":
		dialector = sqlite.Open(dbDSN)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}

	// Configure logger - use Silent for production, Info for debug
	logLevel := logger.Silent
	if cfg.GetBool("debug") {
		logLevel = logger.Info
	}

	// Open database connection
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		DisableForeignKeyConstraintWhenMigrating: true,
		PrepareStmt:                              true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Set connection pool settings
	maxConns := cfg.GetInt("database.max_connections")
	if maxConns <= 0 {
		maxConns = 25 // default
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns / 2)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.GetInt("database.max_idle_time")) * time.Second)

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// MigrateDB runs all database migrations
func MigrateDB(db *gorm.DB, dbType string) error {
	if dbType == "" {
		dbType = "sqlite"
	}

	// Run versioned migrations
	if err := RunMigrations(db, dbType); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Create performance indexes
	if err := RunCustomMigrations(db); err != nil {
		return fmt.Errorf("failed to run custom migrations: %w", err)
	}

	return nil
}

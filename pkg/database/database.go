package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"invoice-service/pkg/config"
	applog "invoice-service/pkg/logger"
)

// DB is the database instance opened by InitDB
var DB *gorm.DB

// dialector picks the gorm driver for the configured backend.
func dialector(dbConfig *config.DBConfig) (gorm.Dialector, error) {
	switch dbConfig.Driver {
	case "postgres":
		return postgres.New(postgres.Config{
			DSN:                  dbConfig.GetDSN(),
			PreferSimpleProtocol: true, // Disables implicit prepared statement usage
		}), nil
	case "sqlite":
		return sqlite.Open(dbConfig.GetDSN()), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", dbConfig.Driver)
	}
}

// InitDB initializes the database connection with configuration
func InitDB(dbConfig *config.DBConfig) (*gorm.DB, error) {
	log := applog.GetLogger()

	d, err := dialector(dbConfig)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(d, &gorm.Config{
		Logger:         logger.Default.LogMode(dbConfig.LogLevel),
		TranslateError: true,
	})
	if err != nil {
		log.Error("Failed to connect to database", zap.Error(err))
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Error("Failed to get database object", zap.Error(err))
		return nil, err
	}

	sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConns)
	sqlDB.SetMaxOpenConns(dbConfig.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(dbConfig.ConnMaxLifetime)

	if dbConfig.Driver == "sqlite" {
		// sqlite allows a single writer; one connection keeps the sequence increments serialized
		sqlDB.SetMaxOpenConns(1)
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
		}
	}

	log.Info("Database connected successfully", zap.String("driver", dbConfig.Driver))

	DB = db
	return db, nil
}

// MigrateModels runs migrations for the provided models
func MigrateModels(db *gorm.DB, models ...interface{}) error {
	if db == nil {
		return fmt.Errorf("database is not initialized")
	}

	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

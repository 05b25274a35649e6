package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"agrimarket/config"
)

var DB *gorm.DB

// ErrNotInitialized is returned by Ping before InitDB succeeded
var ErrNotInitialized = errors.New("database not initialized")

func gormConfig() *gorm.Config {
	level := logger.Warn
	if config.IsDevelopment() {
		level = logger.Info
	}
	return &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
		// relations are kept for preloading; referential cleanup happens in the handlers
		DisableForeignKeyConstraintWhenMigrating: true,
	}
}

// InitDB initializes the database connection using environment/config
func InitDB() error {
	var err error

	switch config.AppConfig.DBDriver {
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			config.AppConfig.DBHost,
			config.AppConfig.DBPort,
			config.AppConfig.DBUser,
			config.AppConfig.DBPassword,
			config.AppConfig.DBName,
			config.AppConfig.DBSSLMode,
		)

		if config.AppConfig.DatabaseURL != "" {
			dsn = config.AppConfig.DatabaseURL
			log.Println("🔌 Connecting to PostgreSQL using DATABASE_URL...")
		} else {
			log.Printf("🔌 Connecting to PostgreSQL at host=%s port=%s db=%s...",
				config.AppConfig.DBHost,
				config.AppConfig.DBPort,
				config.AppConfig.DBName,
			)
		}

		// lib/pq is the database/sql driver behind gorm's postgres dialect
		DB, err = gorm.Open(postgres.New(postgres.Config{
			DriverName: "postgres",
			DSN:        dsn,
		}), gormConfig())
		if err != nil {
			log.Printf("❌ Failed to connect to DB: %v", err)
			return err
		}
		log.Println("✅ PostgreSQL connection successful.")

	case "sqlite", "sqlite3":
		if err := os.MkdirAll(filepath.Dir(config.AppConfig.DBPath), os.ModePerm); err != nil {
			log.Printf("❌ Failed to create SQLite folder: %v", err)
			return err
		}
		DB, err = OpenSQLite(config.AppConfig.DBPath)
		if err != nil {
			log.Printf("❌ Failed to connect to SQLite: %v", err)
			return err
		}
		log.Printf("✅ SQLite connection successful at %s", config.AppConfig.DBPath)

	default:
		log.Println("❌ Unsupported DB driver:", config.AppConfig.DBDriver)
		return fmt.Errorf("unsupported DB driver: %s", config.AppConfig.DBDriver)
	}

	return nil
}

// OpenSQLite opens a SQLite database with the application's gorm settings.
// Tests pass an in-memory DSN.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(dsn), gormConfig())
}

// Ping checks that the store is reachable
func Ping(ctx context.Context) error {
	if DB == nil {
		return ErrNotInitialized
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// CloseDB closes the database connection
func CloseDB() error {
	if DB != nil {
		sqlDB, err := DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}

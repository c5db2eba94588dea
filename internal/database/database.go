package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"supamon-backend/internal/config"
)

// DB is the global database instance
var DB *gorm.DB

// InitDatabase opens the SQL database selected by STORE_DRIVER and stores it in DB.
func InitDatabase(cfg *config.Config) error {
	db, err := Open(cfg.StoreDriver, dsnFor(cfg))
	if err != nil {
		return err
	}
	DB = db
	logrus.Infof("Database connected (%s)", cfg.StoreDriver)
	return nil
}

// Open connects to sqlite (dsn is a file path or ":memory:") or postgres.
func Open(driver, dsn string) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	var dialector gorm.Dialector
	switch strings.ToLower(driver) {
	case "sqlite", "":
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if dir := filepath.Dir(dsn); dir != "." {
				if err := os.MkdirAll(dir, 0o700); err != nil {
					return nil, fmt.Errorf("create sqlite directory: %w", err)
				}
			}
		}
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if dsn == ":memory:" {
		// each sqlite connection would otherwise get its own empty database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

func dsnFor(cfg *config.Config) string {
	if cfg.StoreDriver != "postgres" {
		return cfg.StorePath
	}
	if cfg.DatabaseURL != "" {
		return cfg.DatabaseURL
	}

	host := config.GetEnv("DB_HOST", "localhost")
	port := config.GetEnv("DB_PORT", "5432")
	user := config.GetEnv("DB_USER", "supamon")
	password := config.GetEnv("DB_PASSWORD", "")
	dbname := config.GetEnv("DB_NAME", "supamon")

	sslMode := config.GetEnv("DB_SSLMODE", "require")
	if os.Getenv("DB_SSLMODE") == "" && cfg.IsDevelopment() {
		sslMode = "disable"
		logrus.Warn("Database SSL disabled for development environment")
	}

	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		host, user, password, dbname, port, sslMode)
}

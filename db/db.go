package db

import (
	"errors"
	"strings"
	"time"

	"photoserver/config"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open picks the driver from the configuration: DATABASE_URL first, then
// MYSQL_DSN, falling back to SQLITE_FILE.
func Open(cfg *config.Config) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}
	gormConfig := &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
	}
	if cfg.DatabaseEcho {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	} else {
		gormConfig.Logger = logger.Default.LogMode(logger.Warn)
	}
	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// Managed Postgres (Neon) closes idle connections aggressively
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

func dialectorFor(cfg *config.Config) (gorm.Dialector, error) {
	url := strings.TrimSpace(cfg.DatabaseURL)
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return postgres.Open(url), nil
	case strings.HasPrefix(url, "mysql://"):
		dsn, err := NormalizeMySQLDSN(strings.TrimPrefix(url, "mysql://"))
		if err != nil {
			return nil, err
		}
		return mysql.Open(dsn), nil
	case strings.HasPrefix(url, "sqlite:///"):
		return sqlite.Open(strings.TrimPrefix(url, "sqlite:///")), nil
	case url != "":
		return nil, errors.New("unsupported DATABASE_URL scheme")
	}
	if cfg.MySQLDSN != "" {
		dsn, err := NormalizeMySQLDSN(cfg.MySQLDSN)
		if err != nil {
			return nil, err
		}
		return mysql.Open(dsn), nil
	}
	return sqlite.Open(cfg.SQLiteFile), nil
}

// NormalizeMySQLDSN makes sure time columns are parsed and utf8mb4 is used
func NormalizeMySQLDSN(dsn string) (string, error) {
	c, err := mysqldriver.ParseDSN(dsn)
	if err != nil {
		return "", err
	}
	c.ParseTime = true
	if c.Params == nil {
		c.Params = map[string]string{}
	}
	if _, ok := c.Params["charset"]; !ok {
		c.Params["charset"] = "utf8mb4"
	}
	return c.FormatDSN(), nil
}

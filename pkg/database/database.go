// backend/pkg/database/database.go
package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type Config struct {
	URL      string
	Type     string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	Path     string
}

// DSN returns the connection string for the configured backend.
func (c *Config) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	if c.isSQLite() {
		path := c.Path
		if path == "" {
			path = filepath.Join("data", "analytics.db")
		}
		return "file:" + filepath.ToSlash(path) + "?_foreign_keys=on"
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.Host,
		c.User,
		c.Password,
		c.DBName,
		c.Port,
		sslMode,
	)
}

func (c *Config) isSQLite() bool {
	t := strings.ToLower(c.Type)
	return t == "sqlite" || t == "sqlite3"
}

// NewDB opens the database described by config.
func NewDB(config *Config) (*gorm.DB, error) {
	if config.URL == "" && config.isSQLite() {
		if dir := filepath.Dir(config.Path); dir != "" && dir != "." {
			_ = os.MkdirAll(dir, 0o755)
		}
	}
	return Open(config.DSN())
}

// Open picks the driver from the DSN: postgres URLs and key/value strings go to
// postgres, everything else (file:..., :memory:, sqlite:///...) to sqlite.
func Open(dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	}
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"), strings.Contains(dsn, "host="):
		return gorm.Open(postgres.Open(dsn), cfg)
	case strings.HasPrefix(dsn, "sqlite:///"):
		dsn = "file:" + strings.TrimPrefix(dsn, "sqlite:///")
	}
	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		return nil, err
	}
	// sqlite serialises writers anyway; a single connection also keeps :memory: databases shared.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

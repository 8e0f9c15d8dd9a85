package db

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const defaultSQLiteFile = "givebox.db"

func Dialect(cfg Config) (gorm.Dialector, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "postgres", "":
		if strings.TrimSpace(cfg.URL) == "" {
			return nil, fmt.Errorf("postgres requires a database url")
		}
		return postgres.Open(cfg.URL), nil
	case "sqlite":
		dsn := strings.TrimPrefix(strings.TrimSpace(cfg.URL), "sqlite://")
		if dsn == "" {
			dsn = defaultSQLiteFile
		}
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported %s type", cfg.Type)
	}
}

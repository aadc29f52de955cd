package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"recipe-synthesizer/internal/core/preference"
	"recipe-synthesizer/internal/infrastructure/config"
	"recipe-synthesizer/internal/pkg/common"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// Open 依設定開啟偏好資料庫並建立資料表
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(cfg.Driver) {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		if err := ensureDir(cfg.DSN); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: newLogger(cfg.LogLevel)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if strings.EqualFold(cfg.Driver, "sqlite") {
		// SQLite 單一寫入者
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := preference.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	common.LogInfo("資料庫連線完成", zap.String("driver", cfg.Driver))
	return db, nil
}

// NewPreferenceRepository 有資料庫時使用 gorm，否則退回記憶體實作
func NewPreferenceRepository(db *gorm.DB) preference.Repository {
	if db == nil {
		return preference.NewMemoryRepository()
	}
	return preference.NewGormRepository(db)
}

// Close 關閉資料庫連線
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ensureDir 檔案型 SQLite 路徑需要先建立目錄
func ensureDir(dsn string) error {
	if strings.HasPrefix(dsn, "file:") || strings.HasPrefix(dsn, ":memory:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	return nil
}

func newLogger(level string) gormLogger.Interface {
	return gormLogger.New(zap.NewStdLog(common.Logger), gormLogger.Config{
		SlowThreshold:             slowQueryThreshold,
		LogLevel:                  parseLogLevel(level),
		IgnoreRecordNotFoundError: true,
	})
}

func parseLogLevel(level string) gormLogger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "silent":
		return gormLogger.Silent
	case "error":
		return gormLogger.Error
	case "info":
		return gormLogger.Info
	default:
		return gormLogger.Warn
	}
}

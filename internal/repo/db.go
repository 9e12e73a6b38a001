// Package repo implements the settings store for the bot, backed by GORM.
// This file contains database bootstrapping helpers for SQLite (pure Go
// driver), optional OpenTelemetry instrumentation, and schema migrations.
package repo

import (
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/veigamann/whisper-zap/internal/domain"
)

// Options tunes OpenSQLite.
type Options struct {
	// Tracing installs the GORM OpenTelemetry plugin so every query becomes a span.
	Tracing bool
	// Silent disables the GORM statement logger.
	Silent bool
}

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string, opts ...Options) (*gorm.DB, error) {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}

	// The driver reports a missing directory as "out of memory (14)".
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	cfg := &gorm.Config{}
	if o.Silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, err
	}

	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	if o.Tracing {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return nil, err
		}
	}

	return db, nil
}

// AutoMigrate creates or updates every table the bot owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.WhitelistEntry{},
		&domain.ChatSetting{},
		&domain.GlobalSetting{},
		&domain.ProcessedEvent{},
	)
}

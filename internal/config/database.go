package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ScanRecord is one persisted verification verdict. Every explicit scan and
// every monitor escalation appends a row.
type ScanRecord struct {
	ID           uint      `gorm:"primaryKey"`
	ScanID       string    `gorm:"column:scan_id;uniqueIndex;size:64"`
	Kind         string    `gorm:"column:kind;size:16;index"`
	Target       string    `gorm:"column:target;size:255;index"`
	RiskLevel    string    `gorm:"column:risk_level;size:32"`
	EvidenceTier string    `gorm:"column:evidence_tier;size:40"`
	Status       string    `gorm:"column:status;size:16"`
	Report       string    `gorm:"column:report"` // full report JSON
	CreatedAt    time.Time `gorm:"column:created_at;index"`
}

// MonitorRunRecord is one monitor-run summary row.
type MonitorRunRecord struct {
	ID         uint      `gorm:"primaryKey"`
	RunID      string    `gorm:"column:run_id;uniqueIndex;size:64"`
	StartedAt  time.Time `gorm:"column:started_at;index"`
	DurationMS int64     `gorm:"column:duration_ms"`
	Targets    int       `gorm:"column:targets"`
	Changed    int       `gorm:"column:changed"`
	Escalated  int       `gorm:"column:escalated"`
	Queued     int       `gorm:"column:queued"`
	Errors     int       `gorm:"column:errors"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

type Database struct {
	DB *gorm.DB
}

// InitDatabase opens the scan-history store. SQLite is the default; postgres
// is selected via database.driver + dsn.
func InitDatabase(cfg *AppConfig) (*Database, error) {
	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}

	var db *gorm.DB
	var err error
	switch cfg.Database.Driver {
	case "", "sqlite":
		path := cfg.Database.Path
		if path == "" {
			path = filepath.Join("data", "moveguard.db")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		db, err = gorm.Open(sqlite.Open(path), gormCfg)
	case "postgres":
		if cfg.Database.DSN == "" {
			return nil, fmt.Errorf("database.dsn is required for the postgres driver")
		}
		db, err = gorm.Open(postgres.Open(cfg.Database.DSN), gormCfg)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open scan-history database: %w", err)
	}

	if err := db.AutoMigrate(&ScanRecord{}, &MonitorRunRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate scan-history schema: %w", err)
	}
	return &Database{DB: db}, nil
}

func (d *Database) SaveScan(rec *ScanRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if err := d.DB.Create(rec).Error; err != nil {
		return fmt.Errorf("failed to save scan record: %w", err)
	}
	return nil
}

func (d *Database) SaveMonitorRun(rec *MonitorRunRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if err := d.DB.Create(rec).Error; err != nil {
		return fmt.Errorf("failed to save monitor run record: %w", err)
	}
	return nil
}

func (d *Database) RecentScans(limit int) ([]ScanRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []ScanRecord
	err := d.DB.Order("created_at DESC").Limit(limit).Find(&out).Error
	return out, err
}

func (d *Database) RecentRuns(limit int) ([]MonitorRunRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []MonitorRunRecord
	err := d.DB.Order("started_at DESC").Limit(limit).Find(&out).Error
	return out, err
}

func (d *Database) Close() {
	if d == nil || d.DB == nil {
		return
	}
	if sqlDB, err := d.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver) and the additive schema migration run on every start.
package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-taskbuddy/internal/domain"
)

// OpenOptions tunes OpenSQLite.
type OpenOptions struct {
	// Tracing installs the OpenTelemetry GORM plugin so every query emits a span.
	Tracing bool
	// Quiet silences GORM's own statement logger.
	Quiet bool
}

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string, opts OpenOptions) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	cfg := &gorm.Config{}
	if opts.Quiet {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(withConnPragmas(path)), cfg)
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	if opts.Tracing {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return nil, fmt.Errorf("gorm tracing plugin: %w", err)
		}
	}

	return db, nil
}

// withConnPragmas appends per-connection PRAGMAs to the DSN so that every
// pooled connection enforces foreign keys and waits on locks, not only the
// first one.
func withConnPragmas(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// migrationRecord marks a named one-shot data migration as applied.
type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string { return "db_migrations" }

// schemaTarget lists a model together with the struct fields whose indexes
// must exist once the model's table is present.
type schemaTarget struct {
	model       any
	indexFields []string
}

func schemaTargets() []schemaTarget {
	return []schemaTarget{
		{model: &domain.User{}, indexFields: []string{"TelegramID", "InviteCode", "PartnerID", "LastActiveAt"}},
		{model: &domain.Task{}, indexFields: []string{"AssignedByID", "AssignedToID", "CreatedAt"}},
		{model: &domain.AppStats{}},
		{model: &domain.ProcessedUpdate{}, indexFields: []string{"ExpiresAt"}},
		{model: &migrationRecord{}},
	}
}

// AutoMigrate brings the schema up to date. It is idempotent and safe to run
// on every process start:
//   - missing tables are created with their indexes and foreign keys;
//   - existing tables only gain missing columns (with their defaults) and
//     missing indexes; nothing is dropped, renamed or rebuilt;
//   - named data migrations run once and are recorded in db_migrations.
func AutoMigrate(db *gorm.DB) error {
	m := db.Migrator()
	for _, target := range schemaTargets() {
		if !m.HasTable(target.model) {
			if err := m.CreateTable(target.model); err != nil {
				return fmt.Errorf("create table for %T: %w", target.model, err)
			}
			continue
		}
		if err := addMissingColumns(db, target.model); err != nil {
			return err
		}
		for _, field := range target.indexFields {
			if m.HasIndex(target.model, field) {
				continue
			}
			if err := m.CreateIndex(target.model, field); err != nil {
				return fmt.Errorf("create index %T.%s: %w", target.model, field, err)
			}
		}
	}
	return applyMigrations(db)
}

// addMissingColumns compares the model's schema with the live table and adds
// every absent column using the model's declared type and default.
func addMissingColumns(db *gorm.DB, model any) error {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil {
		return err
	}
	m := db.Migrator()
	for _, field := range stmt.Schema.Fields {
		if field.DBName == "" || field.IgnoreMigration || field.PrimaryKey {
			continue
		}
		if m.HasColumn(model, field.DBName) {
			continue
		}
		if err := m.AddColumn(model, field.Name); err != nil {
			return fmt.Errorf("add column %s.%s: %w", stmt.Schema.Table, field.DBName, err)
		}
		log.Info().Str("table", stmt.Schema.Table).Str("column", field.DBName).Msg("schema column added")
	}
	return nil
}

type dataMigration struct {
	name  string
	apply func(*gorm.DB) error
}

// dataMigrations normalises rows written before the current schema existed.
var dataMigrations = []dataMigration{
	{name: "2025-01-10_normalize_legacy_nulls", apply: normalizeLegacyNulls},
	{name: "2025-01-10_backfill_joined_at", apply: backfillJoinedAt},
}

func applyMigrations(db *gorm.DB) error {
	for _, mig := range dataMigrations {
		var record migrationRecord
		err := db.Where("name = ?", mig.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := db.Transaction(func(tx *gorm.DB) error {
			if err := mig.apply(tx); err != nil {
				return err
			}
			return tx.Create(&migrationRecord{Name: mig.name, AppliedAtSeconds: time.Now().UTC().Unix()}).Error
		}); err != nil {
			return fmt.Errorf("migration %s: %w", mig.name, err)
		}
		log.Info().Str("migration", mig.name).Msg("database migration applied")
	}
	return nil
}

func normalizeLegacyNulls(tx *gorm.DB) error {
	stmts := []string{
		"UPDATE users SET username = '' WHERE username IS NULL",
		"UPDATE users SET full_name = '' WHERE full_name IS NULL",
		"UPDATE users SET tasks_created_count = 0 WHERE tasks_created_count IS NULL",
		"UPDATE users SET tasks_completed_count = 0 WHERE tasks_completed_count IS NULL",
		"UPDATE users SET tasks_received_count = 0 WHERE tasks_received_count IS NULL",
		"UPDATE users SET tasks_deleted_count = 0 WHERE tasks_deleted_count IS NULL",
		"UPDATE tasks SET description = '' WHERE description IS NULL",
		"UPDATE tasks SET completed = 0 WHERE completed IS NULL",
	}
	for _, s := range stmts {
		if err := tx.Exec(s).Error; err != nil {
			return err
		}
	}
	return nil
}

func backfillJoinedAt(tx *gorm.DB) error {
	return tx.Model(&domain.User{}).
		Where("joined_at IS NULL").
		Update("joined_at", time.Now().UTC()).Error
}

package database

import (
	"database/sql"
	"embed"
	"fmt"
	"net/url"
	"osrs-tracker/internal/config"
	"osrs-tracker/internal/constants"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// goose keeps its base FS and dialect in package state.
var migrateMu sync.Mutex

// Connection-scoped settings go in the DSN so every pooled connection gets them.
// _txlock=immediate makes write transactions take the write lock on BEGIN.
var connParams = map[string]string{
	"_busy_timeout": "5000",
	"_foreign_keys": "on",
	"_txlock":       "immediate",
}

// Database-wide settings, applied once after opening.
var tuning = [][2]string{
	{"journal_mode", "WAL"},
	{"synchronous", "NORMAL"},
	{"cache_size", "-64000"},
	{"temp_store", "MEMORY"},
	{"mmap_size", "268435456"}, // https://sqlite.org/mmap.html
}

func New(cfg *config.Config, logger zerolog.Logger) (*sql.DB, error) {
	return Open(cfg.DBPath, logger)
}

// Open connects to the sqlite database at path and migrates it to the latest version.
func Open(path string, logger zerolog.Logger) (*sql.DB, error) {
	logger = logger.With().Str("path", path).Logger()

	sqlDB, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(constants.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(constants.DBMaxIdleConns)
	sqlDB.SetConnMaxLifetime(constants.DBConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(constants.DBMaxIdleTime)

	if err := tune(sqlDB, logger); err != nil {
		sqlDB.Close()
		return nil, err
	}

	version, err := migrate(sqlDB)
	if err != nil {
		sqlDB.Close()
		logger.Error().Err(err).Msg("failed to migrate database")
		return nil, err
	}

	logger.Info().Int64("schema_version", version).Msg("database ready")
	return sqlDB, nil
}

func dsn(path string) string {
	params := url.Values{}
	for key, value := range connParams {
		params.Set(key, value)
	}
	return fmt.Sprintf("file:%s?%s", path, params.Encode())
}

// migrate applies pending migrations and returns the resulting schema version.
func migrate(sqlDB *sql.DB) (int64, error) {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return 0, fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(sqlDB, "migrations"); err != nil {
		return 0, fmt.Errorf("failed to run migrations: %w", err)
	}

	version, err := goose.GetDBVersion(sqlDB)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

func tune(sqlDB *sql.DB, logger zerolog.Logger) error {
	for _, pragma := range tuning {
		name, value := pragma[0], pragma[1]
		if _, err := sqlDB.Exec(fmt.Sprintf("PRAGMA %s = %s", name, value)); err != nil {
			logger.Warn().Err(err).Str("pragma", name).Msg("failed to set pragma")
			return fmt.Errorf("failed to set PRAGMA %s: %w", name, err)
		}
	}
	logger.Debug().Int("pragmas", len(tuning)).Msg("sqlite tuned")
	return nil
}

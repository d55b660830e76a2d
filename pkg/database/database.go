package database

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/ds124wfegd/crossedpaths/config"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// NewDB opens the record store selected by cfg.Driver and checks the connection.
func NewDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case DriverPostgres:
		return NewPostgresDB(cfg)
	case DriverSQLite:
		return NewSQLiteDB(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func NewPostgresDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sql.Open(DriverPostgres, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.Info("Successfully connected to PostgreSQL")
	return db, nil
}

// NewSQLiteDB opens a SQLite file. Transactions begin IMMEDIATE so writers
// serialize on BEGIN instead of failing on lock upgrade, and the pool is held
// to a single connection.
func NewSQLiteDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL&_txlock=immediate", path)

	db, err := sql.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.WithField("path", path).Info("Successfully opened SQLite store")
	return db, nil
}

// column types that differ between dialects
var dialects = map[string]*strings.Replacer{
	DriverPostgres: strings.NewReplacer(
		"{{pk}}", "BIGSERIAL PRIMARY KEY",
		"{{ts}}", "TIMESTAMPTZ",
		"{{float}}", "DOUBLE PRECISION",
	),
	DriverSQLite: strings.NewReplacer(
		"{{pk}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
		"{{ts}}", "TIMESTAMP",
		"{{float}}", "REAL",
	),
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id {{pk}},
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255) UNIQUE NOT NULL,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS venues (
		id {{pk}},
		name VARCHAR(255) NOT NULL,
		latitude {{float}} NOT NULL DEFAULT 0,
		longitude {{float}} NOT NULL DEFAULT 0,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS events (
		id {{pk}},
		creator_id BIGINT NOT NULL REFERENCES users(id),
		venue_id BIGINT REFERENCES venues(id),
		title VARCHAR(255) NOT NULL,
		capacity INTEGER NOT NULL CHECK (capacity > 0),
		confirmed_count INTEGER NOT NULL DEFAULT 0 CHECK (confirmed_count >= 0 AND confirmed_count <= capacity),
		rsvp_deadline {{ts}} NOT NULL,
		starts_at {{ts}} NOT NULL,
		fee_cents BIGINT CHECK (fee_cents IS NULL OR fee_cents >= 0),
		status VARCHAR(20) NOT NULL DEFAULT 'active',
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS rsvps (
		id {{pk}},
		event_id BIGINT NOT NULL REFERENCES events(id),
		user_id BIGINT NOT NULL REFERENCES users(id),
		status VARCHAR(20) NOT NULL,
		free BOOLEAN NOT NULL DEFAULT FALSE,
		created_at {{ts}} NOT NULL,
		confirmed_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL,
		UNIQUE (event_id, user_id)
	)`,

	`CREATE TABLE IF NOT EXISTS visits (
		id {{pk}},
		user_id BIGINT NOT NULL REFERENCES users(id),
		venue_id BIGINT NOT NULL REFERENCES venues(id),
		event_id BIGINT REFERENCES events(id),
		visited_at {{ts}} NOT NULL,
		reconciled_at {{ts}}
	)`,

	`CREATE TABLE IF NOT EXISTS crossed_path_logs (
		user_lo BIGINT NOT NULL REFERENCES users(id),
		user_hi BIGINT NOT NULL REFERENCES users(id),
		venue_id BIGINT NOT NULL REFERENCES venues(id),
		cross_count INTEGER NOT NULL CHECK (cross_count >= 1),
		first_seen {{ts}} NOT NULL,
		last_seen {{ts}} NOT NULL,
		PRIMARY KEY (user_lo, user_hi, venue_id),
		CHECK (user_lo < user_hi)
	)`,

	`CREATE TABLE IF NOT EXISTS crossed_path_matches (
		user_lo BIGINT NOT NULL REFERENCES users(id),
		user_hi BIGINT NOT NULL REFERENCES users(id),
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		matched_at {{ts}} NOT NULL,
		venue_count INTEGER NOT NULL DEFAULT 1,
		last_venue_id BIGINT NOT NULL REFERENCES venues(id),
		last_crossed_at {{ts}} NOT NULL,
		PRIMARY KEY (user_lo, user_hi),
		CHECK (user_lo < user_hi)
	)`,

	`CREATE TABLE IF NOT EXISTS payments (
		id {{pk}},
		event_id BIGINT NOT NULL REFERENCES events(id),
		user_id BIGINT NOT NULL REFERENCES users(id),
		reference VARCHAR(255) NOT NULL DEFAULT '',
		amount_cents BIGINT NOT NULL DEFAULT 0,
		status VARCHAR(20) NOT NULL,
		updated_at {{ts}} NOT NULL,
		UNIQUE (event_id, user_id)
	)`,

	`CREATE TABLE IF NOT EXISTS subscriptions (
		user_id BIGINT PRIMARY KEY REFERENCES users(id),
		tier VARCHAR(20) NOT NULL,
		active_until {{ts}},
		updated_at {{ts}} NOT NULL
	)`,

	// Indexes
	`CREATE INDEX IF NOT EXISTS idx_rsvps_event_status ON rsvps(event_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_rsvps_user_confirmed ON rsvps(user_id, status, confirmed_at)`,
	`CREATE INDEX IF NOT EXISTS idx_visits_venue_user ON visits(venue_id, user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_visits_unreconciled ON visits(reconciled_at, visited_at)`,
	`CREATE INDEX IF NOT EXISTS idx_matches_hi ON crossed_path_matches(user_hi)`,
	`CREATE INDEX IF NOT EXISTS idx_events_status_starts ON events(status, starts_at)`,
}

// RunMigrations creates the schema if it does not exist. Safe to run repeatedly.
func RunMigrations(db *sql.DB, driver string) error {
	dialect, ok := dialects[driver]
	if !ok {
		return fmt.Errorf("unsupported database driver %q", driver)
	}

	for _, migration := range migrations {
		if _, err := db.Exec(dialect.Replace(migration)); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	logrus.WithField("driver", driver).Info("Database migrations completed successfully")
	return nil
}

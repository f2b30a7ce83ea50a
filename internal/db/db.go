// Package db opens the settings database and applies its migrations.
// DATABASE_URL selects the backend: postgres:// and postgresql:// URLs use
// pgx, anything else is treated as a SQLite path or DSN.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/mailhook/internal/db/migrations"
)

type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// DB is a *sql.DB that knows its dialect.
type DB struct {
	*sql.DB
	Dialect Dialect
}

func DialectFor(url string) Dialect {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return Postgres
	}
	return SQLite
}

// Open connects to url and verifies the connection. It does not migrate.
func Open(ctx context.Context, url string) (*DB, error) {
	if url == "" {
		return nil, errors.New("db: empty database url")
	}

	dialect := DialectFor(url)
	driver := "sqlite"
	if dialect == Postgres {
		driver = "pgx"
	}

	sqlDB, err := sql.Open(driver, url)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}

	if dialect == SQLite {
		// One writer at a time, prevents SQLITE_BUSY under concurrent requests
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	return &DB{DB: sqlDB, Dialect: dialect}, nil
}

// Ping satisfies the health handler.
func (d *DB) Ping(ctx context.Context) error {
	return d.PingContext(ctx)
}

func (d *DB) migrator() (*migrate.Migrate, error) {
	sourceDriver, err := iofs.New(migrations.FS, string(d.Dialect))
	if err != nil {
		return nil, err
	}

	switch d.Dialect {
	case Postgres:
		dbDriver, err := migratepgx.WithInstance(d.DB, &migratepgx.Config{})
		if err != nil {
			return nil, err
		}
		return migrate.NewWithInstance("iofs", sourceDriver, "pgx5", dbDriver)
	default:
		dbDriver, err := sqlite.WithInstance(d.DB, &sqlite.Config{})
		if err != nil {
			return nil, err
		}
		return migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	}
}

// Migrate applies all pending up migrations.
func (d *DB) Migrate() error {
	m, err := d.migrator()
	if err != nil {
		return fmt.Errorf("prepare migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// MigrateDown reverts every migration.
func (d *DB) MigrateDown() error {
	m, err := d.migrator()
	if err != nil {
		return fmt.Errorf("prepare migrations: %w", err)
	}
	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

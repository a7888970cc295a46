// Package database keeps the ledger of finished maze runs in SQLite or
// PostgreSQL. Only run summaries are stored; mazes themselves are not.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Database wraps a connection pool and the dialect it speaks.
type Database struct {
	db      *sql.DB
	dialect Dialect
	qb      *QueryBuilder
}

// Open opens or creates the SQLite ledger at path.
func Open(path string) (*Database, error) {
	return OpenWithConfig(DefaultConfig(path))
}

// OpenWithConfig opens the backend named by cfg.Driver and migrates it.
func OpenWithConfig(cfg Config) (*Database, error) {
	dialect := NewDialect(DialectType(cfg.Driver))

	var (
		db  *sql.DB
		err error
	)
	switch dialect.(type) {
	case *PostgresDialect:
		db, err = openPostgres(dialect, cfg.Postgres)
	default:
		db, err = openSQLite(dialect, cfg.SQLitePath)
	}
	if err != nil {
		return nil, err
	}

	for _, stmt := range dialect.InitStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run %q: %w", stmt, err)
		}
	}

	d := &Database{db: db, dialect: dialect, qb: NewQueryBuilder(dialect)}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return d, nil
}

func openSQLite(dialect Dialect, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sql.Open(dialect.DriverName(), path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func openPostgres(dialect Dialect, cfg PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open(dialect.DriverName(), cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres at %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return db, nil
}

// Close closes the pool.
func (d *Database) Close() error {
	return d.db.Close()
}

// DB returns the underlying pool.
func (d *Database) DB() *sql.DB {
	return d.db
}

// Dialect returns the active dialect.
func (d *Database) Dialect() Dialect {
	return d.dialect
}

func (d *Database) migrate() error {
	migrations := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			size INTEGER NOT NULL,
			seed BIGINT NOT NULL,
			carves INTEGER NOT NULL DEFAULT 0,
			backtracks INTEGER NOT NULL DEFAULT 0,
			searched %[1]s NOT NULL DEFAULT %[3]s,
			found %[1]s NOT NULL DEFAULT %[3]s,
			visited INTEGER NOT NULL DEFAULT 0,
			path_length INTEGER NOT NULL DEFAULT 0,
			ignore_walls %[1]s NOT NULL DEFAULT %[3]s,
			started_at %[2]s NOT NULL,
			finished_at %[2]s
		)`, d.dialect.BoolType(), d.dialect.TimestampType(), d.falseLiteral()),

		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_size_seed ON runs(size, seed)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

func (d *Database) falseLiteral() string {
	if d.dialect.BoolType() == "BOOLEAN" {
		return "FALSE"
	}
	return "0"
}

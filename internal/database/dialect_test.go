package database

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
)

func TestNewDialect(t *testing.T) {
	tests := []struct {
		name  string
		input DialectType
		want  string
	}{
		{"sqlite", DialectSQLite, "sqlite"},
		{"postgres", DialectPostgres, "postgres"},
		{"unknown defaults to sqlite", "oracle", "sqlite"},
		{"empty defaults to sqlite", "", "sqlite"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewDialect(tt.input).DriverName(); got != tt.want {
				t.Errorf("NewDialect(%q).DriverName() = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPlaceholders(t *testing.T) {
	sqlite, pg := &SQLiteDialect{}, &PostgresDialect{}
	for _, pos := range []int{1, 2, 10} {
		if got := sqlite.Placeholder(pos); got != "?" {
			t.Errorf("SQLite Placeholder(%d) = %q, want ?", pos, got)
		}
	}
	if got := pg.Placeholder(12); got != "$12" {
		t.Errorf("Postgres Placeholder(12) = %q, want $12", got)
	}
}

func TestColumnTypes(t *testing.T) {
	if got := (&SQLiteDialect{}).BoolType(); got != "INTEGER" {
		t.Errorf("SQLite BoolType() = %q", got)
	}
	if got := (&PostgresDialect{}).BoolType(); got != "BOOLEAN" {
		t.Errorf("Postgres BoolType() = %q", got)
	}
	if got := (&SQLiteDialect{}).TimestampType(); got != "TIMESTAMP" {
		t.Errorf("SQLite TimestampType() = %q", got)
	}
	if got := (&PostgresDialect{}).TimestampType(); got != "TIMESTAMPTZ" {
		t.Errorf("Postgres TimestampType() = %q", got)
	}
}

func TestSQLiteDialect_InitStatements(t *testing.T) {
	stmts := (&SQLiteDialect{}).InitStatements()
	expected := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	if len(stmts) != len(expected) {
		t.Fatalf("InitStatements() returned %d statements, want %d", len(stmts), len(expected))
	}
	for i, want := range expected {
		if stmts[i] != want {
			t.Errorf("InitStatements()[%d] = %q, want %q", i, stmts[i], want)
		}
	}
	if got := (&PostgresDialect{}).InitStatements(); len(got) != 0 {
		t.Errorf("Postgres InitStatements() = %v, want none", got)
	}
}

func TestIsDuplicateKeyError(t *testing.T) {
	sqlite, pg := &SQLiteDialect{}, &PostgresDialect{}
	tests := []struct {
		name    string
		dialect Dialect
		err     error
		want    bool
	}{
		{"sqlite nil", sqlite, nil, false},
		{"sqlite unrelated", sqlite, errors.New("disk I/O error"), false},
		{"sqlite unique", sqlite, errors.New("UNIQUE constraint failed: runs.id"), true},
		{"sqlite primary key", sqlite, errors.New("constraint failed: PRIMARY KEY constraint failed (1555)"), true},
		{"postgres nil", pg, nil, false},
		{"postgres plain text", pg, errors.New("duplicate key value"), false},
		{"postgres unique_violation", pg, &pq.Error{Code: "23505"}, true},
		{"postgres wrapped", pg, errors.Join(errors.New("insert"), &pq.Error{Code: "23505"}), true},
		{"postgres other code", pg, &pq.Error{Code: "23503"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.dialect.IsDuplicateKeyError(tt.err); got != tt.want {
				t.Errorf("IsDuplicateKeyError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestQueryBuilder_Build(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		input   string
		want    string
	}{
		{"sqlite unchanged", &SQLiteDialect{}, "SELECT * FROM runs WHERE id = ? AND size = ?", "SELECT * FROM runs WHERE id = ? AND size = ?"},
		{"postgres numbered", &PostgresDialect{}, "SELECT * FROM runs WHERE id = ? AND size = ?", "SELECT * FROM runs WHERE id = $1 AND size = $2"},
		{"postgres no placeholders", &PostgresDialect{}, "SELECT COUNT(*) FROM runs", "SELECT COUNT(*) FROM runs"},
		{"postgres empty", &PostgresDialect{}, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewQueryBuilder(tt.dialect).Build(tt.input); got != tt.want {
				t.Errorf("Build(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestQueryBuilder_Build_ManyPlaceholders(t *testing.T) {
	qb := NewQueryBuilder(&PostgresDialect{})
	input := "INSERT INTO runs VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	want := "INSERT INTO runs VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)"
	if got := qb.Build(input); got != want {
		t.Errorf("Build with 12 placeholders failed:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/path/to/runs.db")
	if cfg.Driver != "sqlite" {
		t.Errorf("Driver = %q, want sqlite", cfg.Driver)
	}
	if cfg.SQLitePath != "/path/to/runs.db" {
		t.Errorf("SQLitePath = %q", cfg.SQLitePath)
	}
	if cfg.Postgres.ConnMaxLifetime != 5*time.Minute {
		t.Errorf("ConnMaxLifetime = %v, want 5m", cfg.Postgres.ConnMaxLifetime)
	}
}

func TestPostgresDSN(t *testing.T) {
	cfg := DefaultPostgresConfig()
	cfg.User = "maze"
	cfg.Password = "p@ss word"
	cfg.Database = "mazestep"

	dsn := cfg.DSN()
	for _, part := range []string{"postgres://maze:", "@localhost:5432/mazestep", "sslmode=disable", "timezone=UTC"} {
		if !strings.Contains(dsn, part) {
			t.Errorf("DSN() = %q, missing %q", dsn, part)
		}
	}
	if strings.Contains(dsn, "p@ss word") {
		t.Errorf("DSN() = %q, password not escaped", dsn)
	}
}

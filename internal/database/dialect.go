package database

// Dialect hides the SQL differences between SQLite and PostgreSQL that the
// run ledger runs into.
type Dialect interface {
	// DriverName is the database/sql driver to open.
	DriverName() string

	// Placeholder returns the bind parameter for a 1-indexed position.
	Placeholder(position int) string

	// InitStatements run once per new connection pool.
	InitStatements() []string

	// BoolType is the column type for flags.
	BoolType() string

	// TimestampType is the column type for instants.
	TimestampType() string

	// IsDuplicateKeyError reports a primary key or unique violation.
	IsDuplicateKeyError(err error) bool
}

// DialectType names a supported backend.
type DialectType string

const (
	DialectSQLite   DialectType = "sqlite"
	DialectPostgres DialectType = "postgres"
)

// NewDialect returns the dialect for dialectType, falling back to SQLite.
func NewDialect(dialectType DialectType) Dialect {
	switch dialectType {
	case DialectPostgres:
		return &PostgresDialect{}
	default:
		return &SQLiteDialect{}
	}
}

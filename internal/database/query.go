package database

import "strings"

// QueryBuilder rewrites "?" placeholders for the active dialect, so queries
// are written once in SQLite form.
type QueryBuilder struct {
	dialect Dialect
}

// NewQueryBuilder creates a QueryBuilder for dialect.
func NewQueryBuilder(dialect Dialect) *QueryBuilder {
	return &QueryBuilder{dialect: dialect}
}

// Build numbers each "?" in order:
//
//	input:    "SELECT * FROM runs WHERE id = ? AND size = ?"
//	postgres: "SELECT * FROM runs WHERE id = $1 AND size = $2"
//
// SQLite queries come back unchanged.
func (qb *QueryBuilder) Build(query string) string {
	if _, ok := qb.dialect.(*SQLiteDialect); ok {
		return query
	}

	var result strings.Builder
	result.Grow(len(query) + 8)
	position := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result.WriteString(qb.dialect.Placeholder(position))
			position++
			continue
		}
		result.WriteByte(query[i])
	}
	return result.String()
}

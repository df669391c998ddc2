package sqldb

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect identifies the SQL flavour of a connection
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
)

// ParseDialect maps a database/sql driver name to its dialect
func ParseDialect(driver string) (Dialect, error) {
	switch driver {
	case "sqlite3", "sqlite":
		return DialectSQLite, nil
	case "pgx", "postgres", "postgresql":
		return DialectPostgres, nil
	}
	return "", fmt.Errorf("unsupported database driver: %s", driver)
}

// Rebind rewrites '?' placeholders into the dialect's form. Queries are
// written with '?' and must not contain literal question marks.
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// Placeholders returns "?, ?, ..." with n markers for IN clauses
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// Rebind rewrites query for the connection's dialect
func (db *DB) Rebind(query string) string {
	return db.dialect.Rebind(query)
}

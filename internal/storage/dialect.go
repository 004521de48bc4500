package storage

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect captures the differences between the supported SQL engines.
type Dialect struct {
	Name string
	// Driver is the database/sql driver name.
	Driver string
	// numbered placeholders ($1, $2) instead of ?
	numbered bool
	// lockClause is appended to row reads inside a transaction.
	lockClause string
	// maxOpenConns limits the pool; 0 leaves the default.
	maxOpenConns int
}

var (
	SQLite = Dialect{
		Name:         "sqlite",
		Driver:       "sqlite",
		maxOpenConns: 1,
	}
	Postgres = Dialect{
		Name:       "postgres",
		Driver:     "pgx",
		numbered:   true,
		lockClause: " FOR UPDATE",
	}
)

// DialectFor returns the dialect registered under name.
func DialectFor(name string) (Dialect, error) {
	switch name {
	case SQLite.Name:
		return SQLite, nil
	case Postgres.Name, "postgresql":
		return Postgres, nil
	}
	return Dialect{}, fmt.Errorf("unsupported SQL dialect %q", name)
}

// Rebind rewrites ? placeholders for dialects that number them. Question
// marks inside single-quoted literals are left alone.
func (d Dialect) Rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n, quoted := 0, false
	for _, r := range query {
		switch {
		case r == '\'':
			quoted = !quoted
			b.WriteRune(r)
		case r == '?' && !quoted:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

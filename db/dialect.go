package db

import "github.com/jmoiron/sqlx"

// Dialect selects how bind parameters are spelled in SQL text. Its values
// are sqlx bind types.
type Dialect int

const (
	// DialectQuestion uses `?` (MySQL, SQLite).
	DialectQuestion Dialect = sqlx.QUESTION
	// DialectDollar uses `$1, $2, ...` (PostgreSQL via lib/pq or pgx).
	DialectDollar Dialect = sqlx.DOLLAR
)

// DialectFor maps a database/sql driver name onto its placeholder dialect.
// Names sqlx does not know keep `?`.
func DialectFor(driverName string) Dialect {
	if sqlx.BindType(driverName) == sqlx.DOLLAR {
		return DialectDollar
	}
	return DialectQuestion
}

func (d Dialect) String() string {
	if d == DialectDollar {
		return "dollar"
	}
	return "question"
}

// Rebind rewrites `?` placeholders for the dialect. Queries in this module
// never contain a literal `?`, so every one is a bind parameter.
func (d Dialect) Rebind(query string) string {
	return sqlx.Rebind(int(d), query)
}

package db

import (
	"context"
	sqldriver "database/sql/driver"
	"fmt"
	"strconv"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// sqliteConns opens mattn connections with a Unicode-aware lower(). The
// built-in lower() and LIKE fold ASCII only, so "КУПИТЬ" would never match
// "купить".
var sqliteConns = &sqlite3.SQLiteDriver{ConnectHook: registerSQLiteFuncs}

func registerSQLiteFuncs(conn *sqlite3.SQLiteConn) error {
	if err := conn.RegisterFunc("lower", sqliteLower, true); err != nil {
		return fmt.Errorf("db: register sqlite lower(): %w", err)
	}
	return nil
}

// sqliteLower replaces SQLite's lower(). mattn hands NULL over as a nil
// []byte; it stays NULL. Numbers come back as text, as with the built-in.
func sqliteLower(v any) any {
	switch x := v.(type) {
	case string:
		return strings.ToLower(x)
	case []byte:
		if x == nil {
			return nil
		}
		return strings.ToLower(string(x))
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	}
	return v
}

type sqliteConnector struct {
	dsn string
}

func (c sqliteConnector) Connect(context.Context) (sqldriver.Conn, error) {
	return sqliteConns.Open(c.dsn)
}

func (sqliteConnector) Driver() sqldriver.Driver { return sqliteConns }

// Connector makes Open use sqliteConns instead of the plain "sqlite3"
// registration.
func (SQLiteDriver) Connector(dsn string) (sqldriver.Connector, error) {
	return sqliteConnector{dsn: dsn}, nil
}

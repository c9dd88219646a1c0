package db

import (
	"database/sql"
	sqldriver "database/sql/driver"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// ─────────────────────────────────────────────────────────────────────────────
// Driver interface
// ─────────────────────────────────────────────────────────────────────────────

// Driver encapsulates database-specific behaviour: turning structured
// connection options into a DSN, naming the database/sql driver that the
// entry points blank-import, and mapping that driver's errors. Open consults
// the registry for every pool it creates.
type Driver interface {
	// Name returns the name passed to sql.Register, e.g. "pgx", "mysql".
	Name() string

	// DSN converts structured options into a driver DSN string.
	DSN(opts DriverOptions) (string, error)

	// ErrorMapper returns a mapper tuned to this driver's error types.
	ErrorMapper() ErrorMapper
}

// DriverOptions carries the common connection parameters in a
// driver-agnostic form.
type DriverOptions struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // "disable", "require", "verify-full", etc.
	// Extra holds driver-specific key/value parameters.
	Extra map[string]string
}

// ─────────────────────────────────────────────────────────────────────────────
// Driver registry
// ─────────────────────────────────────────────────────────────────────────────

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// RegisterDriver adds a Driver to the registry. It panics on a duplicate
// name.
func RegisterDriver(d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if _, ok := drivers[d.Name()]; ok {
		panic(fmt.Sprintf("db: driver %q already registered", d.Name()))
	}
	drivers[d.Name()] = d
}

// LookupDriver returns the registered Driver by name.
func LookupDriver(name string) (Driver, error) {
	driversMu.RLock()
	defer driversMu.RUnlock()
	d, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("db: driver %q not registered", name)
	}
	return d, nil
}

// Drivers lists registered driver names in sorted order.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuildDSN resolves driverName in the registry and renders opts as a DSN.
func BuildDSN(driverName string, opts DriverOptions) (string, error) {
	drv, err := LookupDriver(driverName)
	if err != nil {
		return "", err
	}
	dsn, err := drv.DSN(opts)
	if err != nil {
		return "", fmt.Errorf("db: DSN construction failed: %w", err)
	}
	return dsn, nil
}

// connectorDriver is implemented by registry entries that hand database/sql
// a connector instead of going through sql.Open.
type connectorDriver interface {
	Connector(dsn string) (sqldriver.Connector, error)
}

// openPool builds the *sql.DB for cfg and picks its error mapper. Drivers
// missing from the registry fall back to sql.Open and the default mapper.
func openPool(cfg Config) (*sql.DB, ErrorMapper, error) {
	drv, err := LookupDriver(cfg.DriverName)
	if err != nil {
		sqldb, err := sql.Open(cfg.DriverName, cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("db: open: %w", err)
		}
		return sqldb, DefaultErrorMapper(), nil
	}

	if cd, ok := drv.(connectorDriver); ok {
		connector, err := cd.Connector(cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("db: open %s: %w", drv.Name(), err)
		}
		return sql.OpenDB(connector), drv.ErrorMapper(), nil
	}

	sqldb, err := sql.Open(drv.Name(), cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("db: open: %w", err)
	}
	return sqldb, drv.ErrorMapper(), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// PostgreSQL (lib/pq)
// ─────────────────────────────────────────────────────────────────────────────

// PostgresDriver is the lib/pq adapter.
type PostgresDriver struct{}

func (PostgresDriver) Name() string { return "postgres" }

func (PostgresDriver) DSN(o DriverOptions) (string, error) {
	if o.Host == "" || o.Database == "" {
		return "", fmt.Errorf("postgres driver: Host and Database are required")
	}
	port := o.Port
	if port == 0 {
		port = 5432
	}
	sslMode := o.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		o.Host, port, o.User, o.Password, o.Database, sslMode,
	)
	for _, k := range sortedKeys(o.Extra) {
		dsn += fmt.Sprintf(" %s=%s", k, o.Extra[k])
	}
	return dsn, nil
}

// ErrorMapper also reads SQLSTATEs that were flattened into message text.
func (PostgresDriver) ErrorMapper() ErrorMapper { return newErrorMapper(mapPQError) }

// ─────────────────────────────────────────────────────────────────────────────
// PostgreSQL (pgx stdlib)
// ─────────────────────────────────────────────────────────────────────────────

// PgxDriver is the jackc/pgx/v5/stdlib adapter. It takes a URL-style DSN.
type PgxDriver struct{}

func (PgxDriver) Name() string { return "pgx" }

func (PgxDriver) DSN(o DriverOptions) (string, error) {
	if o.Host == "" || o.Database == "" {
		return "", fmt.Errorf("pgx driver: Host and Database are required")
	}
	port := o.Port
	if port == 0 {
		port = 5432
	}
	sslMode := o.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(o.User, o.Password),
		Host:   fmt.Sprintf("%s:%d", o.Host, port),
		Path:   "/" + o.Database,
	}
	q := url.Values{}
	q.Set("sslmode", sslMode)
	for k, v := range o.Extra {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (PgxDriver) ErrorMapper() ErrorMapper { return newErrorMapper(mapPGXError, mapPQError) }

// ─────────────────────────────────────────────────────────────────────────────
// MySQL
// ─────────────────────────────────────────────────────────────────────────────

// MySQLDriver is the go-sql-driver/mysql adapter. parseTime is always on so
// DATETIME columns scan into time.Time.
type MySQLDriver struct{}

func (MySQLDriver) Name() string { return "mysql" }

func (MySQLDriver) DSN(o DriverOptions) (string, error) {
	if o.Host == "" || o.Database == "" {
		return "", fmt.Errorf("mysql driver: Host and Database are required")
	}
	port := o.Port
	if port == 0 {
		port = 3306
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC",
		o.User, o.Password, o.Host, port, o.Database)
	for _, k := range sortedKeys(o.Extra) {
		dsn += fmt.Sprintf("&%s=%s", k, o.Extra[k])
	}
	return dsn, nil
}

func (MySQLDriver) ErrorMapper() ErrorMapper { return newErrorMapper(mapMySQLError) }

// ─────────────────────────────────────────────────────────────────────────────
// SQLite
// ─────────────────────────────────────────────────────────────────────────────

// SQLiteDriver is the mattn/go-sqlite3 adapter. Database is the file path.
type SQLiteDriver struct{}

func (SQLiteDriver) Name() string { return "sqlite3" }

func (SQLiteDriver) DSN(o DriverOptions) (string, error) {
	if o.Database == "" {
		return "", fmt.Errorf("sqlite3 driver: Database (file path) is required")
	}
	keys := sortedKeys(o.Extra)
	if len(keys) == 0 {
		return o.Database, nil
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+o.Extra[k])
	}
	return o.Database + "?" + strings.Join(parts, "&"), nil
}

func (SQLiteDriver) ErrorMapper() ErrorMapper { return newErrorMapper(mapSQLiteError) }

// ─────────────────────────────────────────────────────────────────────────────
// Built-in registrations
// ─────────────────────────────────────────────────────────────────────────────

func init() {
	RegisterDriver(PostgresDriver{})
	RegisterDriver(PgxDriver{})
	RegisterDriver(MySQLDriver{})
	RegisterDriver(SQLiteDriver{})
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

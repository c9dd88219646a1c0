// Package migrations owns the items schema. The SQL lives next to this file,
// one directory per dialect, and is embedded into every binary that applies
// it, so the server and the migrate CLI never depend on a working directory.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sqlite3/*.sql postgres/*.sql mysql/*.sql
var files embed.FS

// Options selects the database the migrations run against.
type Options struct {
	// DriverName is the database/sql driver name: "sqlite3", "postgres",
	// "pgx" or "mysql". The caller must have blank-imported it.
	DriverName string
	DSN        string
	// Logger receives golang-migrate progress lines. Defaults to slog.Default().
	Logger *slog.Logger
	// Verbose forwards golang-migrate's verbose output.
	Verbose bool
}

// Migrator wraps a golang-migrate instance bound to the embedded sources.
type Migrator struct {
	m *migrate.Migrate
}

// New opens a dedicated connection for the migration run. golang-migrate
// closes the *sql.DB it is handed, so it must not be the application pool.
func New(opts Options) (*Migrator, error) {
	dir, err := sourceDir(opts.DriverName)
	if err != nil {
		return nil, err
	}

	src, err := iofs.New(files, dir)
	if err != nil {
		return nil, fmt.Errorf("migrations: source: %w", err)
	}

	sqldb, err := sql.Open(opts.DriverName, opts.DSN)
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("migrations: open: %w", err)
	}

	drv, err := databaseDriver(opts.DriverName, sqldb)
	if err != nil {
		_ = src.Close()
		_ = sqldb.Close()
		return nil, err
	}

	m, err := migrate.NewWithInstance("iofs", src, opts.DriverName, drv)
	if err != nil {
		_ = src.Close()
		_ = drv.Close()
		return nil, fmt.Errorf("migrations: init: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m.Log = &migrateLogger{logger: logger, verbose: opts.Verbose}

	return &Migrator{m: m}, nil
}

// sourceDir maps a driver name to its embedded SQL directory.
func sourceDir(driverName string) (string, error) {
	switch driverName {
	case "sqlite3":
		return "sqlite3", nil
	case "postgres", "pgx":
		return "postgres", nil
	case "mysql":
		return "mysql", nil
	}
	return "", fmt.Errorf("migrations: unsupported driver %q", driverName)
}

func databaseDriver(driverName string, sqldb *sql.DB) (database.Driver, error) {
	var (
		drv database.Driver
		err error
	)
	switch driverName {
	case "sqlite3":
		drv, err = migratesqlite.WithInstance(sqldb, &migratesqlite.Config{})
	case "postgres":
		drv, err = migratepostgres.WithInstance(sqldb, &migratepostgres.Config{})
	case "pgx":
		drv, err = migratepgx.WithInstance(sqldb, &migratepgx.Config{})
	case "mysql":
		drv, err = migratemysql.WithInstance(sqldb, &migratemysql.Config{})
	default:
		err = fmt.Errorf("unsupported driver %q", driverName)
	}
	if err != nil {
		return nil, fmt.Errorf("migrations: database driver: %w", err)
	}
	return drv, nil
}

// Up applies all pending migrations. An up-to-date schema is not an error.
// Cancelling ctx stops the run after the migration in flight.
func (mg *Migrator) Up(ctx context.Context) error {
	stop := mg.stopOnCancel(ctx)
	defer stop()

	if err := mg.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrations: up: %w", err)
	}
	return nil
}

// Down rolls back steps migrations. steps < 1 is treated as 1.
func (mg *Migrator) Down(ctx context.Context, steps int) error {
	if steps < 1 {
		steps = 1
	}
	stop := mg.stopOnCancel(ctx)
	defer stop()

	if err := mg.m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrations: down %d: %w", steps, err)
	}
	return nil
}

// Version reports the applied version. A fresh database is version 0, clean.
func (mg *Migrator) Version() (version uint, dirty bool, err error) {
	version, dirty, err = mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("migrations: version: %w", err)
	}
	return version, dirty, nil
}

// Force sets the version without running migrations, clearing the dirty flag.
func (mg *Migrator) Force(version int) error {
	if err := mg.m.Force(version); err != nil {
		return fmt.Errorf("migrations: force %d: %w", version, err)
	}
	return nil
}

// Drop removes every table in the database, including the version table.
func (mg *Migrator) Drop() error {
	if err := mg.m.Drop(); err != nil {
		return fmt.Errorf("migrations: drop: %w", err)
	}
	return nil
}

// Close releases the source and the dedicated connection.
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	return errors.Join(srcErr, dbErr)
}

func (mg *Migrator) stopOnCancel(ctx context.Context) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			// GracefulStop is buffered; this never blocks.
			mg.m.GracefulStop <- true
		case <-done:
		}
	}()
	return func() { close(done) }
}

// Up is the one-shot form used by the server when DB_AUTO_MIGRATE is set.
func Up(ctx context.Context, opts Options) error {
	mg, err := New(opts)
	if err != nil {
		return err
	}
	defer mg.Close()
	return mg.Up(ctx)
}

// ─────────────────────────────────────────────────────────────────────────────

type migrateLogger struct {
	logger  *slog.Logger
	verbose bool
}

func (l *migrateLogger) Printf(format string, v ...any) {
	l.logger.Info(fmt.Sprintf("migrations: "+format, v...))
}

func (l *migrateLogger) Verbose() bool { return l.verbose }

// Command itemstore serves the item catalogue web app.
//
// Configuration comes from the environment (a .env file in the working
// directory is loaded first) or from the YAML file named by CONFIG_PATH.
// See config.Config for every setting.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"

	"github.com/Skryldev/itemstore/config"
	"github.com/Skryldev/itemstore/db"
	"github.com/Skryldev/itemstore/migrations"
	"github.com/Skryldev/itemstore/service"
	"github.com/Skryldev/itemstore/web"

	// database/sql drivers register themselves on import.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

func main() {
	if err := run(); err != nil {
		slog.Error("itemstore: exiting", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	if cfg.Env != config.EnvLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dsn, err := cfg.Database.ConnString()
	if err != nil {
		return err
	}

	database, err := connect(ctx, cfg.Database, dsn, logger)
	if err != nil {
		return err
	}
	defer database.Close()

	if cfg.Database.AutoMigrate {
		// The database is reachable now, so migrate does not need its own retry.
		if err := migrations.Up(ctx, migrations.Options{
			DriverName: cfg.Database.Driver,
			DSN:        dsn,
			Logger:     logger,
		}); err != nil {
			return err
		}
	}

	items := service.New(database.DB, logger)

	if cfg.Seed.Enabled {
		n, err := items.SeedSampleItems(ctx, cfg.Seed.Count)
		if err != nil {
			return fmt.Errorf("seed sample items: %w", err)
		}
		logger.Info("seed: done", "inserted", n)
	}

	router, err := web.NewRouter(web.Deps{
		Items:  items,
		DB:     database.DB,
		Stats:  database.stats,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	logger.Info("itemstore: starting",
		"env", cfg.Env, "driver", cfg.Database.Driver, "addr", cfg.HTTP.Addr())
	return web.NewServer(cfg.HTTP.Addr(), router, cfg.HTTP.ShutdownTimeout, logger).Run(ctx)
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.JSONLogs() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts)), nil
}

type instrumentedDB struct {
	*db.DB
	stats *db.QueryStats
}

// connect opens the pool and pings it, retrying while the server is not yet
// accepting connections (containers starting in parallel).
func connect(ctx context.Context, cfg config.DatabaseConfig, dsn string, logger *slog.Logger) (*instrumentedDB, error) {
	stats := db.NewQueryStats()

	var database *db.DB
	attempt := 0
	err := db.WithRetry(ctx, db.RetryConfig{
		MaxAttempts: cfg.ConnectAttempts,
		Delay:       cfg.ConnectDelay,
		// Drivers disagree on how "not listening yet" surfaces, so any open
		// failure is retried until the attempts run out.
		RetryOn: func(error) bool { return ctx.Err() == nil },
	}, func() error {
		attempt++
		d, err := db.Open(db.Config{
			DSN:             dsn,
			DriverName:      cfg.Driver,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.ConnMaxIdleTime,
			DefaultTimeout:  cfg.DefaultTimeout,
			Hooks: []db.Hook{
				db.NewLogHook(db.LogHookConfig{
					Logger:             logger,
					SlowQueryThreshold: cfg.SlowQueryThreshold,
					LogArgs:            cfg.LogArgs,
				}),
				db.NewMetricsHook(stats),
			},
		})
		if err != nil {
			logger.Warn("db: connect failed", "attempt", attempt, "error", err)
			return err
		}
		database = d
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Driver, err)
	}

	logger.Info("db: connected", "driver", database.DriverName(), "attempts", attempt)
	return &instrumentedDB{DB: database, stats: stats}, nil
}

// Command migrate manages the items schema outside the server process.
//
// It reads the same configuration as the server (environment, .env, or the
// YAML file named by CONFIG_PATH), so DB_DRIVER and friends select the target.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/fatih/color"
	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"

	"github.com/Skryldev/itemstore/config"
	"github.com/Skryldev/itemstore/db"
	"github.com/Skryldev/itemstore/migrations"
	"github.com/Skryldev/itemstore/service"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

var (
	ok   = color.New(color.FgGreen).SprintFunc()
	warn = color.New(color.FgYellow).SprintFunc()
	bad  = color.New(color.FgRed, color.Bold).SprintFunc()
)

func main() {
	verbose := false

	rootCmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply, roll back and inspect the items schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print golang-migrate progress")

	rootCmd.AddCommand(upCmd(&verbose))
	rootCmd.AddCommand(downCmd(&verbose))
	rootCmd.AddCommand(versionCmd(&verbose))
	rootCmd.AddCommand(forceCmd(&verbose))
	rootCmd.AddCommand(dropCmd(&verbose))
	rootCmd.AddCommand(seedCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, bad("error:"), err)
		os.Exit(1)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Commands
// ─────────────────────────────────────────────────────────────────────────────

func upCmd(verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(*verbose, func(m *migrations.Migrator) error {
				if err := m.Up(cmd.Context()); err != nil {
					return err
				}
				return printVersion(m)
			})
		},
	}
}

func downCmd(verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "down [N]",
		Short: "Roll back N migrations (default 1)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 1 {
					return fmt.Errorf("down: invalid steps argument %q", args[0])
				}
				steps = n
			}
			return withMigrator(*verbose, func(m *migrations.Migrator) error {
				if err := m.Down(cmd.Context(), steps); err != nil {
					return err
				}
				return printVersion(m)
			})
		},
	}
}

func versionCmd(verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withMigrator(*verbose, printVersion)
		},
	}
}

func forceCmd(verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "force V",
		Short: "Set the schema version without running migrations (clears the dirty flag)",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("force: invalid version %q", args[0])
			}
			return withMigrator(*verbose, func(m *migrations.Migrator) error {
				if err := m.Force(v); err != nil {
					return err
				}
				return printVersion(m)
			})
		},
	}
}

func dropCmd(verbose *bool) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "drop",
		Short: "Drop every table in the database (development only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes && !confirm(cmd, "drop will destroy all tables. Type 'yes' to confirm: ") {
				fmt.Fprintln(cmd.OutOrStdout(), "aborted")
				return nil
			}
			return withMigrator(*verbose, func(m *migrations.Migrator) error {
				if err := m.Drop(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), ok("dropped"), "all tables")
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func seedCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert sample items into an empty table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, dsn, err := loadConfig()
			if err != nil {
				return err
			}
			database, err := db.Open(db.Config{DSN: dsn, DriverName: cfg.Database.Driver})
			if err != nil {
				return err
			}
			defer database.Close()

			n, err := service.New(database, logger(false)).SeedSampleItems(cmd.Context(), count)
			if err != nil {
				return err
			}
			if n == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), warn("skipped"), "table already has items")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d items\n", ok("seeded"), n)
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", service.DefaultSeedCount, "number of items to insert")
	return cmd
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func loadConfig() (*config.Config, string, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, "", err
	}
	dsn, err := cfg.Database.ConnString()
	if err != nil {
		return nil, "", err
	}
	return cfg, dsn, nil
}

func withMigrator(verbose bool, fn func(*migrations.Migrator) error) error {
	cfg, dsn, err := loadConfig()
	if err != nil {
		return err
	}
	m, err := migrations.New(migrations.Options{
		DriverName: cfg.Database.Driver,
		DSN:        dsn,
		Logger:     logger(verbose),
		Verbose:    verbose,
	})
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m)
}

func printVersion(m *migrations.Migrator) error {
	v, dirty, err := m.Version()
	if err != nil {
		return err
	}
	state := ok("clean")
	if dirty {
		state = bad("dirty")
	}
	fmt.Printf("version: %d  state: %s\n", v, state)
	return nil
}

func logger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprint(cmd.ErrOrStderr(), warn("WARNING: "), prompt)
	line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	return strings.TrimSpace(line) == "yes"
}

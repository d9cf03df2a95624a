package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"warden/config"
	"warden/database"
	"warden/repository"
)

// Exit codes: 0 success, 1 configuration error, 2 dependency unreachable,
// 3 migration failure.
const (
	exitConfig     = 1
	exitDependency = 2
	exitMigration  = 3
)

// exitError carries a process exit code up through cobra
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitf(code int, format string, args ...any) error {
	return &exitError{code: code, err: fmt.Errorf(format, args...)}
}

var rootCmd = &cobra.Command{
	Use:           "warden",
	Short:         "warden - guard and economy bot for Discord servers",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bot (gateway, dispatcher, audit, detector, schedules)",
	RunE:  runBot,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := database.MigrateUp(cfg.DatabaseURL); err != nil {
			return exitf(exitMigration, "migrate up: %w", err)
		}
		return nil
	},
}

var migrateSteps int

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := database.MigrateDown(cfg.DatabaseURL, migrateSteps); err != nil {
			return exitf(exitMigration, "migrate down: %w", err)
		}
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current migration version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := database.MigrateStatus(cfg.DatabaseURL); err != nil {
			return exitf(exitMigration, "migrate status: %w", err)
		}
		return nil
	},
}

var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Verify the database is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openDatabase(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()
		fmt.Println("ok")
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print aggregate usage statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, _, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := repository.NewMaintenance(db).CollectStats(ctx)
		if err != nil {
			return exitf(exitDependency, "collect stats: %w", err)
		}
		fmt.Printf("Guilds:            %d\n", stats.Guilds)
		fmt.Printf("Users:             %d\n", stats.Users)
		fmt.Printf("Active jails:      %d\n", stats.ActiveJails)
		fmt.Printf("Log entries:       %d\n", stats.LogEntries)
		fmt.Printf("Transactions:      %d\n", stats.Transactions)
		fmt.Printf("Commands (24h):    %d\n", stats.CommandsUsed24)
		return nil
	},
}

var purgeDays int

var purgeLogsCmd = &cobra.Command{
	Use:   "purge-logs",
	Short: "Delete audit log and command usage rows older than --days",
	RunE: func(cmd *cobra.Command, args []string) error {
		if purgeDays < 1 {
			return exitf(exitConfig, "--days must be a positive integer")
		}
		ctx := cmd.Context()
		db, _, err := openDatabase(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		maintenance := repository.NewMaintenance(db)
		cutoff := time.Now().AddDate(0, 0, -purgeDays)

		entries, err := maintenance.PurgeLogEntries(ctx, cutoff)
		if err != nil {
			return exitf(exitDependency, "purge log entries: %w", err)
		}
		usage, err := maintenance.PurgeCommandUsage(ctx, cutoff)
		if err != nil {
			return exitf(exitDependency, "purge command usage: %w", err)
		}
		fmt.Printf("Deleted %d log entries and %d usage rows older than %d days\n", entries, usage, purgeDays)
		return nil
	},
}

func init() {
	migrateDownCmd.Flags().IntVar(&migrateSteps, "steps", 1, "Number of migrations to roll back")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
	purgeLogsCmd.Flags().IntVar(&purgeDays, "days", 30, "Retention horizon in days")
	rootCmd.AddCommand(runCmd, migrateCmd, healthcheckCmd, statsCmd, purgeLogsCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, exitf(exitConfig, "load config: %w", err)
	}
	return cfg, nil
}

func openDatabase(ctx context.Context) (*database.DB, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.NewConnection(ctx, cfg)
	if err != nil {
		return nil, nil, exitf(exitDependency, "connect to database: %w", err)
	}
	return db, cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Error("Command failed")
		var xe *exitError
		if errors.As(err, &xe) {
			os.Exit(xe.code)
		}
		os.Exit(1)
	}
}

package main

import (
	"database/sql"
	"fmt"
	"os"

	"tipjar/config"
	"tipjar/migrations"
	"tipjar/pkg/logger"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the postgres ledger schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a config file")

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE:  withDB(func(db *sql.DB) error { return goose.Up(db, ".") }),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE:  withDB(func(db *sql.DB) error { return goose.Down(db, ".") }),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print the status of every migration",
			RunE:  withDB(func(db *sql.DB) error { return goose.Status(db, ".") }),
		},
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

// withDB opens the configured database and points goose at the embedded migrations.
func withDB(run func(db *sql.DB) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

		db, err := sql.Open("pgx", cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		goose.SetBaseFS(migrations.FS)
		if err := goose.SetDialect("postgres"); err != nil {
			return fmt.Errorf("setting dialect: %w", err)
		}

		log.Info().Str("command", cmd.Name()).Str("dbname", cfg.Database.DBName).Msg("running migrations")
		return run(db)
	}
}

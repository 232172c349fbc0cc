package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/iho/coopledger/internal/infrastructure/config"
	"github.com/iho/coopledger/internal/infrastructure/logger"
	"github.com/iho/coopledger/internal/infrastructure/postgres"
)

func migrateCmd() *cobra.Command {
	var databaseURL, migrationsPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back PostgreSQL schema migrations",
	}
	cmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "PostgreSQL URL (default: DATABASE_URL)")
	cmd.PersistentFlags().StringVar(&migrationsPath, "path", "", "Migrations directory (default: MIGRATIONS_PATH)")

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbURL, path, err := databaseSettings(databaseURL, migrationsPath)
			if err != nil {
				return err
			}
			return postgres.RunMigrations(dbURL, path, cliLogger(cmd))
		},
	}

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbURL, path, err := databaseSettings(databaseURL, migrationsPath)
			if err != nil {
				return err
			}
			return postgres.RunMigrationsDown(dbURL, path, cliLogger(cmd))
		},
	}

	cmd.AddCommand(upCmd, downCmd)
	return cmd
}

// databaseSettings fills empty flag values from the environment
// configuration.
func databaseSettings(databaseURL, migrationsPath string) (string, string, error) {
	if databaseURL != "" && migrationsPath != "" {
		return databaseURL, migrationsPath, nil
	}

	cfg, err := config.Load()
	if err != nil {
		return "", "", err
	}
	if databaseURL == "" {
		databaseURL = cfg.DatabaseURL
	}
	if migrationsPath == "" {
		migrationsPath = cfg.MigrationsPath
	}
	return databaseURL, migrationsPath, nil
}

func cliLogger(cmd *cobra.Command) zerolog.Logger {
	return logger.New(logger.Config{Level: "info", Format: "console", Output: cmd.ErrOrStderr()})
}

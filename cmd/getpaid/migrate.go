package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"getpaid-p24/internal/config"
	"getpaid-p24/internal/database"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Apply the embedded goose migrations to the database configured by the
BLUEPRINT_DB_* environment variables (or .env).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbCfg, err := config.LoadDatabase()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			db, err := database.NewPostgres(dbCfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := database.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

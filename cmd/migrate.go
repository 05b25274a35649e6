package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"agrimarket/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := database.InitDB(); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer database.CloseDB()

		if err := database.RunMigrations(); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Println("✅ Schema is up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

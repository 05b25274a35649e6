package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"agrimarket/config"
	"agrimarket/database"
	"agrimarket/utils"
)

var (
	seedUsername string
	seedEmail    string
	seedPassword string
)

var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Create the bootstrap administrator if it does not exist",
	Long: `Create an accepted admin account with its admin profile. Admins cannot
self-register, so this is how the first one is made. Defaults come from
ADMIN_USERNAME, ADMIN_EMAIL and ADMIN_PASSWORD.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		username := firstNonEmpty(seedUsername, config.AppConfig.AdminUsername)
		email := firstNonEmpty(seedEmail, config.AppConfig.AdminEmail)
		password := firstNonEmpty(seedPassword, config.AppConfig.AdminPassword)
		if len(password) < 6 {
			return fmt.Errorf("admin password must be at least 6 characters")
		}

		if err := database.InitDB(); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer database.CloseDB()
		if err := database.RunMigrations(); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		hash, err := utils.HashPassword(password)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		user, created, err := database.SeedDefaultAdmin(username, email, hash)
		if err != nil {
			return fmt.Errorf("failed to seed admin: %w", err)
		}
		if created {
			log.Printf("✅ Created admin %s (#%d)", user.Username, user.ID)
		} else {
			log.Printf("ℹ️ Admin %s already exists (#%d)", user.Username, user.ID)
		}
		return nil
	},
}

func init() {
	seedAdminCmd.Flags().StringVar(&seedUsername, "username", "", "admin username")
	seedAdminCmd.Flags().StringVar(&seedEmail, "email", "", "admin email")
	seedAdminCmd.Flags().StringVar(&seedPassword, "password", "", "admin password")
	rootCmd.AddCommand(seedAdminCmd)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

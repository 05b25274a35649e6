package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"agrimarket/config"
)

var rootCmd = &cobra.Command{
	Use:   "agrimarket",
	Short: "Agrimarket API - marketplace for farmers, vets and consumers",
	Long: `Agrimarket serves the marketplace API: sheep and oil listings, vet
consultations, messaging, reclamations and admin statistics.

Run without a subcommand to start the API server.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.InitConfig()
	},
	RunE: runServer,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

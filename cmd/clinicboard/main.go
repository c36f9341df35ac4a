package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "clinicboard",
		Short:        "Clinic practice dashboard: API server and command-line client",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("api-url", "", "API base URL for client commands (overrides API_URL)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(profileCmd())
	rootCmd.AddCommand(patientsCmd())
	rootCmd.AddCommand(consultationsCmd())
	rootCmd.AddCommand(documentsCmd())
	rootCmd.AddCommand(messagesCmd())
	return rootCmd
}

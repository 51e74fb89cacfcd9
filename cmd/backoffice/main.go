// Backoffice is the sports council back office: file storage, outgoing mail
// and the public contact form, backed by credentials managed at runtime.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "backoffice",
	Short: "Sports council back office API.",
	Long: `Backoffice serves the council's admin API and public contact form.
Storage and mail credentials are read from the settings store, falling back to
environment variables, and can be changed at runtime without a restart.`,
	RunE:          runServe, // Default to serve mode.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ~/.backoffice/config.yaml)")
	rootCmd.AddCommand(serveCmd, migrateCmd, settingsCmd, encryptCmd, checkCmd, versionCmd)
	_ = godotenv.Load()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

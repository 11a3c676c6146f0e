package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Duplicate detection and resolution for the lesson catalog",
	Long: `dedup finds lessons that are likely duplicates of each other, groups
them for review and applies reviewer decisions: archive against a canonical
lesson or dismiss as not duplicates.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(newServeCmd(), newDetectCmd(), newMigrateCmd())
}

func main() {
	// Load .env file if present
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading it: %v", err)
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/lessonbank/dedup/internal/config"
	"github.com/lessonbank/dedup/internal/database"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and default settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if _, err := openDatabase(cfg); err != nil {
				return err
			}
			defer database.Close()
			log.Println("Schema is up to date")
			return nil
		},
	}
}

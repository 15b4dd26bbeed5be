package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/taskboard/backend/internal/storage"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			db, err := storage.NewDB(cfg.DatabasePath())
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			applied, err := storage.RunMigrations(context.Background(), db)
			if err != nil {
				return fmt.Errorf("running migrations: %w", err)
			}

			if len(applied) == 0 {
				fmt.Println("Database is up to date")
				return nil
			}
			for _, name := range applied {
				fmt.Printf("Applied %s\n", name)
			}
			return nil
		},
	}
}

package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/fraudsight/fraudsight/internal/storage"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Bring the store schema up to date",
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store, err := storage.NewSQLiteStorage(cfg.Store.Path)
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer func() { _ = store.Close() }()

			if err := store.Migrate(c.Context()); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			slog.Info("Migrations complete", "path", cfg.Store.Path)
			return nil
		},
	}
}

package main

import (
	"fmt"

	"github.com/dvloznov/finance-capture/internal/ledger"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the ledger schema",
		Long: `migrate applies the ledger schema for the configured driver. SQLite is
migrated on every start as well; BigQuery tables are only created here.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			m, ok := a.store.(ledger.Migrator)
			if !ok {
				log.Info().Str("driver", cfg.Ledger.Driver).Msg("Ledger driver has no schema")
				return nil
			}
			if err := m.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("failed to migrate ledger: %w", err)
			}

			log.Info().Str("driver", cfg.Ledger.Driver).Msg("Ledger schema is up to date")
			return nil
		},
	}
}

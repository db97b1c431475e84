package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmehdipour/restaurant-crm/internal/db"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create the MySQL documents table and, when enabled, the ClickHouse archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		sqlDB, err := db.NewMySQLConnection(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer sqlDB.Close()

		if err := db.ApplyMySQLSchema(ctx, sqlDB); err != nil {
			return fmt.Errorf("mysql schema: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), ">> MySQL schema applied")

		if !cfg.ClickHouse.Enabled {
			return nil
		}
		chDB, err := db.NewClickHouseConnection(cfg.ClickHouse)
		if err != nil {
			return fmt.Errorf("open clickhouse: %w", err)
		}
		defer chDB.Close()

		if err := db.ApplyClickHouseSchema(ctx, chDB); err != nil {
			return fmt.Errorf("clickhouse schema: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), ">> ClickHouse schema applied")
		return nil
	},
}

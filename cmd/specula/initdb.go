package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/specula/internal/storage"
)

var errInitDBNeedsStore = errors.New("database URL is required for init-db")

func init() {
	rootCmd.AddCommand(initDBCmd)
}

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create the storage schema",
	Long: `Create the tables (PostgreSQL) or prepare the embedded store (Badger).
Running it again is a no-op.

Examples:
  specula init-db --database-url postgres://specula@localhost/specula
  specula init-db --storage-driver badger`,
	Args: cobra.NoArgs,
	RunE: runInitDB,
}

func runInitDB(cmd *cobra.Command, args []string) error {
	return withApp(cmd, nil, func(ctx context.Context, a *app) error {
		if a.cfg.StorageOptions().ResolveDriver() == storage.DriverNone {
			return errInitDBNeedsStore
		}
		if err := a.svc.InitSchema(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "database schema initialized")
		return nil
	})
}

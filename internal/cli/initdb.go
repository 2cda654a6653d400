package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	applog "expenses/internal/log"
)

func newInitDBCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create the database file and schema if missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := InitSQLite(a.logger, a.cfg.SQLiteDBPath)
			if err != nil {
				return err
			}
			defer repo.Close()

			abs, err := filepath.Abs(repo.Path())
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}
			a.logger.WithComponent(applog.ComponentCLI).Debug("Database initialized", "path", abs)
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized DB at %s\n", abs)
			return nil
		},
	}
}

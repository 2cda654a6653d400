package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	applog "expenses/internal/log"
	"expenses/internal/services"
)

func newExportCommand(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every expense as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := InitSQLite(a.logger, a.cfg.SQLiteDBPath)
			if err != nil {
				return err
			}
			svc := services.NewExpenseService(repo, nil, a.logger, nil)
			defer svc.Close()

			var n int
			if output == "" || output == "-" {
				n, err = svc.Export(cmd.Context(), cmd.OutOrStdout())
			} else {
				n, err = exportToFile(cmd.Context(), svc, output)
			}
			if err != nil {
				return err
			}
			a.logger.WithComponent(applog.ComponentExport).Info("Export complete",
				applog.FieldCount, n,
				"output", outputName(output))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write (default stdout)")
	return cmd
}

// exportToFile writes the CSV to path. A failed export leaves no file
// behind.
func exportToFile(ctx context.Context, svc *services.ExpenseService, path string) (n int, err error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", path, cerr)
		}
		if err != nil {
			os.Remove(path)
		}
	}()

	return svc.Export(ctx, f)
}

func outputName(output string) string {
	if output == "" || output == "-" {
		return "stdout"
	}
	return output
}

package cli

import (
	"github.com/spf13/cobra"

	"expenses/internal/config"
	applog "expenses/internal/log"
)

// Version is set at build time with -ldflags "-X expenses/internal/cli.Version=...".
var Version = "dev"

// app carries what PersistentPreRunE prepared for the subcommands.
type app struct {
	configPath string
	cfg        *config.Config
	logger     *applog.Logger
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:     "expenses",
		Short:   "Personal expense tracker",
		Version: Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			LoadEnvFile()
			cfg, err := LoadAndValidateConfig(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = SetupLogger(cfg, cmd.ErrOrStderr())
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a TOML config file (environment variables override it)")

	rootCmd.AddCommand(
		newServeCommand(a),
		newInitDBCommand(a),
		newExportCommand(a),
	)

	return rootCmd
}

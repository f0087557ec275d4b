package cli

import (
	"github.com/spf13/cobra"

	infraConfig "github.com/okazaki-dev/retriage/internal/infra/config"
)

// globalConfig holds the loaded configuration for all commands
var globalConfig infraConfig.Config

func NewRoot() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "retriage",
		Short:         "Automated triage of issues and PRs across repositories",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load configuration before any command runs
			// Priority: setting.json > defaults
			baseDir := infraConfig.DefaultHome()

			cfg, err := infraConfig.LoadSettings(baseDir)
			if err != nil {
				return err
			}
			globalConfig = cfg
			stderrLogger.SetLevel(LogLevelFromString(cfg.StderrLevel))
			return nil
		},
		RunE: func(c *cobra.Command, _ []string) error { return c.Help() },
	}
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newPlanCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newGatesCmd())
	cmd.AddCommand(newApplyCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newLogCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

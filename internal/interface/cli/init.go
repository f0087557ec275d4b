package cli

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/okazaki-dev/retriage/internal/app/state"
	"github.com/okazaki-dev/retriage/internal/infra/lock"
)

const defaultPolicyYAML = `# retriage installation gate policy.
# Repos can override individual gates with a .retriage.toml in their tree.
#
# lint:
#   command: golangci-lint run ./...
#   timeout_sec: 300
# tests:
#   command: go test ./...
#   timeout_sec: 600
# secrets:
#   disabled: false
#   patterns: []   # empty uses the built-in patterns
`

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the retriage home directory and empty state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := globalConfig

			if err := os.MkdirAll(cfg.StateDir, 0755); err != nil {
				return fmt.Errorf("create state dir: %w", err)
			}

			locks := lock.NewManager(cfg.LockTimeout, cfg.LockTTL)
			store := state.NewStore(afero.NewOsFs(), locks, cfg.StatePath())
			if err := store.Init(); err != nil {
				return err
			}

			// Seed a commented policy file unless one already exists.
			if _, err := os.Stat(cfg.PolicyPath); os.IsNotExist(err) {
				if err := os.WriteFile(cfg.PolicyPath, []byte(defaultPolicyYAML), 0644); err != nil {
					return fmt.Errorf("write policy: %w", err)
				}
			}

			stderrLogger.Info("initialized %s", cfg.Home)
			fmt.Fprintf(cmd.OutOrStdout(), "state: %s\npolicy: %s\n", cfg.StatePath(), cfg.PolicyPath)
			return nil
		},
	}
}

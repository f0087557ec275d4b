package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okazaki-dev/retriage/internal/app/gates"
	"github.com/okazaki-dev/retriage/internal/domain/plan"
)

func newGatesCmd() *cobra.Command {
	var worktree, planPath string

	cmd := &cobra.Command{
		Use:   "gates",
		Short: "Run quality gates over a worktree and record results in the plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := runGatePipeline(cmd, worktree, planPath)
			if err != nil {
				return err
			}
			if !res.OverallOK {
				return fmt.Errorf("quality gates failed")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&worktree, "worktree", "", "worktree to run gates in (required)")
	cmd.Flags().StringVar(&planPath, "plan", "", "plan file to record results in (required)")
	cmd.MarkFlagRequired("worktree")
	cmd.MarkFlagRequired("plan")
	return cmd
}

// runGatePipeline loads policy (installation YAML merged with the repo's
// override), runs the gates, persists results, and prints a summary.
func runGatePipeline(cmd *cobra.Command, worktree, planPath string) (gates.PipelineResults, error) {
	cfg := globalConfig

	pol, err := gates.LoadPolicy(cfg.PolicyPath)
	if err != nil {
		return gates.PipelineResults{}, err
	}
	pol, err = gates.LoadRepoOverride(worktree, pol)
	if err != nil {
		return gates.PipelineResults{}, err
	}

	stderrLogger.Info("running gates in %s", worktree)
	res := gates.RunGates(cmd.Context(), worktree, pol)

	if err := gates.PersistGateResults(planPath, res); err != nil {
		return res, err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "lint:    %s\n", gateStatus(res.Lint))
	fmt.Fprintf(out, "tests:   %s\n", gateStatus(res.Tests))
	fmt.Fprintf(out, "secrets: %s\n", secretsStatus(res.Secrets))
	fmt.Fprintf(out, "overall: %v\n", res.OverallOK)
	if res.SecretFindings != "" {
		stderrLogger.Warn("secret scan findings:\n%s", res.SecretFindings)
	}
	return res, nil
}

func gateStatus(r plan.GateResult) string {
	if !r.Ran {
		return "not configured"
	}
	if r.OK {
		return "ok"
	}
	return "FAILED"
}

func secretsStatus(r plan.SecretsResult) string {
	if !r.Scanned {
		return "not configured"
	}
	if r.OK {
		return "ok"
	}
	return "FAILED"
}

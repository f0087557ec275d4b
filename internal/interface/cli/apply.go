package cli

import (
	"fmt"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/okazaki-dev/retriage/internal/app/actionlog"
	"github.com/okazaki-dev/retriage/internal/app/executor"
	"github.com/okazaki-dev/retriage/internal/app/state"
	"github.com/okazaki-dev/retriage/internal/domain/action"
	"github.com/okazaki-dev/retriage/internal/domain/plan"
	"github.com/okazaki-dev/retriage/internal/domain/review"
	"github.com/okazaki-dev/retriage/internal/infra/lock"
	"github.com/okazaki-dev/retriage/internal/interface/external/ghcli"
	planvalidator "github.com/okazaki-dev/retriage/internal/validator/plan"
)

func newApplyCmd() *cobra.Command {
	var planPath, worktree string
	var dryRun, overrideGates bool

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Validate a plan, run gates, execute pending actions, and record outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := globalConfig
			start := time.Now()

			result, p, err := planvalidator.ValidateFile(planPath)
			if err != nil {
				for _, issue := range result.Issues {
					stderrLogger.Error("plan: %s", issue.Message)
				}
				return err
			}

			// Gates only run when a worktree is available; otherwise the
			// plan's recorded gate results stand.
			if worktree != "" {
				if _, err := runGatePipeline(cmd, worktree, planPath); err != nil {
					return err
				}
				// Re-read so execution sees the persisted gate results.
				if p, err = plan.Load(planPath); err != nil {
					return err
				}
			}

			locks := lock.NewManager(cfg.LockTimeout, cfg.LockTTL)
			store := state.NewStore(afero.NewOsFs(), locks, cfg.StatePath())
			if err := store.Init(); err != nil {
				return err
			}

			exec := &executor.Executor{
				Host:          ghcli.New(cfg.GHBin, cfg.GHTimeout),
				Log:           actionlog.New(cfg.ActionLogPath(), locks),
				DryRun:        cfg.DryRun || dryRun,
				OverrideGates: cfg.OverrideGates || overrideGates,
			}

			execRes, execErr := exec.Execute(cmd.Context(), p)
			printExecResult(cmd, execRes)

			if exec.DryRun {
				stderrLogger.Info("dry-run: outcomes not recorded")
				return execErr
			}

			if err := recordOutcomes(store, p, execRes, time.Since(start)); err != nil {
				return err
			}
			return execErr
		},
	}

	cmd.Flags().StringVar(&planPath, "plan", "", "review plan file (required)")
	cmd.Flags().StringVar(&worktree, "worktree", "", "worktree to run gates in; skip gates when empty")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log intended actions without dispatching")
	cmd.Flags().BoolVar(&overrideGates, "override-gates", false, "dispatch even when quality gates failed")
	cmd.MarkFlagRequired("plan")
	return cmd
}

// recordOutcomes upserts per-item, per-repo, and per-run records. Each
// record call is individually atomic; the state lock and the action log
// lock are never held together.
func recordOutcomes(store *state.Store, p *plan.ReviewPlan, res *executor.Result, elapsed time.Duration) error {
	failedTargets := map[string]bool{}
	blocked := res.Blocked
	for _, ar := range res.Actions {
		if ar.Status == executor.StatusFailed {
			failedTargets[ar.Action.Target] = true
		}
	}

	itemsOK, itemsFailed := 0, 0
	for _, it := range p.Items {
		outcome := review.OutcomeOK
		notes := it.Decision
		switch {
		case blocked:
			outcome = review.OutcomeBlocked
			notes = "quality gates blocked actions"
		case itemFailed(it, failedTargets):
			outcome = review.OutcomeFailed
		}
		if outcome == review.OutcomeOK {
			itemsOK++
		} else {
			itemsFailed++
		}
		if err := store.RecordItemOutcome(p.Repo, it, outcome, notes); err != nil {
			return err
		}
	}

	repoOutcome := review.OutcomeCompleted
	switch {
	case blocked:
		repoOutcome = review.OutcomeBlocked
	case res.Failed > 0 && res.Dispatched > 0:
		repoOutcome = review.OutcomePartial
	case res.Failed > 0:
		repoOutcome = review.OutcomeFailed
	}
	if err := store.RecordRepoOutcome(p.Repo, repoOutcome, elapsed, itemsOK, itemsFailed); err != nil {
		return err
	}

	return store.RecordRunCompletion(p.RunID, 1, itemsOK, itemsFailed)
}

// itemFailed reports whether any failed action targeted this item.
func itemFailed(it plan.ReviewItem, failedTargets map[string]bool) bool {
	for target := range failedTargets {
		tgt, err := action.ParseTarget(target)
		if err != nil {
			continue
		}
		if tgt.Kind == it.Type && tgt.Number == it.Number {
			return true
		}
	}
	return false
}

func printExecResult(cmd *cobra.Command, res *executor.Result) {
	out := cmd.OutOrStdout()
	if res.Blocked {
		fmt.Fprintf(out, "%s: blocked by quality gates (%d actions held)\n", res.Repo, len(res.Actions))
		return
	}
	for _, ar := range res.Actions {
		switch ar.Status {
		case executor.StatusFailed:
			fmt.Fprintf(out, "  %-10s %s %s: %v\n", ar.Status, ar.Action.Op, ar.Action.Target, ar.Err)
		default:
			fmt.Fprintf(out, "  %-10s %s %s\n", ar.Status, ar.Action.Op, ar.Action.Target)
		}
	}
	fmt.Fprintf(out, "%s: dispatched=%d skipped=%d failed=%d\n",
		res.Repo, res.Dispatched, res.Skipped, res.Failed)
}

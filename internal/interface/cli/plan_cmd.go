package cli

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/okazaki-dev/retriage/internal/domain/plan"
)

func newPlanCmd() *cobra.Command {
	var repo, out string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Scaffold an empty review plan with a fresh run id",
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := newRunID()
			p := &plan.ReviewPlan{
				SchemaVersion: plan.SchemaVersion1,
				Repo:          repo,
				RunID:         runID,
				Items:         []plan.ReviewItem{},
				Actions:       []plan.PendingAction{},
			}
			if err := plan.Save(out, p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (run %s)\n", out, runID)
			return nil
		},
	}

	cmd.Flags().StringVar(&repo, "repo", "", "repository id <owner>/<name> (required)")
	cmd.Flags().StringVar(&out, "out", "plan.json", "output path")
	cmd.MarkFlagRequired("repo")
	return cmd
}

// newRunID returns a lexicographically sortable run id.
func newRunID() string {
	t := time.Now().UTC()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

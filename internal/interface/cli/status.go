package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/okazaki-dev/retriage/internal/app/state"
	"github.com/okazaki-dev/retriage/internal/infra/lock"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show recorded repo and run outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := globalConfig

			locks := lock.NewManager(cfg.LockTimeout, cfg.LockTTL)
			store := state.NewStore(afero.NewOsFs(), locks, cfg.StatePath())
			st, err := store.Load()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(st.Repos) == 0 && len(st.Runs) == 0 {
				fmt.Fprintln(out, "no recorded outcomes")
				return nil
			}

			repos := make([]string, 0, len(st.Repos))
			for r := range st.Repos {
				repos = append(repos, r)
			}
			sort.Strings(repos)

			fmt.Fprintf(out, "repos (%d):\n", len(repos))
			for _, r := range repos {
				rec := st.Repos[r]
				fmt.Fprintf(out, "  %-40s %-10s ok=%d failed=%d last=%s\n",
					r, rec.Outcome, rec.ItemsOK, rec.ItemsFailed, rec.LastReview)
			}

			runs := make([]string, 0, len(st.Runs))
			for r := range st.Runs {
				runs = append(runs, r)
			}
			sort.Strings(runs)

			fmt.Fprintf(out, "runs (%d):\n", len(runs))
			for _, r := range runs {
				rec := st.Runs[r]
				fmt.Fprintf(out, "  %-30s repos=%d ok=%d failed=%d completed=%s\n",
					r, rec.ReposProcessed, rec.ItemsOK, rec.ItemsFailed, rec.CompletedAt)
			}
			return nil
		},
	}
}

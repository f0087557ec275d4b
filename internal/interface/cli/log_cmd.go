package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okazaki-dev/retriage/internal/app/actionlog"
	"github.com/okazaki-dev/retriage/internal/infra/lock"
)

func newLogCmd() *cobra.Command {
	var repo string

	cmd := &cobra.Command{
		Use:   "log",
		Short: "List executed actions from the dedup log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := globalConfig

			locks := lock.NewManager(cfg.LockTimeout, cfg.LockTTL)
			l := actionlog.New(cfg.ActionLogPath(), locks)
			entries, err := l.Entries(repo)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "no logged actions")
				return nil
			}
			for _, e := range entries {
				status := "ok"
				if !e.OK {
					status = "FAILED"
				}
				override := ""
				if e.Override {
					override = " override"
				}
				fmt.Fprintf(out, "%s %-8s %-7s %-12s %s run=%s%s\n",
					e.TS, e.Op, status, e.Target, e.Repo, e.RunID, override)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&repo, "repo", "", "only show entries for this repo")
	return cmd
}

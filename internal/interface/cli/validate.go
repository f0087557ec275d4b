package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	planvalidator "github.com/okazaki-dev/retriage/internal/validator/plan"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <plan.json>",
		Short: "Validate a review plan document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, p, err := planvalidator.ValidateFile(args[0])
			for _, issue := range result.Issues {
				if issue.Field != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s: %s\n", issue.Type, issue.Field, issue.Message)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", issue.Type, issue.Message)
				}
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "plan valid: repo=%s run=%s items=%d actions=%d\n",
				p.Repo, p.RunID, len(p.Items), len(p.Actions))
			return nil
		},
	}
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func negotiateCmd(g *globalFlags) *cobra.Command {
	var (
		objectives []string
		params     map[string]string
	)

	cmd := &cobra.Command{
		Use:   "negotiate <proposal.yaml>",
		Short: "Find Pareto-optimal trade-offs between objectives",
		Long: `Score every evaluator suggestion against each objective and print the
Pareto frontier with the best compromise as JSON. Objectives default to
the objectives listed in the proposal file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.loadCouncil()
			if err != nil {
				return err
			}
			spec, p, err := loadProposal(args[0])
			if err != nil {
				return err
			}
			if len(objectives) == 0 {
				objectives = spec.Objectives
			}
			res, err := c.Negotiate(cmd.Context(), p, objectives, parseParams(params))
			if err != nil {
				return fmt.Errorf("negotiate %s: %w", spec.ID, err)
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringSliceVarP(&objectives, "objective", "o", nil, "objective to optimize (repeatable, at least two)")
	cmd.Flags().StringToStringVar(&params, "param", nil, "context parameter passed to evaluators (key=value, JSON values allowed)")
	return cmd
}

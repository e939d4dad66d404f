package cli

import (
	"github.com/spf13/cobra"
	"github.com/stingtools/council/core"
)

func reviewCmd(g *globalFlags) *cobra.Command {
	var params map[string]string

	cmd := &cobra.Command{
		Use:   "review <proposal.yaml>",
		Short: "Score a proposal to consensus",
		Long: `Run consensus rounds over the proposal and print the consensus result
as JSON. Evaluators see the scores of their peers between rounds.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.loadCouncil()
			if err != nil {
				return err
			}
			_, p, err := loadProposal(args[0])
			if err != nil {
				return err
			}
			res, err := c.GetConsensus(cmd.Context(), p, core.EvaluationContext{Parameters: parseParams(params)})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringToStringVar(&params, "param", nil, "context parameter passed to evaluators (key=value, JSON values allowed)")
	return cmd
}

func suggestCmd(g *globalFlags) *cobra.Command {
	var (
		params    map[string]string
		consensus bool
	)

	cmd := &cobra.Command{
		Use:   "suggest <proposal.yaml>",
		Short: "Rank improvement suggestions for a proposal",
		Long: `Collect suggestions from every active evaluator and print them ranked by
priority, then confidence times impact. With --consensus the suggestions
are informed by a consensus computed first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.loadCouncil()
			if err != nil {
				return err
			}
			_, p, err := loadProposal(args[0])
			if err != nil {
				return err
			}
			sc := core.SuggestionContext{Proposal: p, Parameters: parseParams(params)}
			if consensus {
				res, err := c.GetConsensus(cmd.Context(), p, core.EvaluationContext{Parameters: sc.Parameters})
				if err != nil {
					return err
				}
				sc.Consensus = res
			}
			suggestions, err := c.CollectSuggestions(cmd.Context(), sc)
			if err != nil {
				return err
			}
			if suggestions == nil {
				suggestions = []core.Suggestion{}
			}
			return writeJSON(cmd.OutOrStdout(), suggestions)
		},
	}

	cmd.Flags().StringToStringVar(&params, "param", nil, "context parameter passed to evaluators (key=value, JSON values allowed)")
	cmd.Flags().BoolVar(&consensus, "consensus", false, "compute consensus first and pass it to evaluators")
	return cmd
}

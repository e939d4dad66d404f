package cli

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/stingtools/council/internal/fixture"
)

// ErrActionRejected is returned by validate when the action is not valid, so
// the process exits non-zero.
var ErrActionRejected = errors.New("action rejected")

func validateCmd(g *globalFlags) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate <proposal.yaml> <action.yaml>",
		Short: "Check whether an action on a proposal is acceptable",
		Long: `Ask every active evaluator to validate the action against the proposal
and print the merged validation result as JSON. With --strict a rejected
action makes the command fail.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.loadCouncil()
			if err != nil {
				return err
			}
			_, p, err := loadProposal(args[0])
			if err != nil {
				return err
			}
			spec, err := fixture.LoadActionFile(args[1])
			if err != nil {
				return err
			}
			res, err := c.ValidateAction(cmd.Context(), spec.Action(p))
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if strict && !res.Valid {
				return ErrActionRejected
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "exit with an error when the action is rejected")
	return cmd
}

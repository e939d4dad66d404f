package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/stingtools/council/internal/fixture"
	"github.com/stingtools/council/session"
)

func refineCmd(g *globalFlags) *cobra.Command {
	var (
		maxIterations int
		perIteration  int
		outPath       string
		params        map[string]string
	)

	cmd := &cobra.Command{
		Use:   "refine <proposal.yaml>",
		Short: "Iteratively improve a proposal until it is approved",
		Long: `Start a refinement session: every iteration computes consensus, collects
suggestions and applies the top ranked modifications, until the panel
approves the proposal or the iteration cap is reached.

The session result is printed as JSON. With --out the final proposal is
also written as a proposal document that review accepts again.`,
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

			res, runErr := c.Refine(cmd.Context(), p, func(o *session.Options) {
				if maxIterations > 0 {
					o.MaxIterations = maxIterations
				}
				if perIteration > 0 {
					o.SuggestionsPerIteration = perIteration
				}
				if len(params) > 0 {
					o.Parameters = parseParams(params)
				}
			})
			if res == nil {
				return runErr
			}
			if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}

			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create %s: %w", outPath, err)
				}
				defer f.Close()
				if err := fixture.DumpProposal(f, p); err != nil {
					return err
				}
			}
			return runErr
		},
	}

	cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "override session.max_iterations")
	cmd.Flags().IntVar(&perIteration, "suggestions-per-iteration", 0, "override session.suggestions_per_iteration")
	cmd.Flags().StringVar(&outPath, "out", "", "write the refined proposal to this file")
	cmd.Flags().StringToStringVar(&params, "param", nil, "context parameter passed to evaluators (key=value, JSON values allowed)")
	return cmd
}

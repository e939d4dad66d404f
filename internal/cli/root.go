// Package cli implements the council command line.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/stingtools/council"
	"github.com/stingtools/council/config"
	"github.com/stingtools/council/core"
	"github.com/stingtools/council/internal/fixture"
)

// ErrNoEvaluators is returned when neither the config nor --profiles
// describes an evaluator.
var ErrNoEvaluators = errors.New("no evaluators configured: use --profiles or the evaluators config key")

type globalFlags struct {
	configPath   string
	profilesPath string
	logLevel     string
}

// NewRootCmd builds the council command tree.
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "council",
		Short: "Multi-specialist design review",
		Long: `Council runs a panel of specialist evaluators over a building design
proposal. The panel can score a proposal to consensus, rank improvement
suggestions, validate a single change, negotiate trade-offs between
objectives or refine the proposal iteratively until it is approved.

Evaluators come from the evaluators key of the config file or from a
separate profiles document passed with --profiles.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "config file (default is ./council.yaml or $XDG_CONFIG_HOME/council/council.yaml)")
	root.PersistentFlags().StringVarP(&g.profilesPath, "profiles", "p", "", "evaluator profiles file, replaces configured evaluators")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "override logging.level")

	root.AddCommand(reviewCmd(g))
	root.AddCommand(suggestCmd(g))
	root.AddCommand(validateCmd(g))
	root.AddCommand(negotiateCmd(g))
	root.AddCommand(refineCmd(g))
	return root
}

// loadCouncil resolves configuration and profiles into a ready council.
func (g *globalFlags) loadCouncil() (*council.Council, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	if g.profilesPath != "" {
		profiles, err := fixture.LoadProfilesFile(g.profilesPath)
		if err != nil {
			return nil, err
		}
		cfg.Evaluators = profiles
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, config.ValidationErrors(errs)
	}
	if len(cfg.Evaluators) == 0 {
		return nil, ErrNoEvaluators
	}

	c, err := council.FromConfig(cfg, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("build council: %w", err)
	}
	return c, nil
}

func loadProposal(path string) (fixture.ProposalSpec, *core.DesignProposal, error) {
	spec, err := fixture.LoadProposalFile(path)
	if err != nil {
		return fixture.ProposalSpec{}, nil, err
	}
	return spec, spec.Proposal(), nil
}

func parseParams(pairs map[string]string) map[string]any {
	if len(pairs) == 0 {
		return nil
	}
	out := make(map[string]any, len(pairs))
	for k, v := range pairs {
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err == nil {
			out[k] = decoded
		} else {
			out[k] = v
		}
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

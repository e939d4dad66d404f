package coordinator

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/stingtools/council/core"
)

const (
	// AlignmentBonus multiplies an objective score when the evaluator's
	// specialty is aligned with the objective.
	AlignmentBonus = 1.3
	// KeywordBonus multiplies an objective score when the objective name
	// appears in the suggestion's title or description.
	KeywordBonus = 1.2
)

// alignedSpecialties maps a lower-cased objective name to the specialties
// whose suggestions naturally serve it.
var alignedSpecialties = map[string][]core.Specialty{
	"cost":           {core.SpecialtyCost},
	"safety":         {core.SpecialtySafety, core.SpecialtyStructural, core.SpecialtyFire},
	"sustainability": {core.SpecialtySustainability, core.SpecialtyMechanical},
	"accessibility":  {core.SpecialtyAccessibility, core.SpecialtyCodeCompliance},
	"aesthetics":     {core.SpecialtyAesthetic, core.SpecialtySpatial},
	"aesthetic":      {core.SpecialtyAesthetic, core.SpecialtySpatial},
	"comfort":        {core.SpecialtyAcoustic, core.SpecialtyMechanical, core.SpecialtySpatial},
	"compliance":     {core.SpecialtyCodeCompliance, core.SpecialtyFire, core.SpecialtyAccessibility},
	"performance":    {core.SpecialtyStructural, core.SpecialtyMechanical, core.SpecialtyElectrical},
}

// Aligned reports whether specialty is aligned with objective.
func Aligned(objective string, specialty core.Specialty) bool {
	for _, s := range alignedSpecialties[strings.ToLower(strings.TrimSpace(objective))] {
		if s == specialty {
			return true
		}
	}
	return false
}

// ObjectiveScore scores suggestion s, offered by an evaluator of the given
// specialty, against one objective:
//
//	clamp(confidence × impact × alignment bonus × keyword bonus, ≤ 1)
func ObjectiveScore(objective string, specialty core.Specialty, s core.Suggestion) float64 {
	score := s.Rank()
	if Aligned(objective, specialty) {
		score *= AlignmentBonus
	}
	text := strings.ToLower(s.Title + " " + s.Description)
	if kw := strings.ToLower(strings.TrimSpace(objective)); kw != "" && strings.Contains(text, kw) {
		score *= KeywordBonus
	}
	return math.Min(score, 1.0)
}

// Negotiate collects suggestions from every active evaluator, scores each
// against every objective and returns the Pareto frontier with a best
// compromise. Fewer than two distinct objectives is a contract error.
func (c *Coordinator) Negotiate(ctx context.Context, proposal *core.DesignProposal, objectives []string, params map[string]any) (*core.ParetoNegotiationResult, error) {
	objectives = distinctObjectives(objectives)
	if len(objectives) < 2 {
		return nil, core.ErrTooFewObjectives
	}
	if proposal == nil {
		return nil, core.ErrNilProposal
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &core.ParetoNegotiationResult{Objectives: objectives}
	if len(c.active()) == 0 {
		res.Status = core.NegotiationNoAgents
		c.logger.Info("negotiation skipped: no active evaluators", "proposal_id", proposal.ID())
		return res, nil
	}

	replies := c.suggest(ctx, core.SuggestionContext{Proposal: proposal, Parameters: params})
	for _, r := range replies {
		for _, s := range r.value {
			sp := core.ScoredProposal{
				ID:          s.ID,
				EvaluatorID: r.evaluator.ID(),
				Specialty:   r.evaluator.Specialty(),
				Suggestion:  s,
				Scores:      make(map[string]float64, len(objectives)),
			}
			for _, o := range objectives {
				sp.Scores[o] = ObjectiveScore(o, sp.Specialty, s)
			}
			res.Proposals = append(res.Proposals, sp)
		}
	}

	if len(res.Proposals) == 0 {
		res.Status = core.NegotiationNoFeasible
		c.logger.Info("negotiation found no proposals", "proposal_id", proposal.ID(), "evaluators", len(replies))
		return res, nil
	}

	res.Frontier = ParetoFrontier(res.Proposals, objectives)
	res.BestCompromise = BestCompromise(res.Frontier, objectives)
	res.DominatedCount = len(res.Proposals) - len(res.Frontier)
	res.Status = core.NegotiationFrontierFound

	c.logger.Info("negotiation completed",
		"proposal_id", proposal.ID(), "proposals", len(res.Proposals),
		"frontier", len(res.Frontier), "dominated", res.DominatedCount)
	return res, nil
}

func distinctObjectives(objectives []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(objectives))
	for _, o := range objectives {
		o = strings.TrimSpace(o)
		key := strings.ToLower(o)
		if o == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, o)
	}
	return out
}

// Dominates reports whether a dominates b: a scores at least as high on every
// objective and strictly higher on at least one. Missing scores count as 0.
func Dominates(a, b core.ScoredProposal, objectives []string) bool {
	strict := false
	for _, o := range objectives {
		sa, sb := a.Scores[o], b.Scores[o]
		if sa < sb {
			return false
		}
		if sa > sb {
			strict = true
		}
	}
	return strict
}

// ParetoFrontier returns the proposals no other proposal dominates, sorted by
// average score descending and then by id, so the result does not depend on
// input order.
func ParetoFrontier(proposals []core.ScoredProposal, objectives []string) []core.ScoredProposal {
	var frontier []core.ScoredProposal
	for i, p := range proposals {
		dominated := false
		for j, q := range proposals {
			if i != j && Dominates(q, p, objectives) {
				dominated = true
				break
			}
		}
		if !dominated {
			frontier = append(frontier, p)
		}
	}
	sort.SliceStable(frontier, func(i, j int) bool {
		ai, aj := frontier[i].AverageScore(), frontier[j].AverageScore()
		if ai != aj {
			return ai > aj
		}
		return frontier[i].ID < frontier[j].ID
	})
	return frontier
}

// BestCompromise returns the frontier member closest, in Euclidean distance,
// to the ideal point made of the per-objective maxima across the frontier.
// It returns nil for an empty frontier. Ties keep frontier order.
func BestCompromise(frontier []core.ScoredProposal, objectives []string) *core.ScoredProposal {
	switch len(frontier) {
	case 0:
		return nil
	case 1:
		best := frontier[0]
		return &best
	}

	ideal := make(map[string]float64, len(objectives))
	for _, o := range objectives {
		for _, p := range frontier {
			if v := p.Scores[o]; v > ideal[o] {
				ideal[o] = v
			}
		}
	}

	bestIdx, bestDist := 0, math.Inf(1)
	for i, p := range frontier {
		if d := p.DistanceTo(ideal, objectives); d < bestDist {
			bestIdx, bestDist = i, d
		}
	}
	best := frontier[bestIdx]
	return &best
}

package evaluator

import (
	"context"
	"fmt"
	"slices"

	"github.com/stingtools/council/core"
	"github.com/stingtools/council/logging"
)

// RuleEvaluatorOptions configures a RuleEvaluator.
type RuleEvaluatorOptions struct {
	ID              string
	Name            string
	ExpertiseWeight float64
	// Confidence is reported on every opinion.
	Confidence float64
	// Deference in [0,1] is how far peer feedback pulls the next score
	// toward the peers' mean. 0 ignores feedback.
	Deference float64
	Logger    logging.Logger
}

// DefaultRuleEvaluatorOptions are applied before option functions.
var DefaultRuleEvaluatorOptions = RuleEvaluatorOptions{
	ExpertiseWeight: 0.8,
	Confidence:      0.85,
}

// RuleEvaluator scores proposals with a fixed rule set.
//
// The score is 1 minus the summed SeverityPenalty of every issue, clamped to
// [0,1]. AspectScores carry the same computation per rule domain.
type RuleEvaluator struct {
	*Base
	rules      []Rule
	confidence float64
	deference  float64
	logger     logging.Logger
}

var _ core.Evaluator = (*RuleEvaluator)(nil)

// NewRuleEvaluator creates a rule-backed evaluator for specialty.
func NewRuleEvaluator(specialty core.Specialty, rules []Rule, optFns ...func(o *RuleEvaluatorOptions)) *RuleEvaluator {
	opts := DefaultRuleEvaluatorOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	return &RuleEvaluator{
		Base:       NewBase(opts.ID, opts.Name, specialty, opts.ExpertiseWeight),
		rules:      slices.Clone(rules),
		confidence: core.Clamp01(opts.Confidence),
		deference:  core.Clamp01(opts.Deference),
		logger:     logging.OrNoOp(opts.Logger),
	}
}

// Rules returns a copy of the rule set.
func (e *RuleEvaluator) Rules() []Rule { return slices.Clone(e.rules) }

type finding struct {
	rule  Rule
	issue core.Issue
}

func (e *RuleEvaluator) check(p *core.DesignProposal) []finding {
	var out []finding
	for _, r := range e.rules {
		for _, is := range r.Check(p) {
			if is.Code == "" {
				is.Code = r.Code()
			}
			if is.Domain == "" {
				is.Domain = r.Domain()
			}
			out = append(out, finding{rule: r, issue: is})
		}
	}
	return out
}

// Evaluate implements core.Evaluator.
func (e *RuleEvaluator) Evaluate(ctx context.Context, proposal *core.DesignProposal, ec core.EvaluationContext) (*core.Opinion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if proposal == nil {
		return nil, core.ErrNilProposal
	}

	findings := e.check(proposal)
	penalty := 0.0
	aspects := map[string]float64{}
	for _, r := range e.rules {
		aspects[domainOf(r.Domain())] = 1
	}
	failed := map[string]bool{}
	issues := make([]core.Issue, 0, len(findings))
	for _, f := range findings {
		p := SeverityPenalty(f.issue.Severity)
		penalty += p
		d := f.issue.DomainOrDefault()
		if _, ok := aspects[d]; !ok {
			aspects[d] = 1
		}
		aspects[d] = core.Clamp01(aspects[d] - p)
		failed[f.rule.Code()] = true
		issues = append(issues, f.issue)
	}

	raw := core.Clamp01(1 - penalty)
	score := raw
	peers := e.TakeFeedback()
	if mean, ok := meanScore(peers); ok && e.deference > 0 {
		score = core.Clamp01(raw + e.deference*(mean-raw))
	}

	op := core.NewOpinion(e, score, e.confidence)
	op.Round = ec.Round
	op.Issues = issues
	op.AspectScores = aspects
	for _, r := range e.rules {
		if !failed[r.Code()] {
			op.Strengths = append(op.Strengths, r.Code()+" satisfied")
		}
	}
	op.Summary = fmt.Sprintf("%d issue(s) across %d rule(s)", len(issues), len(e.rules))

	e.logger.Debug("rule evaluation",
		"evaluator_id", e.ID(),
		"proposal_id", proposal.ID(),
		"round", ec.Round,
		"issues", len(issues),
		"raw_score", raw,
		"score", score,
		"peers", len(peers),
	)
	return op, nil
}

// Suggest implements core.Evaluator by asking each Remedy rule to fix its
// current findings.
func (e *RuleEvaluator) Suggest(ctx context.Context, sc core.SuggestionContext) ([]core.Suggestion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if sc.Proposal == nil {
		return nil, core.ErrNilProposal
	}
	var out []core.Suggestion
	for _, f := range e.check(sc.Proposal) {
		remedy, ok := f.rule.(Remedy)
		if !ok {
			continue
		}
		if s, ok := remedy.Remedy(sc.Proposal, f.issue); ok {
			s.EvaluatorID = e.ID()
			s.Specialty = e.Specialty()
			out = append(out, s)
		}
	}
	return out, nil
}

// Validate implements core.Evaluator. The action's modification is applied
// to a clone of its proposal; the action is invalid if the modification does
// not apply or the result has a blocking issue.
func (e *RuleEvaluator) Validate(ctx context.Context, action core.Action) (core.ValidationResult, error) {
	if err := ctx.Err(); err != nil {
		return core.ValidationResult{}, err
	}
	if action.Proposal == nil {
		return core.ValidationResult{Valid: true, Warnings: []string{"no proposal attached to action " + action.Type}}, nil
	}

	candidate := action.Proposal
	if action.Modification != nil {
		candidate = action.Proposal.Clone()
		if _, err := candidate.Apply(*action.Modification, e.ID()); err != nil {
			return core.ValidationResult{
				Valid: false,
				Issues: []core.Issue{{
					Code:        "MODIFICATION_REJECTED",
					Description: err.Error(),
					Severity:    core.SeverityError,
					Domain:      action.Target,
				}},
			}, nil
		}
	}

	res := core.ValidationResult{Valid: true}
	for _, f := range e.check(candidate) {
		if f.issue.Severity.IsBlocking() {
			res.Valid = false
			res.Issues = append(res.Issues, f.issue)
			continue
		}
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %s", f.issue.Code, f.issue.Description))
	}
	return res, nil
}

func domainOf(d string) string {
	return core.Issue{Domain: d}.DomainOrDefault()
}

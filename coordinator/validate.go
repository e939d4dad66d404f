package coordinator

import (
	"context"

	"github.com/stingtools/council/core"
)

// ValidateAction asks every active evaluator whether action may proceed.
//
// The action is valid only if every evaluator that answered says so. Issues
// are unioned by Issue.Key and warnings are unioned without duplicates. An
// evaluator that fails or times out is skipped, so validation fails open.
// With no active evaluators the action is valid.
//
// Evaluators are queried one at a time unless Config.ParallelValidation is set.
func (c *Coordinator) ValidateAction(ctx context.Context, action core.Action) (core.ValidationResult, error) {
	if err := ctx.Err(); err != nil {
		return core.ValidationResult{}, err
	}

	validate := func(ctx context.Context, e core.Evaluator) (core.ValidationResult, error) {
		return e.Validate(ctx, action)
	}

	evaluators := c.active()
	var votes []reply[core.ValidationResult]
	if c.config.ParallelValidation {
		votes = fanOut(ctx, c, "validate", evaluators, validate)
	} else {
		for _, e := range evaluators {
			if v, ok := invoke(ctx, c, "validate", e, validate); ok {
				votes = append(votes, reply[core.ValidationResult]{evaluator: e, value: v})
			}
		}
	}

	out := core.ValidationResult{Valid: true}
	seenIssue := map[string]bool{}
	seenWarning := map[string]bool{}
	for _, v := range votes {
		if !v.value.Valid {
			out.Valid = false
			c.logger.Debug("action rejected", "evaluator_id", v.evaluator.ID(), "action", action.Type, "target", action.Target)
		}
		for _, is := range v.value.Issues {
			if !seenIssue[is.Key()] {
				seenIssue[is.Key()] = true
				out.Issues = append(out.Issues, is)
			}
		}
		for _, w := range v.value.Warnings {
			if !seenWarning[w] {
				seenWarning[w] = true
				out.Warnings = append(out.Warnings, w)
			}
		}
	}

	c.logger.Info("action validated",
		"action", action.Type, "target", action.Target, "valid", out.Valid,
		"votes", len(votes), "evaluators", len(evaluators))
	return out, nil
}

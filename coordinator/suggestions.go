package coordinator

import (
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/stingtools/council/core"
)

// CollectSuggestions asks every active evaluator for suggestions in parallel
// and merges the answers.
//
// Suggestions are deduplicated by case-insensitive title, keeping the variant
// with the highest confidence × impact, then sorted by that rank descending
// and truncated to Config.MaxSuggestions. Missing ids are generated and every
// suggestion is stamped with the evaluator that offered it.
func (c *Coordinator) CollectSuggestions(ctx context.Context, sc core.SuggestionContext) ([]core.Suggestion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	replies := c.suggest(ctx, sc)

	var merged []core.Suggestion
	byTitle := map[string]int{}
	for _, r := range replies {
		for _, s := range r.value {
			key := strings.ToLower(strings.TrimSpace(s.Title))
			if pos, ok := byTitle[key]; ok {
				if s.Rank() > merged[pos].Rank() {
					merged[pos] = s
				}
				continue
			}
			byTitle[key] = len(merged)
			merged = append(merged, s)
		}
	}

	core.SortByRank(merged)
	if len(merged) > c.config.MaxSuggestions {
		merged = merged[:c.config.MaxSuggestions]
	}

	c.logger.Debug("suggestions collected", "evaluators", len(replies), "suggestions", len(merged))
	return merged, nil
}

// suggest fans Suggest out and stamps provenance and ids on a copy of every
// answer. The evaluator's own slice is never written.
func (c *Coordinator) suggest(ctx context.Context, sc core.SuggestionContext) []reply[[]core.Suggestion] {
	replies := fanOut(ctx, c, "suggest", c.active(), func(ctx context.Context, e core.Evaluator) ([]core.Suggestion, error) {
		return e.Suggest(ctx, sc)
	})
	for n := range replies {
		r := &replies[n]
		r.value = slices.Clone(r.value)
		for i := range r.value {
			s := &r.value[i]
			if s.ID == "" {
				s.ID = uuid.NewString()
			}
			if s.EvaluatorID == "" {
				s.EvaluatorID = r.evaluator.ID()
			}
			if !s.Specialty.Valid() {
				s.Specialty = r.evaluator.Specialty()
			}
		}
	}
	return replies
}

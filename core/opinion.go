package core

import "time"

// PositiveScore is the score at or above which an opinion counts as positive.
const PositiveScore = 0.7

// Issue is a single finding raised by an evaluator.
type Issue struct {
	Code        string   `json:"code,omitempty" yaml:"code,omitempty"`
	Description string   `json:"description" yaml:"description"`
	Severity    Severity `json:"severity" yaml:"severity"`
	// Domain is the tag used to find which specialty has authority over the issue.
	Domain   string `json:"domain,omitempty" yaml:"domain,omitempty"`
	Location string `json:"location,omitempty" yaml:"location,omitempty"`
	Standard string `json:"standard,omitempty" yaml:"standard,omitempty"`
}

// Key is the deduplication key: the code, or the description when no code is set.
func (i Issue) Key() string {
	if i.Code != "" {
		return i.Code
	}
	return i.Description
}

// DomainOrDefault returns the issue's domain, or "General" when unset.
func (i Issue) DomainOrDefault() string {
	if i.Domain == "" {
		return "General"
	}
	return i.Domain
}

// Opinion is one evaluator's judgment of a proposal.
type Opinion struct {
	EvaluatorID   string    `json:"evaluator_id"`
	EvaluatorName string    `json:"evaluator_name,omitempty"`
	Specialty     Specialty `json:"specialty"`
	// Score is the overall rating in [0,1].
	Score        float64            `json:"score"`
	Confidence   float64            `json:"confidence"`
	Issues       []Issue            `json:"issues,omitempty"`
	Strengths    []string           `json:"strengths,omitempty"`
	AspectScores map[string]float64 `json:"aspect_scores,omitempty"`
	Summary      string             `json:"summary,omitempty"`
	Round        int                `json:"round,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}

// NewOpinion builds an opinion for the given evaluator, clamping score and
// confidence into [0,1].
func NewOpinion(e Evaluator, score, confidence float64) *Opinion {
	return &Opinion{
		EvaluatorID:   e.ID(),
		EvaluatorName: e.Name(),
		Specialty:     e.Specialty(),
		Score:         Clamp01(score),
		Confidence:    Clamp01(confidence),
		AspectScores:  map[string]float64{},
		CreatedAt:     time.Now(),
	}
}

// Normalize clamps score and confidence into [0,1]. The coordinator calls it
// on every opinion it accepts so third-party evaluators cannot break the
// score invariant.
func (o *Opinion) Normalize() {
	o.Score = Clamp01(o.Score)
	o.Confidence = Clamp01(o.Confidence)
}

// IsPositive reports whether the score is at least PositiveScore.
func (o Opinion) IsPositive() bool { return o.Score >= PositiveScore }

// HasCriticalIssues reports whether any issue is Major or Critical.
func (o Opinion) HasCriticalIssues() bool {
	for _, is := range o.Issues {
		if is.Severity.IsCritical() {
			return true
		}
	}
	return false
}

// Domains returns the distinct issue domains of the opinion in first-seen order.
func (o Opinion) Domains() []string {
	seen := map[string]bool{}
	var out []string
	for _, is := range o.Issues {
		d := is.DomainOrDefault()
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}

package core

import "sort"

// Suggestion is an improvement offered by an evaluator. Its Modifications are
// applied in order when a session accepts it.
type Suggestion struct {
	ID            string         `json:"id,omitempty" yaml:"id,omitempty"`
	Title         string         `json:"title" yaml:"title"`
	Description   string         `json:"description,omitempty" yaml:"description,omitempty"`
	Category      string         `json:"category,omitempty" yaml:"category,omitempty"`
	Confidence    float64        `json:"confidence" yaml:"confidence"`
	Impact        float64        `json:"impact" yaml:"impact"`
	Priority      Priority       `json:"priority" yaml:"priority"`
	Modifications []Modification `json:"modifications,omitempty" yaml:"modifications,omitempty"`
	Prerequisites []string       `json:"prerequisites,omitempty" yaml:"prerequisites,omitempty"`
	EvaluatorID   string         `json:"evaluator_id,omitempty" yaml:"-"`
	Specialty     Specialty      `json:"specialty,omitempty" yaml:"-"`
}

// Rank is the ordering key used for ranking: confidence × impact.
func (s Suggestion) Rank() float64 {
	return Clamp01(s.Confidence) * Clamp01(s.Impact)
}

// SortByRank orders suggestions by Rank descending. The sort is stable so
// equal ranks keep their relative order.
func SortByRank(s []Suggestion) {
	sort.SliceStable(s, func(i, j int) bool { return s[i].Rank() > s[j].Rank() })
}

// SortByPriority orders suggestions by Priority descending, then Rank descending.
func SortByPriority(s []Suggestion) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].Priority != s[j].Priority {
			return s[i].Priority > s[j].Priority
		}
		return s[i].Rank() > s[j].Rank()
	})
}

package core

import "context"

// Evaluator is a specialist scoped to one Specialty that judges proposals.
//
// Implementations must be safe for concurrent use: the coordinator fans every
// operation out to all active evaluators in parallel and may deliver feedback
// while another evaluator is still evaluating. Every blocking method must
// honour ctx cancellation; the coordinator bounds each call with a timeout.
type Evaluator interface {
	ID() string
	Name() string
	Specialty() Specialty
	// ExpertiseWeight is the evaluator's weight in [0,1] for score aggregation.
	ExpertiseWeight() float64
	IsActive() bool

	Evaluate(ctx context.Context, proposal *DesignProposal, ec EvaluationContext) (*Opinion, error)
	Suggest(ctx context.Context, sc SuggestionContext) ([]Suggestion, error)
	// ReceiveFeedback delivers another evaluator's opinion from the previous round.
	ReceiveFeedback(ctx context.Context, feedback Opinion) error
	Validate(ctx context.Context, action Action) (ValidationResult, error)
}

// EvaluationContext carries per-round information to Evaluate.
type EvaluationContext struct {
	// Round is the 1-based consensus round number.
	Round      int
	Parameters map[string]any
	// SharedState is a read-only copy of session-shared state, nil outside sessions.
	SharedState map[string]any
}

// SuggestionContext carries the inputs available when asking for suggestions.
type SuggestionContext struct {
	Proposal  *DesignProposal
	Consensus *ConsensusResult
	// SharedState is a read-only copy of session-shared state.
	SharedState map[string]any
	Parameters  map[string]any
}

// Action is a proposed operation submitted for validation before it is carried out.
type Action struct {
	Type         string          `json:"type"`
	Target       string          `json:"target,omitempty"`
	Proposal     *DesignProposal `json:"-"`
	Modification *Modification   `json:"modification,omitempty"`
	Parameters   map[string]any  `json:"parameters,omitempty"`
}

// ValidationResult is a verdict on an Action.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Issues   []Issue  `json:"issues,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

package core

import "errors"

// Contract errors. They are returned synchronously when a caller violates an
// operation's preconditions and are meant to be matched with errors.Is.
var (
	// ErrNilProposal is returned when an operation requires a proposal and got nil.
	ErrNilProposal = errors.New("proposal is required")

	// ErrNilEvaluator is returned when registering a nil evaluator.
	ErrNilEvaluator = errors.New("evaluator is required")

	// ErrNoOpinions is returned when conflict resolution is requested over an empty opinion set.
	ErrNoOpinions = errors.New("at least one opinion is required")

	// ErrTooFewObjectives is returned when negotiation is requested with fewer than two objectives.
	ErrTooFewObjectives = errors.New("at least two objectives are required")

	// ErrInvalidModification is returned when a modification cannot be applied to a proposal.
	ErrInvalidModification = errors.New("invalid modification")
)

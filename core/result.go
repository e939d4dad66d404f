package core

import (
	"math"
	"time"
)

// ConsensusStatus classifies the outcome of a consensus computation.
type ConsensusStatus string

const (
	// StatusConsensus means score variance fell below the configured threshold.
	StatusConsensus ConsensusStatus = "consensus"
	// StatusMajority means rounds were exhausted but most opinions sit near the aggregate.
	StatusMajority ConsensusStatus = "majority"
	// StatusDisagreement means rounds were exhausted and most opinions dissent.
	StatusDisagreement ConsensusStatus = "disagreement"
	// StatusNoAgents means no evaluator produced an opinion.
	StatusNoAgents ConsensusStatus = "no_agents"
)

// ConsensusResult aggregates the opinions of one consensus computation.
type ConsensusResult struct {
	Status ConsensusStatus `json:"status"`
	// Score is the weighted aggregate in [0,1].
	Score    float64 `json:"score"`
	Approved bool    `json:"approved"`
	// Rounds is the number of evaluation rounds that ran.
	Rounds   int     `json:"rounds"`
	Variance float64 `json:"variance"`
	// Issues are merged across opinions, deduplicated by Issue.Key, first occurrence kept.
	Issues             []Issue              `json:"issues,omitempty"`
	Strengths          []string             `json:"strengths,omitempty"`
	Opinions           []Opinion            `json:"opinions,omitempty"`
	DissentingOpinions []Opinion            `json:"dissenting_opinions,omitempty"`
	Conflicts          []ConflictResolution `json:"conflicts,omitempty"`
	Duration           time.Duration        `json:"duration"`
}

// HasCriticalIssues reports whether any contributing opinion flags a critical issue.
func (r *ConsensusResult) HasCriticalIssues() bool {
	for _, o := range r.Opinions {
		if o.HasCriticalIssues() {
			return true
		}
	}
	return false
}

// ResolutionMethod records which rule picked a conflict winner.
type ResolutionMethod string

const (
	// MethodSafetyOverride means a safety-critical specialty raised a critical issue and won.
	MethodSafetyOverride ResolutionMethod = "safety_override"
	// MethodDomainExpertise means the specialty with authority over the domain won.
	MethodDomainExpertise ResolutionMethod = "domain_expertise"
	// MethodWeightedVoting means the expertise-weighted vote picked the winner.
	MethodWeightedVoting ResolutionMethod = "weighted_voting"
	// MethodConsensus means a single opinion covered the domain, so nothing was contested.
	MethodConsensus ResolutionMethod = "consensus"
	// MethodHumanDecision means a reviewer overrode the automatic verdict.
	MethodHumanDecision ResolutionMethod = "human_decision"
)

// ConflictResolution is the verdict for one contested domain.
type ConflictResolution struct {
	Domain              string           `json:"domain"`
	Opinions            []Opinion        `json:"opinions"`
	Winner              Opinion          `json:"winner"`
	Method              ResolutionMethod `json:"method"`
	Confidence          float64          `json:"confidence"`
	RequiresHumanReview bool             `json:"requires_human_review"`
	Notes               []string         `json:"notes,omitempty"`
}

// OverrideWithHumanDecision replaces the winner with a human choice.
func (c *ConflictResolution) OverrideWithHumanDecision(winner Opinion, note string) {
	c.Winner = winner
	c.Method = MethodHumanDecision
	c.Confidence = 1.0
	c.RequiresHumanReview = false
	if note != "" {
		c.Notes = append(c.Notes, note)
	}
}

// ScoredProposal is a suggestion tagged with a score per named objective.
type ScoredProposal struct {
	ID          string             `json:"id"`
	EvaluatorID string             `json:"evaluator_id"`
	Specialty   Specialty          `json:"specialty"`
	Suggestion  Suggestion         `json:"suggestion"`
	Scores      map[string]float64 `json:"scores"`
}

// AverageScore is the arithmetic mean of Scores, 0 when empty.
func (p ScoredProposal) AverageScore() float64 {
	if len(p.Scores) == 0 {
		return 0
	}
	var sum float64
	for _, v := range p.Scores {
		sum += v
	}
	return sum / float64(len(p.Scores))
}

// DistanceTo is the Euclidean distance between p's score vector and point
// over the given objectives. Missing scores count as 0.
func (p ScoredProposal) DistanceTo(point map[string]float64, objectives []string) float64 {
	var sum float64
	for _, o := range objectives {
		d := point[o] - p.Scores[o]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// NegotiationStatus classifies a Pareto negotiation outcome.
type NegotiationStatus string

const (
	// NegotiationFrontierFound means at least one non-dominated proposal was scored.
	NegotiationFrontierFound NegotiationStatus = "frontier_found"
	// NegotiationNoFeasible means evaluators answered but offered nothing to score.
	NegotiationNoFeasible NegotiationStatus = "no_feasible_solutions"
	// NegotiationNoAgents means no active evaluator was registered.
	NegotiationNoAgents NegotiationStatus = "no_agents"
)

// ParetoNegotiationResult reports a multi-objective negotiation.
type ParetoNegotiationResult struct {
	Objectives     []string          `json:"objectives"`
	Proposals      []ScoredProposal  `json:"proposals"`
	Frontier       []ScoredProposal  `json:"frontier"`
	BestCompromise *ScoredProposal   `json:"best_compromise,omitempty"`
	DominatedCount int               `json:"dominated_count"`
	Status         NegotiationStatus `json:"status"`
}

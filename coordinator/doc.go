// Package coordinator implements the AgentCoordinator: the evaluator registry
// and the deliberation protocols that run over it.
//
// # Core Responsibilities
//
// Registry:
//   - Idempotent registration keyed by evaluator id
//   - Point-in-time snapshots taken under a registry lock
//
// Consensus:
//   - Bounded rounds of parallel evaluation with per-call timeouts
//   - Weighted aggregation with a critical-issue multiplier
//   - Peer feedback between rounds until score variance settles
//
// Suggestions, validation and negotiation:
//   - Merged, deduplicated and ranked suggestion collection
//   - Unanimous action validation that fails open on evaluator errors
//   - Pareto-frontier negotiation across named objectives
//
// # Failure Isolation
//
// Every call into an evaluator runs in its own goroutine under a timeout
// derived from the caller's context. An error, a timeout or a panic from one
// evaluator is logged with its identity and that evaluator simply abstains;
// the batch continues with whatever completed.
//
// # Usage
//
//	c := coordinator.New(func(o *coordinator.Options) {
//	    o.Config.MaxConsensusRounds = 5
//	    o.Logger = logger
//	})
//	_ = c.Register(structural)
//	_ = c.Register(fire)
//
//	result, err := c.GetConsensus(ctx, proposal, core.EvaluationContext{})
//	if err != nil {
//	    return err
//	}
//	if result.Status == core.StatusNoAgents {
//	    // nothing was evaluated
//	}
package coordinator

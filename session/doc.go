// Package session implements the collaborative refinement loop that runs on
// top of a coordinator.
//
// A Session owns one evolving proposal. Each Iterate call computes consensus,
// collects suggestions, applies the top-ranked ones when the proposal is not
// yet approved, and records a DesignIteration. The loop ends when the
// proposal is approved (Converged) or the iteration cap is reached
// (MaxIterations); Cancelled and Error are set from outside.
//
// Evaluators never see the session's shared key/value state directly: every
// iteration hands them a copy taken when the iteration starts.
//
// Store keeps sessions addressable by id for callers that run several at once.
package session

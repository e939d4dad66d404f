// Package core provides the shared domain model of the council deliberation
// engine. It defines:
//
//   - Evaluators (specialist capability interface scoped to one Specialty)
//   - Opinions, Issues and Suggestions produced by evaluators
//   - DesignProposal, an event-sourced candidate artifact under review
//   - Result types for consensus, conflict resolution and Pareto negotiation
//
// The package holds no orchestration logic. Coordination lives in the
// coordinator, conflict and session packages; concrete evaluators live in the
// evaluator package or in caller code.
package core

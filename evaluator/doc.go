// Package evaluator provides reusable core.Evaluator implementations.
//
// RuleEvaluator scores a proposal with a fixed set of Rules. Each rule is an
// explicit check over the proposal's current elements and parameters, and a
// rule that also implements Remedy turns its findings into suggestions. The
// declarative ParameterRangeRule and RequiredElementRule can be loaded from
// YAML profiles.
//
// ModelEvaluator delegates judgment to a model.Model. It renders the proposal
// as JSON, asks for a JSON opinion, suggestion list or validation verdict, and
// includes peer feedback from earlier consensus rounds in later prompts.
//
// Both embed *Base, which holds identity, expertise weight, the active flag
// and the peer feedback buffer.
package evaluator

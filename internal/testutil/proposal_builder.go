package testutil

import "github.com/stingtools/council/core"

// ProposalBuilder helps construct proposals with fluent chaining for tests.
// Example:
//
//	p := NewProposalBuilder("p-1").Element("w1", "wall").Param("budget", 100.0).Build()
type ProposalBuilder struct {
	id       string
	elements []core.Element
	params   map[string]any
}

// NewProposalBuilder creates a builder for a proposal with the given id.
func NewProposalBuilder(id string) *ProposalBuilder {
	return &ProposalBuilder{id: id, params: map[string]any{}}
}

// Element appends an element with no properties (chainable).
func (b *ProposalBuilder) Element(id, typ string) *ProposalBuilder {
	b.elements = append(b.elements, core.Element{ID: id, Type: typ, Name: id})
	return b
}

// Param sets a parameter (chainable).
func (b *ProposalBuilder) Param(key string, v any) *ProposalBuilder {
	b.params[key] = v
	return b
}

// Build materializes the proposal.
func (b *ProposalBuilder) Build() *core.DesignProposal {
	return core.NewProposal(b.id, "proposal "+b.id, b.elements, b.params)
}

// SetParam returns a SetParameter modification.
func SetParam(key string, v any) core.Modification {
	return core.Modification{Kind: core.ModSetParameter, Parameter: key, Value: v}
}

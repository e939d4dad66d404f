package testutil

import (
	"time"

	"github.com/stingtools/council/core"
)

// OpinionBuilder provides a fluent helper for constructing opinions in tests.
// Example:
//
//	op := NewOpinionBuilder("struct-1", core.SpecialtyStructural).Score(0.9).Critical("LoadBearing").Build()
//
// Chain only the parts you need; the evaluator id doubles as its name.
type OpinionBuilder struct {
	op core.Opinion
}

// NewOpinionBuilder creates a builder with score 0.5 and confidence 0.8.
func NewOpinionBuilder(evaluatorID string, specialty core.Specialty) *OpinionBuilder {
	return &OpinionBuilder{op: core.Opinion{
		EvaluatorID:   evaluatorID,
		EvaluatorName: evaluatorID,
		Specialty:     specialty,
		Score:         0.5,
		Confidence:    0.8,
		CreatedAt:     time.Unix(0, 0),
	}}
}

// Score sets the overall score (chainable).
func (b *OpinionBuilder) Score(s float64) *OpinionBuilder { b.op.Score = s; return b }

// Confidence sets the confidence (chainable).
func (b *OpinionBuilder) Confidence(c float64) *OpinionBuilder { b.op.Confidence = c; return b }

// Issue appends an issue (chainable).
func (b *OpinionBuilder) Issue(code, domain string, sev core.Severity) *OpinionBuilder {
	b.op.Issues = append(b.op.Issues, core.Issue{Code: code, Description: code, Domain: domain, Severity: sev})
	return b
}

// Critical appends a Critical issue in domain (chainable).
func (b *OpinionBuilder) Critical(domain string) *OpinionBuilder {
	return b.Issue("critical-"+domain, domain, core.SeverityCritical)
}

// Strength appends a strength (chainable).
func (b *OpinionBuilder) Strength(s string) *OpinionBuilder {
	b.op.Strengths = append(b.op.Strengths, s)
	return b
}

// Build returns the opinion value.
func (b *OpinionBuilder) Build() core.Opinion { return b.op }

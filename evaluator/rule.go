package evaluator

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/stingtools/council/core"
)

// Rule is one explicit check over a proposal.
type Rule interface {
	// Code identifies the rule and is stamped on issues that carry none.
	Code() string
	// Domain is the authority tag stamped on issues that carry none.
	Domain() string
	Check(proposal *core.DesignProposal) []core.Issue
}

// Remedy is implemented by rules that know how to fix their own findings.
type Remedy interface {
	Remedy(proposal *core.DesignProposal, issue core.Issue) (core.Suggestion, bool)
}

var severityPenalty = map[core.Severity]float64{
	core.SeverityInfo:     0,
	core.SeverityMinor:    0.05,
	core.SeverityWarning:  0.1,
	core.SeverityMajor:    0.25,
	core.SeverityError:    0.35,
	core.SeverityCritical: 0.5,
}

// SeverityPenalty is the score deducted for one issue of severity s.
func SeverityPenalty(s core.Severity) float64 { return severityPenalty[s] }

// priorityFor maps a finding's severity onto the urgency of its fix.
func priorityFor(s core.Severity) core.Priority {
	switch {
	case s >= core.SeverityError:
		return core.PriorityUrgent
	case s == core.SeverityMajor:
		return core.PriorityHigh
	case s == core.SeverityWarning:
		return core.PriorityMedium
	default:
		return core.PriorityLow
	}
}

// ParameterRangeRule requires a numeric parameter to lie within [Min, Max].
// A nil bound is open. A missing parameter is an issue only when Required.
type ParameterRangeRule struct {
	RuleCode   string        `yaml:"code" mapstructure:"code"`
	RuleDomain string        `yaml:"domain" mapstructure:"domain"`
	Parameter  string        `yaml:"parameter" mapstructure:"parameter"`
	Min        *float64      `yaml:"min,omitempty" mapstructure:"min"`
	Max        *float64      `yaml:"max,omitempty" mapstructure:"max"`
	Required   bool          `yaml:"required,omitempty" mapstructure:"required"`
	Severity   core.Severity `yaml:"severity" mapstructure:"severity"`
	Standard   string        `yaml:"standard,omitempty" mapstructure:"standard"`
}

var _ Remedy = (*ParameterRangeRule)(nil)

// Code implements Rule.
func (r *ParameterRangeRule) Code() string {
	if r.RuleCode != "" {
		return r.RuleCode
	}
	return "RANGE_" + strings.ToUpper(r.Parameter)
}

// Domain implements Rule.
func (r *ParameterRangeRule) Domain() string { return r.RuleDomain }

func (r *ParameterRangeRule) issue(format string, args ...any) core.Issue {
	return core.Issue{
		Code:        r.Code(),
		Description: fmt.Sprintf(format, args...),
		Severity:    r.Severity,
		Domain:      r.RuleDomain,
		Location:    "parameters." + r.Parameter,
		Standard:    r.Standard,
	}
}

// Check implements Rule.
func (r *ParameterRangeRule) Check(p *core.DesignProposal) []core.Issue {
	raw, ok := p.Parameter(r.Parameter)
	if !ok {
		if r.Required {
			return []core.Issue{r.issue("parameter %s is missing", r.Parameter)}
		}
		return nil
	}
	v, ok := toFloat(raw)
	if !ok {
		return []core.Issue{r.issue("parameter %s is not numeric: %v", r.Parameter, raw)}
	}
	if r.Min != nil && v < *r.Min {
		return []core.Issue{r.issue("%s = %g is below the minimum of %g", r.Parameter, v, *r.Min)}
	}
	if r.Max != nil && v > *r.Max {
		return []core.Issue{r.issue("%s = %g exceeds the maximum of %g", r.Parameter, v, *r.Max)}
	}
	return nil
}

// Remedy proposes setting the parameter to the nearest bound.
func (r *ParameterRangeRule) Remedy(p *core.DesignProposal, issue core.Issue) (core.Suggestion, bool) {
	target, ok := r.target(p)
	if !ok {
		return core.Suggestion{}, false
	}
	return core.Suggestion{
		Title:       fmt.Sprintf("Set %s to %g", r.Parameter, target),
		Description: issue.Description,
		Category:    issue.DomainOrDefault(),
		Confidence:  0.9,
		Impact:      core.Clamp01(0.4 + SeverityPenalty(issue.Severity)),
		Priority:    priorityFor(issue.Severity),
		Modifications: []core.Modification{{
			Kind:        core.ModSetParameter,
			Parameter:   r.Parameter,
			Value:       target,
			Description: fmt.Sprintf("bring %s within range", r.Parameter),
		}},
	}, true
}

func (r *ParameterRangeRule) target(p *core.DesignProposal) (float64, bool) {
	raw, present := p.Parameter(r.Parameter)
	v, numeric := toFloat(raw)
	switch {
	case present && numeric && r.Min != nil && v < *r.Min:
		return *r.Min, true
	case present && numeric && r.Max != nil && v > *r.Max:
		return *r.Max, true
	case r.Min != nil:
		return *r.Min, true
	case r.Max != nil:
		return *r.Max, true
	}
	return 0, false
}

func exists(p *core.DesignProposal, id string) bool {
	_, ok := p.Element(id)
	return ok
}

// RequiredElementRule requires at least MinCount elements of ElementType.
type RequiredElementRule struct {
	RuleCode    string        `yaml:"code" mapstructure:"code"`
	RuleDomain  string        `yaml:"domain" mapstructure:"domain"`
	ElementType string        `yaml:"element_type" mapstructure:"element_type"`
	MinCount    int           `yaml:"min_count,omitempty" mapstructure:"min_count"`
	Severity    core.Severity `yaml:"severity" mapstructure:"severity"`
	Standard    string        `yaml:"standard,omitempty" mapstructure:"standard"`
	// Template seeds the name and properties of the element added by Remedy.
	Template *core.Element `yaml:"template,omitempty" mapstructure:"template"`
}

var _ Remedy = (*RequiredElementRule)(nil)

// Code implements Rule.
func (r *RequiredElementRule) Code() string {
	if r.RuleCode != "" {
		return r.RuleCode
	}
	return "REQUIRED_" + strings.ToUpper(r.ElementType)
}

// Domain implements Rule.
func (r *RequiredElementRule) Domain() string { return r.RuleDomain }

func (r *RequiredElementRule) minCount() int { return max(r.MinCount, 1) }

func (r *RequiredElementRule) count(p *core.DesignProposal) int {
	n := 0
	for _, e := range p.Elements() {
		if strings.EqualFold(e.Type, r.ElementType) {
			n++
		}
	}
	return n
}

// Check implements Rule.
func (r *RequiredElementRule) Check(p *core.DesignProposal) []core.Issue {
	n := r.count(p)
	if n >= r.minCount() {
		return nil
	}
	return []core.Issue{{
		Code:        r.Code(),
		Description: fmt.Sprintf("requires %d %s element(s), found %d", r.minCount(), r.ElementType, n),
		Severity:    r.Severity,
		Domain:      r.RuleDomain,
		Standard:    r.Standard,
	}}
}

// Remedy proposes adding the missing elements, seeded from Template.
func (r *RequiredElementRule) Remedy(p *core.DesignProposal, issue core.Issue) (core.Suggestion, bool) {
	missing := r.minCount() - r.count(p)
	if missing <= 0 {
		return core.Suggestion{}, false
	}
	mods := make([]core.Modification, 0, missing)
	next := 1
	for range missing {
		id := ""
		for id == "" || exists(p, id) {
			id = fmt.Sprintf("%s-%d", strings.ToLower(r.ElementType), next)
			next++
		}
		el := core.Element{ID: id, Type: r.ElementType}
		if r.Template != nil {
			el.Name = r.Template.Name
			if len(r.Template.Properties) > 0 {
				el.Properties = make(map[string]any, len(r.Template.Properties))
				for k, v := range r.Template.Properties {
					el.Properties[k] = v
				}
			}
		}
		mods = append(mods, core.Modification{
			Kind:        core.ModAddElement,
			Element:     &el,
			Description: "add " + r.ElementType,
		})
	}
	return core.Suggestion{
		Title:         "Add " + r.ElementType,
		Description:   issue.Description,
		Category:      issue.DomainOrDefault(),
		Confidence:    0.85,
		Impact:        core.Clamp01(0.4 + SeverityPenalty(issue.Severity)),
		Priority:      priorityFor(issue.Severity),
		Modifications: mods,
	}, true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

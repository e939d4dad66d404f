package evaluator

import (
	"fmt"

	"github.com/stingtools/council/core"
	"github.com/stingtools/council/logging"
	"github.com/stingtools/council/model"
)

// Kind selects the evaluator implementation a Profile builds.
const (
	KindRules = "rules"
	KindModel = "model"
)

// Profile is the declarative description of one evaluator, loadable from
// YAML fixtures or the evaluators section of the configuration file.
type Profile struct {
	ID        string `yaml:"id" mapstructure:"id"`
	Name      string `yaml:"name" mapstructure:"name"`
	Specialty string `yaml:"specialty" mapstructure:"specialty"`

	// Kind is KindRules (default) or KindModel.
	Kind string `yaml:"kind" mapstructure:"kind"`

	Weight     float64 `yaml:"weight" mapstructure:"weight"`
	Confidence float64 `yaml:"confidence" mapstructure:"confidence"`
	Deference  float64 `yaml:"deference" mapstructure:"deference"`
	Disabled   bool    `yaml:"disabled" mapstructure:"disabled"`

	// Instruction is appended to the role prompt of model evaluators.
	Instruction string `yaml:"instruction" mapstructure:"instruction"`

	Ranges   []ParameterRangeRule  `yaml:"ranges" mapstructure:"ranges"`
	Required []RequiredElementRule `yaml:"required" mapstructure:"required"`
}

// Rules returns the profile's declarative rules, ranges first.
func (p Profile) Rules() []Rule {
	rules := make([]Rule, 0, len(p.Ranges)+len(p.Required))
	for i := range p.Ranges {
		r := p.Ranges[i]
		rules = append(rules, &r)
	}
	for i := range p.Required {
		r := p.Required[i]
		rules = append(rules, &r)
	}
	return rules
}

// Build constructs the evaluator the profile describes. llm is required for
// KindModel profiles and ignored otherwise.
func (p Profile) Build(llm model.Model, logger logging.Logger) (core.Evaluator, error) {
	specialty, err := core.ParseSpecialty(p.Specialty)
	if err != nil {
		return nil, fmt.Errorf("profile %q: %w", p.ID, err)
	}

	var e interface {
		core.Evaluator
		SetActive(bool)
	}
	switch p.Kind {
	case "", KindRules:
		e = NewRuleEvaluator(specialty, p.Rules(), func(o *RuleEvaluatorOptions) {
			o.ID, o.Name, o.Logger = p.ID, p.Name, logger
			if p.Weight > 0 {
				o.ExpertiseWeight = p.Weight
			}
			if p.Confidence > 0 {
				o.Confidence = p.Confidence
			}
			o.Deference = p.Deference
		})
	case KindModel:
		if llm == nil {
			return nil, fmt.Errorf("profile %q: model evaluator requires a model", p.ID)
		}
		e = NewModelEvaluator(specialty, llm, func(o *ModelEvaluatorOptions) {
			o.ID, o.Name, o.Logger = p.ID, p.Name, logger
			o.Instruction = p.Instruction
			if p.Weight > 0 {
				o.ExpertiseWeight = p.Weight
			}
		})
	default:
		return nil, fmt.Errorf("profile %q: unknown kind %q", p.ID, p.Kind)
	}
	e.SetActive(!p.Disabled)
	return e, nil
}

// BuildAll builds every profile in order, stopping at the first error.
func BuildAll(profiles []Profile, llm model.Model, logger logging.Logger) ([]core.Evaluator, error) {
	out := make([]core.Evaluator, 0, len(profiles))
	for _, p := range profiles {
		e, err := p.Build(llm, logger)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/stingtools/council/conflict"
	"github.com/stingtools/council/core"
	"github.com/stingtools/council/evaluator"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "coordinator.max_consensus_rounds")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidLogFormats returns the list of valid log formats
func ValidLogFormats() []string {
	return []string{"json", "text"}
}

// ValidProviders returns the list of valid model providers
func ValidProviders() []string {
	return []string{"mock", "anthropic", "openai"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError
	add := func(field string, value any, msg string) {
		errs = append(errs, ValidationError{Field: field, Value: value, Message: msg})
	}
	unit := func(field string, v float64) {
		if v < 0 || v > 1 {
			add(field, v, "must be between 0 and 1")
		}
	}

	co := c.Coordinator
	if co.MaxConsensusRounds < 1 {
		add("coordinator.max_consensus_rounds", co.MaxConsensusRounds, "must be at least 1")
	}
	unit("coordinator.consensus_threshold", co.ConsensusThreshold)
	unit("coordinator.default_expertise", co.DefaultExpertise)
	unit("coordinator.dissent_threshold", co.DissentThreshold)
	if co.VarianceThreshold < 0 {
		add("coordinator.variance_threshold", co.VarianceThreshold, "must not be negative")
	}
	if co.CriticalIssueWeight < 1 {
		add("coordinator.critical_issue_weight", co.CriticalIssueWeight, "must be at least 1")
	}
	if co.EvaluatorTimeout <= 0 {
		add("coordinator.evaluator_timeout", co.EvaluatorTimeout, "must be positive")
	}
	if co.MaxSuggestions < 1 {
		add("coordinator.max_suggestions", co.MaxSuggestions, "must be at least 1")
	}

	if b := conflict.VoteBasis(c.Conflict.VoteBasis); b != conflict.VoteByScore && b != conflict.VoteByConfidence {
		add("conflict.vote_basis", c.Conflict.VoteBasis, "must be score or confidence")
	}

	if c.Session.MaxIterations < 1 {
		add("session.max_iterations", c.Session.MaxIterations, "must be at least 1")
	}
	if c.Session.SuggestionsPerIteration < 1 {
		add("session.suggestions_per_iteration", c.Session.SuggestionsPerIteration, "must be at least 1")
	}
	if c.Bus.HistoryCapacity < 1 {
		add("bus.history_capacity", c.Bus.HistoryCapacity, "must be at least 1")
	}

	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		add("logging.level", c.Logging.Level, "must be one of "+strings.Join(ValidLogLevels(), ", "))
	}
	if !slices.Contains(ValidLogFormats(), c.Logging.Format) {
		add("logging.format", c.Logging.Format, "must be one of "+strings.Join(ValidLogFormats(), ", "))
	}

	if !slices.Contains(ValidProviders(), c.Model.Provider) {
		add("model.provider", c.Model.Provider, "must be one of "+strings.Join(ValidProviders(), ", "))
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		add("model.temperature", c.Model.Temperature, "must be between 0 and 2")
	}

	seen := map[string]bool{}
	for i, p := range c.Evaluators {
		field := fmt.Sprintf("evaluators[%d]", i)
		if p.ID == "" {
			add(field+".id", p.ID, "is required")
		} else if seen[p.ID] {
			add(field+".id", p.ID, "is duplicated")
		}
		seen[p.ID] = true
		if _, err := core.ParseSpecialty(p.Specialty); err != nil {
			add(field+".specialty", p.Specialty, "is not a known specialty")
		}
		if p.Kind != "" && p.Kind != evaluator.KindRules && p.Kind != evaluator.KindModel {
			add(field+".kind", p.Kind, "must be rules or model")
		}
		unit(field+".weight", p.Weight)
		unit(field+".deference", p.Deference)
		for j, r := range p.Ranges {
			if r.Parameter == "" {
				add(fmt.Sprintf("%s.ranges[%d].parameter", field, j), r.Parameter, "is required")
			}
			if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
				add(fmt.Sprintf("%s.ranges[%d]", field, j), fmt.Sprintf("[%g, %g]", *r.Min, *r.Max), "min exceeds max")
			}
		}
		for j, r := range p.Required {
			if r.ElementType == "" {
				add(fmt.Sprintf("%s.required[%d].element_type", field, j), r.ElementType, "is required")
			}
		}
	}

	return errs
}

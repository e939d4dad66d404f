// Package fixture decodes YAML documents describing proposals, actions and
// evaluator profiles for the CLI and tests.
package fixture

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/stingtools/council/core"
	"github.com/stingtools/council/evaluator"
	"gopkg.in/yaml.v3"
)

// ProposalSpec is the on-disk form of a design proposal.
type ProposalSpec struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Elements    []core.Element `yaml:"elements,omitempty"`
	Parameters  map[string]any `yaml:"parameters,omitempty"`
	// Objectives are the default negotiation objectives for the proposal.
	Objectives []string `yaml:"objectives,omitempty"`
}

// Proposal materializes the document as a proposal.
func (s ProposalSpec) Proposal() *core.DesignProposal {
	p := core.NewProposal(s.ID, s.Name, s.Elements, s.Parameters)
	if s.Description != "" {
		p.SetDescription(s.Description)
	}
	return p
}

// ActionSpec is the on-disk form of an action submitted for validation.
type ActionSpec struct {
	Type         string             `yaml:"type"`
	Target       string             `yaml:"target,omitempty"`
	Modification *core.Modification `yaml:"modification,omitempty"`
	Parameters   map[string]any     `yaml:"parameters,omitempty"`
}

// Action binds the document to proposal.
func (s ActionSpec) Action(proposal *core.DesignProposal) core.Action {
	return core.Action{
		Type:         s.Type,
		Target:       s.Target,
		Proposal:     proposal,
		Modification: s.Modification,
		Parameters:   s.Parameters,
	}
}

// ProfileSet is a document listing evaluator profiles.
type ProfileSet struct {
	Evaluators []evaluator.Profile `yaml:"evaluators"`
}

func decode(kind string, data []byte, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("fixture: %s payload is empty", kind)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("fixture: decode %s: %w", kind, err)
	}
	return nil
}

func readFile(kind, path string, v any) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("fixture: read %s: %w", path, err)
	}
	if err := decode(kind, content, v); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// ParseProposal decodes a proposal spec from YAML bytes.
func ParseProposal(data []byte) (ProposalSpec, error) {
	var spec ProposalSpec
	if err := decode("proposal", data, &spec); err != nil {
		return ProposalSpec{}, err
	}
	if spec.Name == "" {
		spec.Name = spec.ID
	}
	return spec, nil
}

// LoadProposalReader reads a proposal spec from r.
func LoadProposalReader(r io.Reader) (ProposalSpec, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return ProposalSpec{}, fmt.Errorf("fixture: read proposal: %w", err)
	}
	return ParseProposal(content)
}

// LoadProposalFile loads a proposal spec from path.
func LoadProposalFile(path string) (ProposalSpec, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return ProposalSpec{}, fmt.Errorf("fixture: read %s: %w", path, err)
	}
	spec, err := ParseProposal(content)
	if err != nil {
		return ProposalSpec{}, fmt.Errorf("%s: %w", path, err)
	}
	return spec, nil
}

// LoadActionFile loads an action spec from path.
func LoadActionFile(path string) (ActionSpec, error) {
	var spec ActionSpec
	if err := readFile("action", path, &spec); err != nil {
		return ActionSpec{}, err
	}
	if spec.Type == "" {
		return ActionSpec{}, fmt.Errorf("fixture: %s: action type is required", path)
	}
	return spec, nil
}

// LoadProfilesFile loads evaluator profiles from path.
func LoadProfilesFile(path string) ([]evaluator.Profile, error) {
	var set ProfileSet
	if err := readFile("profiles", path, &set); err != nil {
		return nil, err
	}
	return set.Evaluators, nil
}

// DumpProposal renders the current state of p as a ProposalSpec document.
func DumpProposal(w io.Writer, p *core.DesignProposal) error {
	snap := p.Snapshot()
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(ProposalSpec{
		ID:          snap.ID,
		Name:        snap.Name,
		Description: p.Description(),
		Elements:    snap.Elements,
		Parameters:  snap.Parameters,
	}); err != nil {
		return fmt.Errorf("fixture: encode proposal: %w", err)
	}
	return enc.Close()
}

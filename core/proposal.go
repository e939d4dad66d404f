package core

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Element is one component of a design proposal (a wall, a room, a system).
type Element struct {
	ID         string         `json:"id" yaml:"id"`
	Type       string         `json:"type" yaml:"type"`
	Name       string         `json:"name,omitempty" yaml:"name,omitempty"`
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
}

func (e Element) clone() Element {
	c := e
	if e.Properties != nil {
		c.Properties = make(map[string]any, len(e.Properties))
		for k, v := range e.Properties {
			c.Properties[k] = v
		}
	}
	return c
}

// ModificationKind enumerates the edits a Modification can describe.
type ModificationKind int

const (
	// ModAddElement appends Element to the proposal.
	ModAddElement ModificationKind = iota + 1
	// ModUpdateElement merges Element's non-empty fields into the element ElementID.
	ModUpdateElement
	// ModRemoveElement deletes the element ElementID.
	ModRemoveElement
	// ModSetParameter sets Parameter to Value, or deletes it when Value is nil.
	ModSetParameter
)

var modificationKindLabels = map[ModificationKind]string{
	ModAddElement:    "add_element",
	ModUpdateElement: "update_element",
	ModRemoveElement: "remove_element",
	ModSetParameter:  "set_parameter",
}

// String returns the wire label of the kind.
func (k ModificationKind) String() string {
	if l, ok := modificationKindLabels[k]; ok {
		return l
	}
	return fmt.Sprintf("ModificationKind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k ModificationKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ModificationKind) UnmarshalText(text []byte) error {
	for kind, l := range modificationKindLabels {
		if strings.EqualFold(l, strings.TrimSpace(string(text))) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown modification kind %q", string(text))
}

// Modification is a single proposed edit to a DesignProposal.
type Modification struct {
	ID          string           `json:"id,omitempty" yaml:"id,omitempty"`
	Kind        ModificationKind `json:"kind" yaml:"kind"`
	ElementID   string           `json:"element_id,omitempty" yaml:"element_id,omitempty"`
	Element     *Element         `json:"element,omitempty" yaml:"element,omitempty"`
	Parameter   string           `json:"parameter,omitempty" yaml:"parameter,omitempty"`
	Value       any              `json:"value,omitempty" yaml:"value,omitempty"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
}

// ProposalModification is one entry of a proposal's append-only log.
type ProposalModification struct {
	Sequence     int          `json:"sequence"`
	Modification Modification `json:"modification"`
	// Source identifies who applied the modification (suggestion id, session id, caller).
	Source    string    `json:"source,omitempty"`
	AppliedAt time.Time `json:"applied_at"`
}

// ProposalSnapshot is an immutable materialized view of a proposal at one version.
type ProposalSnapshot struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Version    int            `json:"version"`
	Elements   []Element      `json:"elements"`
	Parameters map[string]any `json:"parameters"`
	TakenAt    time.Time      `json:"taken_at"`
}

// Element returns the element with the given id from the snapshot.
func (s ProposalSnapshot) Element(id string) (Element, bool) {
	for _, e := range s.Elements {
		if e.ID == id {
			return e, true
		}
	}
	return Element{}, false
}

type materialized struct {
	elements []Element
	params   map[string]any
}

func (m *materialized) clone() *materialized {
	c := &materialized{
		elements: make([]Element, len(m.elements)),
		params:   make(map[string]any, len(m.params)),
	}
	for i, e := range m.elements {
		c.elements[i] = e.clone()
	}
	for k, v := range m.params {
		c.params[k] = v
	}
	return c
}

func (m *materialized) indexOf(id string) int {
	for i, e := range m.elements {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (m *materialized) apply(mod Modification) error {
	switch mod.Kind {
	case ModAddElement:
		if mod.Element == nil {
			return fmt.Errorf("%w: add_element without element", ErrInvalidModification)
		}
		if mod.Element.ID == "" {
			return fmt.Errorf("%w: add_element without element id", ErrInvalidModification)
		}
		if m.indexOf(mod.Element.ID) >= 0 {
			return fmt.Errorf("%w: element %s already exists", ErrInvalidModification, mod.Element.ID)
		}
		m.elements = append(m.elements, mod.Element.clone())
	case ModUpdateElement:
		idx := m.indexOf(mod.ElementID)
		if idx < 0 {
			return fmt.Errorf("%w: element %s not found", ErrInvalidModification, mod.ElementID)
		}
		if mod.Element == nil {
			return fmt.Errorf("%w: update_element without element", ErrInvalidModification)
		}
		cur := m.elements[idx]
		if mod.Element.Type != "" {
			cur.Type = mod.Element.Type
		}
		if mod.Element.Name != "" {
			cur.Name = mod.Element.Name
		}
		if len(mod.Element.Properties) > 0 && cur.Properties == nil {
			cur.Properties = map[string]any{}
		}
		for k, v := range mod.Element.Properties {
			cur.Properties[k] = v
		}
		m.elements[idx] = cur
	case ModRemoveElement:
		idx := m.indexOf(mod.ElementID)
		if idx < 0 {
			return fmt.Errorf("%w: element %s not found", ErrInvalidModification, mod.ElementID)
		}
		m.elements = append(m.elements[:idx], m.elements[idx+1:]...)
	case ModSetParameter:
		if mod.Parameter == "" {
			return fmt.Errorf("%w: set_parameter without parameter", ErrInvalidModification)
		}
		if mod.Value == nil {
			delete(m.params, mod.Parameter)
		} else {
			m.params[mod.Parameter] = mod.Value
		}
	default:
		return fmt.Errorf("%w: unknown kind %s", ErrInvalidModification, mod.Kind)
	}
	return nil
}

// DesignProposal is the shared candidate artifact under evaluation.
//
// It is event-sourced: an immutable base (elements and parameters supplied at
// construction) plus an append-only ordered modification log. The current
// state is the base with every log entry replayed in order; it is cached and
// rebuilt only when the log grows. Applying a modification never replaces the
// proposal, it only appends.
//
// Reads are safe for concurrent use. A proposal is expected to have a single
// writer at a time.
type DesignProposal struct {
	id          string
	name        string
	description string
	createdAt   time.Time

	baseElements []Element
	baseParams   map[string]any

	mu      sync.RWMutex
	log     []ProposalModification
	current *materialized
}

// NewProposal creates a proposal. An empty id is replaced by a random uuid.
func NewProposal(id, name string, elements []Element, params map[string]any) *DesignProposal {
	if id == "" {
		id = uuid.NewString()
	}
	base := &materialized{elements: make([]Element, 0, len(elements)), params: map[string]any{}}
	for _, e := range elements {
		base.elements = append(base.elements, e.clone())
	}
	for k, v := range params {
		base.params[k] = v
	}
	p := &DesignProposal{
		id:           id,
		name:         name,
		createdAt:    time.Now(),
		baseElements: base.elements,
		baseParams:   base.params,
	}
	p.current = base.clone()
	return p
}

// ID returns the proposal identity.
func (p *DesignProposal) ID() string { return p.id }

// Name returns the display name.
func (p *DesignProposal) Name() string { return p.name }

// Description returns the free-form description.
func (p *DesignProposal) Description() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.description
}

// SetDescription sets the free-form description.
func (p *DesignProposal) SetDescription(d string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.description = d
}

// Version is the number of applied modifications.
func (p *DesignProposal) Version() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.log)
}

// Apply validates mod against the current state and, if valid, appends it to
// the log. An AddElement modification without an element id gets a generated
// one, recorded in the log entry. On error the proposal is unchanged.
func (p *DesignProposal) Apply(mod Modification, source string) (ProposalModification, error) {
	if mod.ID == "" {
		mod.ID = uuid.NewString()
	}
	if mod.Kind == ModAddElement && mod.Element != nil && mod.Element.ID == "" {
		e := mod.Element.clone()
		e.ID = uuid.NewString()
		mod.Element = &e
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	next := p.current.clone()
	if err := next.apply(mod); err != nil {
		return ProposalModification{}, err
	}
	entry := ProposalModification{
		Sequence:     len(p.log) + 1,
		Modification: mod,
		Source:       source,
		AppliedAt:    time.Now(),
	}
	p.log = append(p.log, entry)
	p.current = next
	return entry, nil
}

// Modifications returns a copy of the modification log.
func (p *DesignProposal) Modifications() []ProposalModification {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]ProposalModification, len(p.log))
	copy(out, p.log)
	return out
}

// Elements returns a copy of the current elements.
func (p *DesignProposal) Elements() []Element {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current.clone().elements
}

// Element returns the current element with the given id.
func (p *DesignProposal) Element(id string) (Element, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if idx := p.current.indexOf(id); idx >= 0 {
		return p.current.elements[idx].clone(), true
	}
	return Element{}, false
}

// Parameters returns a copy of the current parameter map.
func (p *DesignProposal) Parameters() map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current.clone().params
}

// Parameter returns one current parameter.
func (p *DesignProposal) Parameter(key string) (any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.current.params[key]
	return v, ok
}

// Snapshot returns the materialized current state.
func (p *DesignProposal) Snapshot() ProposalSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c := p.current.clone()
	return ProposalSnapshot{
		ID:         p.id,
		Name:       p.name,
		Version:    len(p.log),
		Elements:   c.elements,
		Parameters: c.params,
		TakenAt:    time.Now(),
	}
}

// SnapshotAt replays the base plus the first version log entries.
func (p *DesignProposal) SnapshotAt(version int) (ProposalSnapshot, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if version < 0 || version > len(p.log) {
		return ProposalSnapshot{}, fmt.Errorf("version %d out of range [0,%d]", version, len(p.log))
	}
	state := p.base()
	for _, entry := range p.log[:version] {
		if err := state.apply(entry.Modification); err != nil {
			return ProposalSnapshot{}, fmt.Errorf("replay sequence %d: %w", entry.Sequence, err)
		}
	}
	return ProposalSnapshot{
		ID:         p.id,
		Name:       p.name,
		Version:    version,
		Elements:   state.elements,
		Parameters: state.params,
		TakenAt:    time.Now(),
	}, nil
}

// Clone returns an independent proposal with the same identity, base and log.
// Mutating the clone never affects p.
func (p *DesignProposal) Clone() *DesignProposal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c := &DesignProposal{
		id:           p.id,
		name:         p.name,
		description:  p.description,
		createdAt:    p.createdAt,
		baseElements: p.baseElements,
		baseParams:   p.baseParams,
		log:          make([]ProposalModification, len(p.log)),
		current:      p.current.clone(),
	}
	copy(c.log, p.log)
	return c
}

func (p *DesignProposal) base() *materialized {
	return (&materialized{elements: p.baseElements, params: p.baseParams}).clone()
}

package core

import (
	"fmt"
	"strings"
)

// Specialty is the closed set of evaluator domains. The zero value is invalid
// so an unset specialty cannot silently pick up a default weight.
type Specialty int

const (
	// SpecialtySafety covers general life-safety hazards.
	SpecialtySafety Specialty = iota + 1
	// SpecialtyStructural covers load paths and structural integrity.
	SpecialtyStructural
	// SpecialtyFire covers fire rating, egress and detection.
	SpecialtyFire
	// SpecialtyAccessibility covers barrier-free access.
	SpecialtyAccessibility
	// SpecialtyCodeCompliance covers zoning and building code conformance.
	SpecialtyCodeCompliance
	// SpecialtyMechanical covers HVAC and ventilation.
	SpecialtyMechanical
	// SpecialtyElectrical covers power and lighting.
	SpecialtyElectrical
	// SpecialtyPlumbing covers water supply and drainage.
	SpecialtyPlumbing
	// SpecialtySpatial covers layout and circulation.
	SpecialtySpatial
	// SpecialtyAcoustic covers noise and sound isolation.
	SpecialtyAcoustic
	// SpecialtyCost covers budget and quantities.
	SpecialtyCost
	// SpecialtySustainability covers energy and carbon.
	SpecialtySustainability
	// SpecialtyAesthetic covers appearance and proportion.
	SpecialtyAesthetic
)

type specialtyInfo struct {
	label   string
	weight  float64
	domains []string
}

// specialtyTable is the single source for labels, authority weights and the
// domains each specialty has authority over.
var specialtyTable = map[Specialty]specialtyInfo{
	SpecialtySafety:         {"Safety", 2.0, []string{"Safety", "Hazard", "FallProtection", "Guarding"}},
	SpecialtyStructural:     {"Structural", 1.8, []string{"LoadBearing", "Foundations", "Framing", "Shear"}},
	SpecialtyFire:           {"Fire", 1.8, []string{"FireRating", "Egress", "Compartmentation", "Detection"}},
	SpecialtyAccessibility:  {"Accessibility", 1.6, []string{"Accessibility", "Ramps", "Clearances", "Wayfinding"}},
	SpecialtyCodeCompliance: {"CodeCompliance", 1.5, []string{"Zoning", "Setbacks", "Occupancy", "Permits"}},
	SpecialtyMechanical:     {"Mechanical", 1.3, []string{"HVAC", "Ventilation", "Ductwork"}},
	SpecialtyElectrical:     {"Electrical", 1.3, []string{"Power", "Lighting", "Circuits"}},
	SpecialtyPlumbing:       {"Plumbing", 1.3, []string{"Water", "Drainage", "Fixtures"}},
	SpecialtySpatial:        {"Spatial", 1.2, []string{"Layout", "Circulation", "Adjacency"}},
	SpecialtyAcoustic:       {"Acoustic", 1.0, []string{"Noise", "Reverberation", "Isolation"}},
	SpecialtyCost:           {"Cost", 1.0, []string{"Budget", "Materials", "Labor"}},
	SpecialtySustainability: {"Sustainability", 1.0, []string{"Energy", "Carbon", "Daylighting"}},
	SpecialtyAesthetic:      {"Aesthetic", 0.8, []string{"Facade", "Proportion", "Finishes"}},
}

// Specialties returns every valid specialty in declaration order.
func Specialties() []Specialty {
	out := make([]Specialty, 0, len(specialtyTable))
	for s := SpecialtySafety; s <= SpecialtyAesthetic; s++ {
		out = append(out, s)
	}
	return out
}

// String returns the display label.
func (s Specialty) String() string {
	if info, ok := specialtyTable[s]; ok {
		return info.label
	}
	return fmt.Sprintf("Specialty(%d)", int(s))
}

// Valid reports whether s is a member of the closed set.
func (s Specialty) Valid() bool {
	_, ok := specialtyTable[s]
	return ok
}

// Weight returns the fixed authority weight used in conflict resolution.
// Invalid specialties weigh 0.
func (s Specialty) Weight() float64 {
	return specialtyTable[s].weight
}

// Domains returns a copy of the domain tags s has authority over.
func (s Specialty) Domains() []string {
	d := specialtyTable[s].domains
	out := make([]string, len(d))
	copy(out, d)
	return out
}

// OwnsDomain reports whether domain (case-insensitive) belongs to s.
func (s Specialty) OwnsDomain(domain string) bool {
	for _, d := range specialtyTable[s].domains {
		if strings.EqualFold(d, domain) {
			return true
		}
	}
	return false
}

// IsSafetyCritical reports whether s may trigger a safety override.
func (s Specialty) IsSafetyCritical() bool {
	return s == SpecialtySafety || s == SpecialtyFire || s == SpecialtyStructural
}

// AuthorityFor returns the specialty owning domain, if any.
func AuthorityFor(domain string) (Specialty, bool) {
	for _, s := range Specialties() {
		if s.OwnsDomain(domain) {
			return s, true
		}
	}
	return 0, false
}

// ParseSpecialty resolves a display label case-insensitively.
func ParseSpecialty(label string) (Specialty, error) {
	for s, info := range specialtyTable {
		if strings.EqualFold(info.label, strings.TrimSpace(label)) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown specialty %q", label)
}

// MarshalText implements encoding.TextMarshaler.
func (s Specialty) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid specialty %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Specialty) UnmarshalText(text []byte) error {
	v, err := ParseSpecialty(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

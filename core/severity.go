package core

import (
	"fmt"
	"strings"
)

// Severity grades an Issue. Values are ordered from least to most severe.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityMinor
	SeverityWarning
	SeverityMajor
	SeverityError
	SeverityCritical
)

var severityLabels = []string{"Info", "Minor", "Warning", "Major", "Error", "Critical"}

// String returns the display label.
func (s Severity) String() string {
	if s < SeverityInfo || s > SeverityCritical {
		return fmt.Sprintf("Severity(%d)", int(s))
	}
	return severityLabels[s]
}

// IsCritical reports whether the severity counts as a critical issue for
// consensus weighting and approval (Major or Critical).
func (s Severity) IsCritical() bool {
	return s == SeverityMajor || s == SeverityCritical
}

// IsBlocking reports whether an issue of this severity makes an action invalid.
func (s Severity) IsBlocking() bool {
	return s >= SeverityError
}

// ParseSeverity resolves a label case-insensitively.
func ParseSeverity(label string) (Severity, error) {
	for i, l := range severityLabels {
		if strings.EqualFold(l, strings.TrimSpace(label)) {
			return Severity(i), nil
		}
	}
	return 0, fmt.Errorf("unknown severity %q", label)
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	v, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Priority orders suggestions for application within a session iteration.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityUrgent
)

var priorityLabels = []string{"Low", "Medium", "High", "Urgent"}

// String returns the display label.
func (p Priority) String() string {
	if p < PriorityLow || p > PriorityUrgent {
		return fmt.Sprintf("Priority(%d)", int(p))
	}
	return priorityLabels[p]
}

// ParsePriority resolves a label case-insensitively.
func ParsePriority(label string) (Priority, error) {
	for i, l := range priorityLabels {
		if strings.EqualFold(l, strings.TrimSpace(label)) {
			return Priority(i), nil
		}
	}
	return 0, fmt.Errorf("unknown priority %q", label)
}

// MarshalText implements encoding.TextMarshaler.
func (p Priority) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Priority) UnmarshalText(text []byte) error {
	v, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

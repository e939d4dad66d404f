package evaluator

import (
	"testing"

	"github.com/stingtools/council/core"
	"github.com/stingtools/council/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func corridorRule() *ParameterRangeRule {
	return &ParameterRangeRule{
		RuleDomain: "Clearances",
		Parameter:  "corridor_width",
		Min:        ptr(0.9),
		Max:        ptr(3.0),
		Required:   true,
		Severity:   core.SeverityMajor,
		Standard:   "ADA 403.5.1",
	}
}

func TestParameterRangeRule_Check(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		set     bool
		want    int
		message string
	}{
		{name: "within range", value: 1.2, set: true},
		{name: "integer within range", value: 2, set: true},
		{name: "numeric string", value: "1.5", set: true},
		{name: "below minimum", value: 0.8, set: true, want: 1, message: "corridor_width = 0.8 is below the minimum of 0.9"},
		{name: "above maximum", value: 4.0, set: true, want: 1, message: "corridor_width = 4 exceeds the maximum of 3"},
		{name: "not numeric", value: "wide", set: true, want: 1, message: "parameter corridor_width is not numeric: wide"},
		{name: "missing", want: 1, message: "parameter corridor_width is missing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testutil.NewProposalBuilder("p")
			if tt.set {
				b.Param("corridor_width", tt.value)
			}
			issues := corridorRule().Check(b.Build())
			require.Len(t, issues, tt.want)
			if tt.want > 0 {
				is := issues[0]
				assert.Equal(t, tt.message, is.Description)
				assert.Equal(t, "RANGE_CORRIDOR_WIDTH", is.Code)
				assert.Equal(t, "Clearances", is.Domain)
				assert.Equal(t, "parameters.corridor_width", is.Location)
				assert.Equal(t, "ADA 403.5.1", is.Standard)
				assert.Equal(t, core.SeverityMajor, is.Severity)
			}
		})
	}
}

func TestParameterRangeRule_OptionalMissing(t *testing.T) {
	r := corridorRule()
	r.Required = false
	assert.Empty(t, r.Check(testutil.NewProposalBuilder("p").Build()))
}

func TestParameterRangeRule_Remedy(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  float64
	}{
		{name: "below raises to minimum", value: 0.5, want: 0.9},
		{name: "above lowers to maximum", value: 7.5, want: 3.0},
		{name: "missing uses minimum", want: 0.9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testutil.NewProposalBuilder("p")
			if tt.value != nil {
				b.Param("corridor_width", tt.value)
			}
			p := b.Build()
			r := corridorRule()
			issues := r.Check(p)
			require.Len(t, issues, 1)

			s, ok := r.Remedy(p, issues[0])
			require.True(t, ok)
			require.Len(t, s.Modifications, 1)
			assert.Equal(t, core.ModSetParameter, s.Modifications[0].Kind)
			assert.Equal(t, tt.want, s.Modifications[0].Value)
			assert.Equal(t, core.PriorityHigh, s.Priority)
			assert.Equal(t, "Clearances", s.Category)

			_, err := p.Apply(s.Modifications[0], "test")
			require.NoError(t, err)
			assert.Empty(t, r.Check(p))
		})
	}
}

func TestParameterRangeRule_RemedyWithoutBounds(t *testing.T) {
	r := &ParameterRangeRule{Parameter: "x", Required: true}
	p := testutil.NewProposalBuilder("p").Build()
	issues := r.Check(p)
	require.Len(t, issues, 1)
	_, ok := r.Remedy(p, issues[0])
	assert.False(t, ok)
}

func TestRequiredElementRule(t *testing.T) {
	r := &RequiredElementRule{
		RuleDomain:  "Egress",
		ElementType: "exit",
		MinCount:    2,
		Severity:    core.SeverityCritical,
		Template:    &core.Element{Name: "emergency exit", Properties: map[string]any{"width": 1.0}},
	}
	p := testutil.NewProposalBuilder("p").Element("w1", "wall").Element("e1", "Exit").Build()

	issues := r.Check(p)
	require.Len(t, issues, 1)
	assert.Equal(t, "REQUIRED_EXIT", issues[0].Code)
	assert.Equal(t, "requires 2 exit element(s), found 1", issues[0].Description)

	s, ok := r.Remedy(p, issues[0])
	require.True(t, ok)
	assert.Equal(t, "Add exit", s.Title)
	assert.Equal(t, core.PriorityUrgent, s.Priority)
	require.Len(t, s.Modifications, 1)

	_, err := p.Apply(s.Modifications[0], "test")
	require.NoError(t, err)
	assert.Empty(t, r.Check(p))

	added := p.Elements()[2]
	assert.Equal(t, "emergency exit", added.Name)
	assert.Equal(t, "exit-1", added.ID)

	added.Properties["width"] = 5.0
	assert.Equal(t, 1.0, r.Template.Properties["width"])

	_, ok = r.Remedy(p, issues[0])
	assert.False(t, ok, "nothing left to add")
}

func TestRequiredElementRule_DefaultsToOne(t *testing.T) {
	r := &RequiredElementRule{ElementType: "stair", Severity: core.SeverityError}
	assert.Len(t, r.Check(testutil.NewProposalBuilder("p").Build()), 1)
	assert.Empty(t, r.Check(testutil.NewProposalBuilder("p").Element("s1", "stair").Build()))
}

func TestSeverityPenalty(t *testing.T) {
	assert.Zero(t, SeverityPenalty(core.SeverityInfo))
	assert.Less(t, SeverityPenalty(core.SeverityMinor), SeverityPenalty(core.SeverityWarning))
	assert.Less(t, SeverityPenalty(core.SeverityWarning), SeverityPenalty(core.SeverityMajor))
	assert.Less(t, SeverityPenalty(core.SeverityMajor), SeverityPenalty(core.SeverityError))
	assert.Equal(t, 0.5, SeverityPenalty(core.SeverityCritical))
}

package evaluator

import (
	"testing"

	"github.com/stingtools/council/core"
	"github.com/stingtools/council/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfile_BuildRules(t *testing.T) {
	p := Profile{
		ID:         "fire",
		Specialty:  "fire",
		Weight:     0.9,
		Confidence: 0.6,
		Deference:  0.25,
		Ranges:     []ParameterRangeRule{{Parameter: "corridor_width", Min: ptr(0.9), Severity: core.SeverityMajor}},
		Required:   []RequiredElementRule{{ElementType: "exit", Severity: core.SeverityCritical}},
	}
	e, err := p.Build(nil, nil)
	require.NoError(t, err)

	re, ok := e.(*RuleEvaluator)
	require.True(t, ok)
	assert.Equal(t, "fire", re.ID())
	assert.Equal(t, "Fire", re.Name())
	assert.Equal(t, core.SpecialtyFire, re.Specialty())
	assert.Equal(t, 0.9, re.ExpertiseWeight())
	assert.Equal(t, 0.6, re.confidence)
	assert.Equal(t, 0.25, re.deference)
	require.Len(t, re.Rules(), 2)
	assert.Equal(t, "RANGE_CORRIDOR_WIDTH", re.Rules()[0].Code())
	assert.Equal(t, "REQUIRED_EXIT", re.Rules()[1].Code())
	assert.True(t, re.IsActive())
}

func TestProfile_BuildModel(t *testing.T) {
	p := Profile{ID: "cost-llm", Name: "Cost reviewer", Specialty: "Cost", Kind: KindModel, Disabled: true}

	_, err := p.Build(nil, nil)
	require.Error(t, err)

	e, err := p.Build(model.NewMockModel("m"), nil)
	require.NoError(t, err)
	me, ok := e.(*ModelEvaluator)
	require.True(t, ok)
	assert.Equal(t, "Cost reviewer", me.Name())
	assert.Equal(t, DefaultModelEvaluatorOptions.ExpertiseWeight, me.ExpertiseWeight())
	assert.False(t, me.IsActive())
}

func TestProfile_BuildErrors(t *testing.T) {
	_, err := Profile{ID: "x", Specialty: "Astrology"}.Build(nil, nil)
	assert.ErrorContains(t, err, `unknown specialty "Astrology"`)

	_, err = Profile{ID: "x", Specialty: "Cost", Kind: "oracle"}.Build(nil, nil)
	assert.ErrorContains(t, err, `unknown kind "oracle"`)
}

func TestBuildAll(t *testing.T) {
	evs, err := BuildAll([]Profile{
		{ID: "a", Specialty: "Spatial"},
		{ID: "b", Specialty: "Acoustic"},
	}, nil, nil)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, "a", evs[0].ID())
	assert.Equal(t, core.SpecialtyAcoustic, evs[1].Specialty())

	_, err = BuildAll([]Profile{{ID: "a", Specialty: "Spatial"}, {ID: "bad"}}, nil, nil)
	assert.Error(t, err)
}

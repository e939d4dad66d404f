package core

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOffice() *DesignProposal {
	return NewProposal("office", "Office", []Element{
		{ID: "w1", Type: "wall", Properties: map[string]any{"rating": 60}},
		{ID: "x1", Type: "exit"},
	}, map[string]any{"storeys": 3})
}

func TestNewProposal(t *testing.T) {
	elements := []Element{{ID: "w1", Type: "wall", Properties: map[string]any{"rating": 60}}}
	params := map[string]any{"storeys": 3}
	p := NewProposal("", "anon", elements, params)

	assert.NotEmpty(t, p.ID())
	assert.Equal(t, 0, p.Version())

	elements[0].Properties["rating"] = 30
	params["storeys"] = 9
	e, ok := p.Element("w1")
	require.True(t, ok)
	assert.Equal(t, 60, e.Properties["rating"], "inputs are copied")
	v, _ := p.Parameter("storeys")
	assert.Equal(t, 3, v)
}

func TestApply(t *testing.T) {
	tests := []struct {
		name  string
		mod   Modification
		check func(t *testing.T, p *DesignProposal)
	}{
		{
			name: "add element",
			mod:  Modification{Kind: ModAddElement, Element: &Element{ID: "r1", Type: "ramp"}},
			check: func(t *testing.T, p *DesignProposal) {
				_, ok := p.Element("r1")
				assert.True(t, ok)
				assert.Len(t, p.Elements(), 3)
			},
		},
		{
			name: "add element generates id",
			mod:  Modification{Kind: ModAddElement, Element: &Element{Type: "ramp"}},
			check: func(t *testing.T, p *DesignProposal) {
				els := p.Elements()
				require.Len(t, els, 3)
				assert.NotEmpty(t, els[2].ID)
				assert.Equal(t, els[2].ID, p.Modifications()[0].Modification.Element.ID)
			},
		},
		{
			name: "update element merges",
			mod:  Modification{Kind: ModUpdateElement, ElementID: "w1", Element: &Element{Name: "core wall", Properties: map[string]any{"thickness": 0.3}}},
			check: func(t *testing.T, p *DesignProposal) {
				e, _ := p.Element("w1")
				assert.Equal(t, "wall", e.Type)
				assert.Equal(t, "core wall", e.Name)
				assert.Equal(t, map[string]any{"rating": 60, "thickness": 0.3}, e.Properties)
			},
		},
		{
			name: "remove element",
			mod:  Modification{Kind: ModRemoveElement, ElementID: "x1"},
			check: func(t *testing.T, p *DesignProposal) {
				_, ok := p.Element("x1")
				assert.False(t, ok)
			},
		},
		{
			name: "set parameter",
			mod:  Modification{Kind: ModSetParameter, Parameter: "height", Value: 12.5},
			check: func(t *testing.T, p *DesignProposal) {
				v, ok := p.Parameter("height")
				require.True(t, ok)
				assert.Equal(t, 12.5, v)
			},
		},
		{
			name: "nil value deletes parameter",
			mod:  Modification{Kind: ModSetParameter, Parameter: "storeys"},
			check: func(t *testing.T, p *DesignProposal) {
				_, ok := p.Parameter("storeys")
				assert.False(t, ok)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newOffice()
			entry, err := p.Apply(tt.mod, "test")
			require.NoError(t, err)
			assert.Equal(t, 1, entry.Sequence)
			assert.Equal(t, "test", entry.Source)
			assert.NotEmpty(t, entry.Modification.ID)
			assert.Equal(t, 1, p.Version())
			tt.check(t, p)
		})
	}
}

func TestApply_Rejected(t *testing.T) {
	mods := map[string]Modification{
		"add without element":   {Kind: ModAddElement},
		"duplicate element":     {Kind: ModAddElement, Element: &Element{ID: "w1"}},
		"update missing":        {Kind: ModUpdateElement, ElementID: "nope", Element: &Element{Name: "x"}},
		"update without fields": {Kind: ModUpdateElement, ElementID: "w1"},
		"remove missing":        {Kind: ModRemoveElement, ElementID: "nope"},
		"parameter without key": {Kind: ModSetParameter, Value: 1},
		"unknown kind":          {Kind: ModificationKind(42)},
	}
	for name, mod := range mods {
		t.Run(name, func(t *testing.T) {
			p := newOffice()
			before := p.Snapshot()
			_, err := p.Apply(mod, "test")
			require.ErrorIs(t, err, ErrInvalidModification)
			assert.Equal(t, 0, p.Version())
			assert.Equal(t, before.Elements, p.Elements())
		})
	}
}

func TestSnapshotAt_ReplaysLog(t *testing.T) {
	p := newOffice()
	_, err := p.Apply(Modification{Kind: ModSetParameter, Parameter: "storeys", Value: 4}, "a")
	require.NoError(t, err)
	_, err = p.Apply(Modification{Kind: ModRemoveElement, ElementID: "x1"}, "b")
	require.NoError(t, err)
	_, err = p.Apply(Modification{Kind: ModAddElement, Element: &Element{ID: "x2", Type: "exit"}}, "c")
	require.NoError(t, err)

	v0, err := p.SnapshotAt(0)
	require.NoError(t, err)
	assert.Equal(t, 3, v0.Parameters["storeys"])
	_, ok := v0.Element("x1")
	assert.True(t, ok)

	v2, err := p.SnapshotAt(2)
	require.NoError(t, err)
	assert.Equal(t, 4, v2.Parameters["storeys"])
	assert.Len(t, v2.Elements, 1)

	head, err := p.SnapshotAt(p.Version())
	require.NoError(t, err)
	current := p.Snapshot()
	assert.Equal(t, current.Elements, head.Elements)
	assert.Equal(t, current.Parameters, head.Parameters)
	assert.Equal(t, 3, current.Version)

	_, err = p.SnapshotAt(4)
	assert.Error(t, err)
	_, err = p.SnapshotAt(-1)
	assert.Error(t, err)
}

func TestClone_Independent(t *testing.T) {
	p := newOffice()
	p.SetDescription("three storeys")
	_, err := p.Apply(Modification{Kind: ModSetParameter, Parameter: "storeys", Value: 4}, "a")
	require.NoError(t, err)

	c := p.Clone()
	assert.Equal(t, p.ID(), c.ID())
	assert.Equal(t, "three storeys", c.Description())
	assert.Equal(t, 1, c.Version())

	_, err = c.Apply(Modification{Kind: ModRemoveElement, ElementID: "w1"}, "clone")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Version())
	_, ok := p.Element("w1")
	assert.True(t, ok)
}

func TestReadersReturnCopies(t *testing.T) {
	p := newOffice()
	p.Elements()[0].Properties["rating"] = 0
	p.Parameters()["storeys"] = 0
	snap := p.Snapshot()
	snap.Parameters["storeys"] = 0

	e, _ := p.Element("w1")
	assert.Equal(t, 60, e.Properties["rating"])
	v, _ := p.Parameter("storeys")
	assert.Equal(t, 3, v)
}

func TestApply_ConcurrentReaders(t *testing.T) {
	p := newOffice()
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				_ = p.Snapshot()
				_, _ = p.Parameter("storeys")
			}
		}()
	}
	for i := range 50 {
		_, err := p.Apply(Modification{Kind: ModSetParameter, Parameter: "n", Value: i}, "w")
		require.NoError(t, err)
	}
	wg.Wait()
	assert.Equal(t, 50, p.Version())
}

func TestModificationKind_Text(t *testing.T) {
	var k ModificationKind
	require.NoError(t, k.UnmarshalText([]byte(" Update_Element ")))
	assert.Equal(t, ModUpdateElement, k)

	b, err := ModRemoveElement.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "remove_element", string(b))

	err = k.UnmarshalText([]byte("teleport"))
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidModification))
	assert.Equal(t, "ModificationKind(9)", ModificationKind(9).String())
}

package council

import (
	"context"
	"sync"
	"testing"

	"github.com/stingtools/council/bus"
	"github.com/stingtools/council/config"
	"github.com/stingtools/council/conflict"
	"github.com/stingtools/council/core"
	"github.com/stingtools/council/evaluator"
	"github.com/stingtools/council/internal/testutil"
	"github.com/stingtools/council/model"
	"github.com/stingtools/council/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func corridorRule(sev core.Severity) evaluator.Rule {
	lo := 0.9
	return &evaluator.ParameterRangeRule{Parameter: "corridor_width", Min: &lo, Severity: sev}
}

func TestNew_Defaults(t *testing.T) {
	c := New()
	require.NotNil(t, c.Bus())
	assert.Empty(t, c.Evaluators())
	assert.Empty(t, c.Sessions())
	assert.Equal(t, 3, c.Coordinator().Config().MaxConsensusRounds)
	assert.Equal(t, conflict.VoteByScore, c.Coordinator().Resolver().VoteBasis())
}

func TestRegisterAndConsensus(t *testing.T) {
	c := New()
	require.NoError(t, c.Register(testutil.NewFakeEvaluator("fire", core.SpecialtyFire, 0.9)))
	require.NoError(t, c.Register(testutil.NewFakeEvaluator("cost", core.SpecialtyCost, 0.8)))
	require.NoError(t, c.Register(testutil.NewFakeEvaluator("fire", core.SpecialtyFire)), "duplicate ids are ignored")
	require.Len(t, c.Evaluators(), 2)

	var mu sync.Mutex
	var topics []string
	c.Bus().Subscribe("observer", bus.Wildcard, func(_ context.Context, msg bus.Message) error {
		mu.Lock()
		defer mu.Unlock()
		topics = append(topics, msg.Topic)
		return nil
	})

	res, err := c.GetConsensus(t.Context(), testutil.NewProposalBuilder("p").Build(), core.EvaluationContext{})
	require.NoError(t, err)
	assert.True(t, res.Approved)
	assert.InDelta(t, 0.85, res.Score, 1e-9)

	mu.Lock()
	assert.Equal(t, []string{bus.TopicConsensusCompleted}, topics)
	mu.Unlock()

	assert.True(t, c.Unregister("cost"))
	assert.False(t, c.Unregister("cost"))
	assert.Len(t, c.Evaluators(), 1)
}

func TestValidateSuggestNegotiate(t *testing.T) {
	c := New()
	fire := evaluator.NewRuleEvaluator(core.SpecialtyFire, []evaluator.Rule{corridorRule(core.SeverityCritical)},
		func(o *evaluator.RuleEvaluatorOptions) { o.ID = "fire" })
	require.NoError(t, c.Register(fire))

	p := testutil.NewProposalBuilder("p").Param("corridor_width", 0.8).Build()

	mod := testutil.SetParam("corridor_width", 0.5)
	vr, err := c.ValidateAction(t.Context(), core.Action{Type: "modify", Proposal: p, Modification: &mod})
	require.NoError(t, err)
	assert.False(t, vr.Valid)

	suggestions, err := c.CollectSuggestions(t.Context(), core.SuggestionContext{Proposal: p})
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "Set corridor_width to 0.9", suggestions[0].Title)

	nr, err := c.Negotiate(t.Context(), p, []string{"Safety", "Cost"}, nil)
	require.NoError(t, err)
	assert.Equal(t, core.NegotiationFrontierFound, nr.Status)
	require.Len(t, nr.Frontier, 1)
	require.NotNil(t, nr.BestCompromise)

	_, err = c.Negotiate(t.Context(), p, []string{"Safety"}, nil)
	assert.ErrorIs(t, err, core.ErrTooFewObjectives)
}

func TestCreateSession(t *testing.T) {
	c := New(func(o *Options) {
		o.Session.MaxIterations = 4
		o.Session.Parameters = map[string]any{"site": "north"}
	})
	require.NoError(t, c.Register(testutil.NewFakeEvaluator("fire", core.SpecialtyFire, 0.9)))

	_, err := c.CreateSession(nil)
	assert.ErrorIs(t, err, core.ErrNilProposal)

	s, err := c.CreateSession(testutil.NewProposalBuilder("p").Build(), func(o *session.Options) { o.ID = "s-1" })
	require.NoError(t, err)
	assert.Equal(t, "s-1", s.ID())
	assert.Equal(t, 4, s.MaxIterations())

	got, ok := c.Session("s-1")
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, []string{"s-1"}, c.Sessions())
	assert.Len(t, c.ActiveSessions(), 1)

	assert.True(t, c.CloseSession("s-1"))
	assert.Equal(t, session.StatusCancelled, s.Status())
	assert.False(t, c.CloseSession("s-1"))
	assert.Empty(t, c.Sessions())
}

func TestRefine_Converges(t *testing.T) {
	c := New()
	fire := evaluator.NewRuleEvaluator(core.SpecialtyFire, []evaluator.Rule{corridorRule(core.SeverityCritical)},
		func(o *evaluator.RuleEvaluatorOptions) { o.ID = "fire" })
	require.NoError(t, c.Register(fire))

	p := testutil.NewProposalBuilder("p").Param("corridor_width", 0.8).Build()
	res, err := c.Refine(t.Context(), p)
	require.NoError(t, err)
	assert.Equal(t, session.StatusConverged, res.Status)
	require.Len(t, res.Iterations, 2)
	assert.False(t, res.Iterations[0].Consensus.Approved)
	assert.Equal(t, 0.9, res.FinalProposal.Parameters["corridor_width"])
	assert.Len(t, c.Sessions(), 1)
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Coordinator.MaxConsensusRounds = 2
	cfg.Conflict.VoteBasis = "confidence"
	cfg.Evaluators = []evaluator.Profile{
		{ID: "fire", Specialty: "Fire", Required: []evaluator.RequiredElementRule{{ElementType: "exit", Severity: core.SeverityCritical}}},
		{ID: "cost", Specialty: "Cost", Kind: evaluator.KindModel},
	}

	c, err := FromConfig(cfg, nil, &testutil.CaptureLogger{})
	require.NoError(t, err)
	require.Len(t, c.Evaluators(), 2)
	assert.Equal(t, 2, c.Coordinator().Config().MaxConsensusRounds)
	assert.Equal(t, conflict.VoteByConfidence, c.Coordinator().Resolver().VoteBasis())

	res, err := c.GetConsensus(t.Context(), testutil.NewProposalBuilder("p").Element("x1", "exit").Build(), core.EvaluationContext{})
	require.NoError(t, err)
	assert.Len(t, res.Opinions, 2)

	cfg.Model.Provider = "llama"
	_, err = FromConfig(cfg, nil, nil)
	assert.ErrorContains(t, err, `unknown model provider "llama"`)

	cfg.Evaluators[0].Specialty = "Tarot"
	_, err = FromConfig(cfg, model.NewMockModel("m"), nil)
	assert.Error(t, err)
}

func TestNewModel(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.ModelConfig
		provider string
		model    string
	}{
		{"mock", config.ModelConfig{Provider: "mock"}, "mock", "mock"},
		{"empty provider", config.ModelConfig{Name: "canned"}, "mock", "canned"},
		{"anthropic", config.ModelConfig{Provider: "anthropic", Name: "claude-3-5-haiku-latest", APIKey: "k"}, "anthropic", "claude-3-5-haiku-latest"},
		{"openai", config.ModelConfig{Provider: "openai", Name: "gpt-4o", APIKey: "k", MaxTokens: 64}, "openai", "gpt-4o"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewModel(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.provider, m.Info().Provider)
			assert.Equal(t, tt.model, m.Info().Name)
		})
	}

	_, err := NewModel(config.ModelConfig{Provider: "llama"})
	assert.Error(t, err)
}

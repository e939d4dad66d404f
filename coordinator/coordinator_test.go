package coordinator

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stingtools/council/bus"
	"github.com/stingtools/council/core"
	"github.com/stingtools/council/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCoordinator(t *testing.T, log *testutil.CaptureLogger, evaluators ...core.Evaluator) *Coordinator {
	t.Helper()
	c := New(func(o *Options) {
		o.Logger = log
		o.Config.EvaluatorTimeout = 200 * time.Millisecond
	})
	for _, e := range evaluators {
		require.NoError(t, c.Register(e))
	}
	return c
}

func proposal() *core.DesignProposal {
	return testutil.NewProposalBuilder("p-1").Element("w1", "wall").Param("budget", 100.0).Build()
}

func TestNew_Defaults(t *testing.T) {
	c := New()
	assert.Equal(t, DefaultConfig, c.Config())
	assert.NotNil(t, c.Bus())
	assert.NotNil(t, c.Resolver())
}

func TestNew_SanitizesConfig(t *testing.T) {
	c := New(func(o *Options) {
		o.Config = Config{}
	})
	cfg := c.Config()
	assert.Equal(t, 1, cfg.MaxConsensusRounds)
	assert.Equal(t, DefaultConfig.EvaluatorTimeout, cfg.EvaluatorTimeout)
	assert.Equal(t, DefaultConfig.DefaultExpertise, cfg.DefaultExpertise)
	assert.Equal(t, DefaultConfig.MaxSuggestions, cfg.MaxSuggestions)
}

func TestRegistry(t *testing.T) {
	c := New()
	a := testutil.NewFakeEvaluator("a", core.SpecialtyCost)
	b := testutil.NewFakeEvaluator("b", core.SpecialtyFire)

	require.NoError(t, c.Register(a))
	require.NoError(t, c.Register(b))
	require.NoError(t, c.Register(a))
	assert.ErrorIs(t, c.Register(nil), core.ErrNilEvaluator)

	evs := c.Evaluators()
	require.Len(t, evs, 2)
	assert.Equal(t, "a", evs[0].ID())
	assert.Equal(t, "b", evs[1].ID())

	got, ok := c.Evaluator("b")
	require.True(t, ok)
	assert.Same(t, b, got)

	assert.True(t, c.Unregister("a"))
	assert.False(t, c.Unregister("a"))
	_, ok = c.Evaluator("a")
	assert.False(t, ok)
	got, ok = c.Evaluator("b")
	require.True(t, ok)
	assert.Same(t, b, got)

	// the earlier snapshot is unaffected
	assert.Len(t, evs, 2)
}

func TestGetConsensus_NoAgents(t *testing.T) {
	c := newTestCoordinator(t, &testutil.CaptureLogger{})

	res, err := c.GetConsensus(context.Background(), proposal(), core.EvaluationContext{})
	require.NoError(t, err)
	assert.Equal(t, core.StatusNoAgents, res.Status)
	assert.Empty(t, res.Opinions)
	assert.False(t, res.Approved)
}

func TestGetConsensus_InactiveEvaluatorsAreSkipped(t *testing.T) {
	idle := testutil.NewFakeEvaluator("idle", core.SpecialtyCost)
	idle.SetActive(false)
	c := newTestCoordinator(t, &testutil.CaptureLogger{}, idle)

	res, err := c.GetConsensus(context.Background(), proposal(), core.EvaluationContext{})
	require.NoError(t, err)
	assert.Equal(t, core.StatusNoAgents, res.Status)
	assert.Equal(t, 0, idle.EvaluateCalls())
}

func TestGetConsensus_ContractErrors(t *testing.T) {
	c := newTestCoordinator(t, &testutil.CaptureLogger{}, testutil.NewFakeEvaluator("a", core.SpecialtyCost))

	_, err := c.GetConsensus(context.Background(), nil, core.EvaluationContext{})
	assert.ErrorIs(t, err, core.ErrNilProposal)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.GetConsensus(ctx, proposal(), core.EvaluationContext{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGetConsensus_FirstRoundConsensus(t *testing.T) {
	a := testutil.NewFakeEvaluator("a", core.SpecialtyStructural, 0.72)
	b := testutil.NewFakeEvaluator("b", core.SpecialtyFire, 0.75)
	d := testutil.NewFakeEvaluator("c", core.SpecialtyCost, 0.70)
	c := newTestCoordinator(t, &testutil.CaptureLogger{}, a, b, d)

	res, err := c.GetConsensus(context.Background(), proposal(), core.EvaluationContext{})
	require.NoError(t, err)

	assert.Equal(t, core.StatusConsensus, res.Status)
	assert.True(t, res.Approved)
	assert.Equal(t, 1, res.Rounds)
	assert.Len(t, res.Opinions, 3)
	assert.InDelta(t, (0.72+0.75+0.70)/3, res.Score, 1e-9)
	assert.Empty(t, res.Conflicts)
	assert.Empty(t, a.Feedback())
	for _, f := range []*testutil.FakeEvaluator{a, b, d} {
		assert.Equal(t, 1, f.EvaluateCalls())
		assert.Equal(t, 1, f.LastEvaluationContext().Round)
	}
}

func TestGetConsensus_PassesEvaluationContext(t *testing.T) {
	a := testutil.NewFakeEvaluator("a", core.SpecialtyCost)
	c := newTestCoordinator(t, &testutil.CaptureLogger{}, a)

	_, err := c.GetConsensus(context.Background(), proposal(), core.EvaluationContext{
		Round:       7,
		Parameters:  map[string]any{"phase": "schematic"},
		SharedState: map[string]any{"iteration": 2},
	})
	require.NoError(t, err)

	ec := a.LastEvaluationContext()
	assert.Equal(t, 1, ec.Round)
	assert.Equal(t, "schematic", ec.Parameters["phase"])
	assert.Equal(t, 2, ec.SharedState["iteration"])
}

func TestGetConsensus_CriticalIssueBlocksApproval(t *testing.T) {
	critical := core.Issue{Code: "beam", Description: "undersized beam", Severity: core.SeverityCritical, Domain: "LoadBearing"}
	a := testutil.NewFakeEvaluator("a", core.SpecialtyStructural, 0.9).WithIssues(critical)
	b := testutil.NewFakeEvaluator("b", core.SpecialtyCost, 0.9)
	c := newTestCoordinator(t, &testutil.CaptureLogger{}, a, b)

	res, err := c.GetConsensus(context.Background(), proposal(), core.EvaluationContext{})
	require.NoError(t, err)
	assert.Equal(t, core.StatusConsensus, res.Status)
	assert.InDelta(t, 0.9, res.Score, 1e-9)
	assert.False(t, res.Approved)
	assert.True(t, res.HasCriticalIssues())
	require.Len(t, res.Issues, 1)
	assert.Equal(t, "beam", res.Issues[0].Code)
}

func TestGetConsensus_WeightedAggregate(t *testing.T) {
	tests := []struct {
		name  string
		a, b  *testutil.FakeEvaluator
		score float64
	}{
		{
			name:  "expertise weights",
			a:     testutil.NewFakeEvaluator("a", core.SpecialtyCost, 1.0).WithWeight(1.0),
			b:     testutil.NewFakeEvaluator("b", core.SpecialtyFire, 0.0).WithWeight(0.25),
			score: 1.0 / 1.25,
		},
		{
			name:  "non-positive weight falls back to default",
			a:     testutil.NewFakeEvaluator("a", core.SpecialtyCost, 1.0).WithWeight(0),
			b:     testutil.NewFakeEvaluator("b", core.SpecialtyFire, 0.0).WithWeight(0.5),
			score: 0.5,
		},
		{
			name: "critical issue doubles weight",
			a: testutil.NewFakeEvaluator("a", core.SpecialtyCost, 0.2).
				WithIssues(core.Issue{Code: "x", Severity: core.SeverityMajor}),
			b:     testutil.NewFakeEvaluator("b", core.SpecialtyFire, 0.8),
			score: (2*0.2 + 0.8) / 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(func(o *Options) { o.Config.MaxConsensusRounds = 1 })
			require.NoError(t, c.Register(tt.a))
			require.NoError(t, c.Register(tt.b))

			res, err := c.GetConsensus(context.Background(), proposal(), core.EvaluationContext{})
			require.NoError(t, err)
			assert.InDelta(t, tt.score, res.Score, 1e-9)
			assert.GreaterOrEqual(t, res.Score, 0.0)
			assert.LessOrEqual(t, res.Score, 1.0)
		})
	}
}

func TestGetConsensus_OutOfRangeScoresAreClamped(t *testing.T) {
	a := testutil.NewFakeEvaluator("a", core.SpecialtyCost, 0.8)
	c := newTestCoordinator(t, &testutil.CaptureLogger{}, a, &rawEvaluator{FakeEvaluator: testutil.NewFakeEvaluator("raw", core.SpecialtyFire), score: 7})

	res, err := c.GetConsensus(context.Background(), proposal(), core.EvaluationContext{})
	require.NoError(t, err)
	for _, op := range res.Opinions {
		assert.LessOrEqual(t, op.Score, 1.0)
	}
	assert.LessOrEqual(t, res.Score, 1.0)
}

func TestGetConsensus_NaNScoresAreClamped(t *testing.T) {
	a := testutil.NewFakeEvaluator("a", core.SpecialtyCost, 0.8)
	c := newTestCoordinator(t, &testutil.CaptureLogger{}, a, &rawEvaluator{FakeEvaluator: testutil.NewFakeEvaluator("raw", core.SpecialtyFire), score: math.NaN()})

	res, err := c.GetConsensus(context.Background(), proposal(), core.EvaluationContext{})
	require.NoError(t, err)
	require.Len(t, res.Opinions, 2)
	for _, op := range res.Opinions {
		assert.False(t, math.IsNaN(op.Score))
		assert.GreaterOrEqual(t, op.Score, 0.0)
	}
	assert.False(t, math.IsNaN(res.Score))
	assert.GreaterOrEqual(t, res.Score, 0.0)
	assert.LessOrEqual(t, res.Score, 1.0)
}

// rawEvaluator returns an opinion without going through core.NewOpinion.
type rawEvaluator struct {
	*testutil.FakeEvaluator
	score float64
}

func (r *rawEvaluator) Evaluate(context.Context, *core.DesignProposal, core.EvaluationContext) (*core.Opinion, error) {
	return &core.Opinion{EvaluatorID: r.ID(), Specialty: r.Specialty(), Score: r.score, Confidence: 3}, nil
}

func TestGetConsensus_FeedbackConverges(t *testing.T) {
	a := testutil.NewFakeEvaluator("a", core.SpecialtyCost, 0.2).WithDeference(0.5)
	b := testutil.NewFakeEvaluator("b", core.SpecialtyFire, 0.9).WithDeference(0.5)
	c := newTestCoordinator(t, &testutil.CaptureLogger{}, a, b)

	res, err := c.GetConsensus(context.Background(), proposal(), core.EvaluationContext{})
	require.NoError(t, err)

	assert.Equal(t, core.StatusConsensus, res.Status)
	assert.Equal(t, 2, res.Rounds)
	assert.InDelta(t, 0.55, res.Score, 1e-9)
	assert.False(t, res.Approved)

	// each evaluator hears from the other only
	require.Len(t, a.Feedback(), 1)
	assert.Equal(t, "b", a.Feedback()[0].EvaluatorID)
	require.Len(t, b.Feedback(), 1)
	assert.Equal(t, "a", b.Feedback()[0].EvaluatorID)
	assert.Equal(t, 2, a.LastEvaluationContext().Round)
	for _, op := range res.Opinions {
		assert.Equal(t, 2, op.Round)
	}
}

func TestGetConsensus_DisagreementAfterMaxRounds(t *testing.T) {
	a := testutil.NewFakeEvaluator("a", core.SpecialtyCost, 0.2)
	b := testutil.NewFakeEvaluator("b", core.SpecialtyFire, 0.9)
	c := newTestCoordinator(t, &testutil.CaptureLogger{}, a, b)

	res, err := c.GetConsensus(context.Background(), proposal(), core.EvaluationContext{})
	require.NoError(t, err)

	assert.Equal(t, core.StatusDisagreement, res.Status)
	assert.Equal(t, DefaultConfig.MaxConsensusRounds, res.Rounds)
	assert.Equal(t, DefaultConfig.MaxConsensusRounds, a.EvaluateCalls())
	assert.Len(t, res.DissentingOpinions, 2)
	// two feedback rounds, one peer opinion each
	assert.Len(t, a.Feedback(), 2)
}

func TestGetConsensus_MajorityWithDissentAndConflicts(t *testing.T) {
	layout := core.Issue{Code: "corridor", Description: "narrow corridor", Severity: core.SeverityMinor, Domain: "Layout"}
	a := testutil.NewFakeEvaluator("a", core.SpecialtySpatial, 0.4).WithIssues(layout)
	b := testutil.NewFakeEvaluator("b", core.SpecialtyCost, 0.4).WithIssues(layout)
	d := testutil.NewFakeEvaluator("c", core.SpecialtyAcoustic, 0.4)
	e := testutil.NewFakeEvaluator("d", core.SpecialtyAesthetic, 1.0)
	c := newTestCoordinator(t, &testutil.CaptureLogger{}, a, b, d, e)

	res, err := c.GetConsensus(context.Background(), proposal(), core.EvaluationContext{})
	require.NoError(t, err)

	assert.Equal(t, core.StatusMajority, res.Status)
	assert.InDelta(t, 0.55, res.Score, 1e-9)
	require.Len(t, res.DissentingOpinions, 1)
	assert.Equal(t, "d", res.DissentingOpinions[0].EvaluatorID)

	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "Layout", res.Conflicts[0].Domain)
	// Spatial owns Layout: 1.2 × 1.5 × 0.4 beats Cost 1.0 × 0.4
	assert.Equal(t, "a", res.Conflicts[0].Winner.EvaluatorID)
	require.Len(t, res.Issues, 1)
}

func TestGetConsensus_FailingEvaluatorsAreOmitted(t *testing.T) {
	log := &testutil.CaptureLogger{}
	ok1 := testutil.NewFakeEvaluator("ok1", core.SpecialtyCost, 0.8)
	ok2 := testutil.NewFakeEvaluator("ok2", core.SpecialtyFire, 0.8)
	erring := testutil.NewFakeEvaluator("erring", core.SpecialtySafety).WithEvaluateError(errors.New("rules engine down"))
	panicking := testutil.NewFakeEvaluator("panicking", core.SpecialtyStructural).WithPanic()
	slow := testutil.NewFakeEvaluator("slow", core.SpecialtyAcoustic).WithDelay(5 * time.Second)

	c := New(func(o *Options) {
		o.Logger = log
		o.Config.EvaluatorTimeout = 20 * time.Millisecond
	})
	for _, e := range []core.Evaluator{ok1, erring, panicking, slow, ok2} {
		require.NoError(t, c.Register(e))
	}

	start := time.Now()
	res, err := c.GetConsensus(context.Background(), proposal(), core.EvaluationContext{})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	assert.Equal(t, core.StatusConsensus, res.Status)
	require.Len(t, res.Opinions, 2)
	assert.Equal(t, "ok1", res.Opinions[0].EvaluatorID)
	assert.Equal(t, "ok2", res.Opinions[1].EvaluatorID)

	assert.True(t, log.Contains("error", "evaluator panicked"))
	assert.True(t, log.Contains("warn", "evaluator call"))
}

func TestGetConsensus_AllEvaluatorsFail(t *testing.T) {
	log := &testutil.CaptureLogger{}
	c := newTestCoordinator(t, log,
		testutil.NewFakeEvaluator("a", core.SpecialtyCost).WithEvaluateError(errors.New("boom")),
		testutil.NewFakeEvaluator("b", core.SpecialtyFire).WithPanic(),
	)

	res, err := c.GetConsensus(context.Background(), proposal(), core.EvaluationContext{})
	require.NoError(t, err)
	assert.Equal(t, core.StatusNoAgents, res.Status)
	assert.Empty(t, res.Opinions)
	assert.True(t, log.Contains("warn", "every evaluator abstained"))
}

func TestGetConsensus_PublishesResult(t *testing.T) {
	c := newTestCoordinator(t, &testutil.CaptureLogger{}, testutil.NewFakeEvaluator("a", core.SpecialtyCost, 0.9))

	var got []bus.Message
	c.Bus().Subscribe("watcher", bus.TopicConsensusCompleted, func(_ context.Context, m bus.Message) error {
		got = append(got, m)
		return nil
	})

	res, err := c.GetConsensus(context.Background(), proposal(), core.EvaluationContext{})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, SenderID, got[0].SenderID)
	assert.Equal(t, "p-1", got[0].Metadata["proposal_id"])
	payload, ok := got[0].Payload.(core.ConsensusResult)
	require.True(t, ok)
	assert.Equal(t, res.Status, payload.Status)
	assert.Equal(t, res.Score, payload.Score)
}

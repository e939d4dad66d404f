package testutil

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stingtools/council/core"
)

// FakeEvaluator is a scriptable core.Evaluator for coordinator and session
// tests. Scores are returned in call order, the last one repeating. With a
// non-zero deference, every evaluation after feedback moves the previous
// score toward the mean of the feedback received since then.
type FakeEvaluator struct {
	id        string
	specialty core.Specialty
	active    atomic.Bool

	mu          sync.Mutex
	weight      float64
	scores      []float64
	issues      []core.Issue
	strengths   []string
	suggestions []core.Suggestion
	validation  *core.ValidationResult
	evalErr     error
	suggestErr  error
	validateErr error
	panicOnEval bool
	delay       time.Duration
	deference   float64

	last           float64
	pending        []float64
	feedback       []core.Opinion
	evalCalls      int
	suggestCalls   int
	validateCalls  int
	lastEvalCtx    core.EvaluationContext
	lastSuggestCtx core.SuggestionContext
}

var _ core.Evaluator = (*FakeEvaluator)(nil)

// NewFakeEvaluator creates an active evaluator with expertise weight 1.0. The
// id doubles as the name.
func NewFakeEvaluator(id string, specialty core.Specialty, scores ...float64) *FakeEvaluator {
	if len(scores) == 0 {
		scores = []float64{0.8}
	}
	f := &FakeEvaluator{id: id, specialty: specialty, weight: 1.0, scores: scores}
	f.active.Store(true)
	return f
}

// WithWeight sets the expertise weight (chainable).
func (f *FakeEvaluator) WithWeight(w float64) *FakeEvaluator { f.weight = w; return f }

// WithIssues sets the issues attached to every opinion (chainable).
func (f *FakeEvaluator) WithIssues(issues ...core.Issue) *FakeEvaluator {
	f.issues = issues
	return f
}

// WithStrengths sets the strengths attached to every opinion (chainable).
func (f *FakeEvaluator) WithStrengths(s ...string) *FakeEvaluator { f.strengths = s; return f }

// WithSuggestions sets the suggestions returned by Suggest (chainable).
func (f *FakeEvaluator) WithSuggestions(s ...core.Suggestion) *FakeEvaluator {
	f.suggestions = s
	return f
}

// WithValidation sets the result returned by Validate (chainable).
func (f *FakeEvaluator) WithValidation(v core.ValidationResult) *FakeEvaluator {
	f.validation = &v
	return f
}

// WithEvaluateError makes Evaluate fail (chainable).
func (f *FakeEvaluator) WithEvaluateError(err error) *FakeEvaluator { f.evalErr = err; return f }

// WithSuggestError makes Suggest fail (chainable).
func (f *FakeEvaluator) WithSuggestError(err error) *FakeEvaluator { f.suggestErr = err; return f }

// WithValidateError makes Validate fail (chainable).
func (f *FakeEvaluator) WithValidateError(err error) *FakeEvaluator { f.validateErr = err; return f }

// WithPanic makes Evaluate panic (chainable).
func (f *FakeEvaluator) WithPanic() *FakeEvaluator { f.panicOnEval = true; return f }

// WithDelay makes every call wait d or until ctx is done (chainable).
func (f *FakeEvaluator) WithDelay(d time.Duration) *FakeEvaluator { f.delay = d; return f }

// WithDeference sets how far feedback pulls the next score toward peers (chainable).
func (f *FakeEvaluator) WithDeference(d float64) *FakeEvaluator { f.deference = d; return f }

// SetActive toggles participation.
func (f *FakeEvaluator) SetActive(a bool) { f.active.Store(a) }

func (f *FakeEvaluator) ID() string                { return f.id }
func (f *FakeEvaluator) Name() string              { return f.id }
func (f *FakeEvaluator) Specialty() core.Specialty { return f.specialty }
func (f *FakeEvaluator) IsActive() bool            { return f.active.Load() }

func (f *FakeEvaluator) ExpertiseWeight() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.weight
}

func (f *FakeEvaluator) wait(ctx context.Context) error {
	if f.delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(f.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Evaluate implements core.Evaluator.
func (f *FakeEvaluator) Evaluate(ctx context.Context, _ *core.DesignProposal, ec core.EvaluationContext) (*core.Opinion, error) {
	if f.panicOnEval {
		panic("fake evaluator panic")
	}
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastEvalCtx = ec
	if f.evalErr != nil {
		f.evalCalls++
		return nil, f.evalErr
	}

	var score float64
	if f.deference > 0 && f.evalCalls > 0 && len(f.pending) > 0 {
		var sum float64
		for _, s := range f.pending {
			sum += s
		}
		mean := sum / float64(len(f.pending))
		score = f.last + f.deference*(mean-f.last)
	} else {
		idx := f.evalCalls
		if idx >= len(f.scores) {
			idx = len(f.scores) - 1
		}
		score = f.scores[idx]
	}
	f.pending = nil
	f.evalCalls++
	f.last = score

	op := core.NewOpinion(f, score, 0.9)
	op.Round = ec.Round
	op.Issues = append([]core.Issue(nil), f.issues...)
	op.Strengths = append([]string(nil), f.strengths...)
	return op, nil
}

// Suggest implements core.Evaluator.
func (f *FakeEvaluator) Suggest(ctx context.Context, sc core.SuggestionContext) ([]core.Suggestion, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.suggestCalls++
	f.lastSuggestCtx = sc
	if f.suggestErr != nil {
		return nil, f.suggestErr
	}
	out := make([]core.Suggestion, len(f.suggestions))
	copy(out, f.suggestions)
	for i := range out {
		out[i].EvaluatorID = f.id
		out[i].Specialty = f.specialty
	}
	return out, nil
}

// ReceiveFeedback implements core.Evaluator.
func (f *FakeEvaluator) ReceiveFeedback(_ context.Context, op core.Opinion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedback = append(f.feedback, op)
	f.pending = append(f.pending, op.Score)
	return nil
}

// Validate implements core.Evaluator.
func (f *FakeEvaluator) Validate(ctx context.Context, _ core.Action) (core.ValidationResult, error) {
	if err := f.wait(ctx); err != nil {
		return core.ValidationResult{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validateCalls++
	if f.validateErr != nil {
		return core.ValidationResult{}, f.validateErr
	}
	if f.validation != nil {
		return *f.validation, nil
	}
	return core.ValidationResult{Valid: true}, nil
}

// Feedback returns the opinions received via ReceiveFeedback.
func (f *FakeEvaluator) Feedback() []core.Opinion {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.Opinion(nil), f.feedback...)
}

// EvaluateCalls returns how many times Evaluate ran to completion or error.
func (f *FakeEvaluator) EvaluateCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.evalCalls
}

// SuggestCalls returns how many times Suggest ran.
func (f *FakeEvaluator) SuggestCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.suggestCalls
}

// ValidateCalls returns how many times Validate ran.
func (f *FakeEvaluator) ValidateCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validateCalls
}

// LastEvaluationContext returns the context passed to the latest Evaluate.
func (f *FakeEvaluator) LastEvaluationContext() core.EvaluationContext {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastEvalCtx
}

// LastSuggestionContext returns the context passed to the latest Suggest.
func (f *FakeEvaluator) LastSuggestionContext() core.SuggestionContext {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSuggestCtx
}

package evaluator

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/stingtools/council/core"
)

// Base bundles identity, weight, participation and the feedback buffer shared
// by concrete evaluators. Embed a *Base and supply Evaluate, Suggest and
// Validate to satisfy core.Evaluator. All methods are goroutine-safe.
type Base struct {
	id        string
	name      string
	specialty core.Specialty
	weight    float64
	active    atomic.Bool

	mu       sync.Mutex
	feedback []core.Opinion // every opinion received
	pending  []core.Opinion // received since the last TakeFeedback
}

// NewBase constructs an active Base. An empty id is replaced by a random
// uuid, an empty name falls back to the specialty label and the weight is
// clamped into [0,1].
func NewBase(id, name string, specialty core.Specialty, weight float64) *Base {
	if id == "" {
		id = uuid.NewString()
	}
	if name == "" {
		name = specialty.String()
	}
	b := &Base{id: id, name: name, specialty: specialty, weight: core.Clamp01(weight)}
	b.active.Store(true)
	return b
}

// ID returns the evaluator identity.
func (b *Base) ID() string { return b.id }

// Name returns the display name.
func (b *Base) Name() string { return b.name }

// Specialty returns the evaluator's domain.
func (b *Base) Specialty() core.Specialty { return b.specialty }

// ExpertiseWeight returns the aggregation weight in [0,1].
func (b *Base) ExpertiseWeight() float64 { return b.weight }

// IsActive reports whether the evaluator participates in coordinator operations.
func (b *Base) IsActive() bool { return b.active.Load() }

// SetActive toggles participation.
func (b *Base) SetActive(active bool) { b.active.Store(active) }

// ReceiveFeedback buffers a peer opinion for the next evaluation.
func (b *Base) ReceiveFeedback(ctx context.Context, op core.Opinion) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.feedback = append(b.feedback, op)
	b.pending = append(b.pending, op)
	return nil
}

// Feedback returns a copy of every peer opinion received so far.
func (b *Base) Feedback() []core.Opinion {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]core.Opinion(nil), b.feedback...)
}

// TakeFeedback returns the peer opinions received since the previous call
// and clears the pending buffer.
func (b *Base) TakeFeedback() []core.Opinion {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.pending
	b.pending = nil
	return out
}

// meanScore is the arithmetic mean of the opinions' scores.
func meanScore(ops []core.Opinion) (float64, bool) {
	if len(ops) == 0 {
		return 0, false
	}
	var sum float64
	for _, op := range ops {
		sum += op.Score
	}
	return sum / float64(len(ops)), true
}

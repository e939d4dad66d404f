package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stingtools/council/bus"
	"github.com/stingtools/council/core"
	"github.com/stingtools/council/logging"
)

// ErrSessionClosed is returned by Iterate once the session left StatusActive.
var ErrSessionClosed = errors.New("session is closed")

// Status is the lifecycle state of a session. Transitions are one-way: once
// a session leaves StatusActive it never runs another iteration.
type Status string

const (
	StatusActive        Status = "active"
	StatusConverged     Status = "converged"
	StatusMaxIterations Status = "max_iterations"
	StatusCancelled     Status = "cancelled"
	StatusError         Status = "error"
)

// Terminal reports whether no further iteration can run.
func (s Status) Terminal() bool { return s != StatusActive }

// Deliberator is the subset of the coordinator a session drives.
type Deliberator interface {
	GetConsensus(ctx context.Context, proposal *core.DesignProposal, ec core.EvaluationContext) (*core.ConsensusResult, error)
	CollectSuggestions(ctx context.Context, sc core.SuggestionContext) ([]core.Suggestion, error)
	Bus() *bus.Bus
}

// Options configures a Session.
type Options struct {
	// ID defaults to a random uuid.
	ID string `mapstructure:"-"`

	// MaxIterations caps the number of iterations. Defaults to 10.
	MaxIterations int `mapstructure:"max_iterations"`

	// SuggestionsPerIteration is how many top-ranked suggestions are applied
	// per iteration. Defaults to 3.
	SuggestionsPerIteration int `mapstructure:"suggestions_per_iteration"`

	// Parameters are passed to evaluators with every evaluation and suggestion request.
	Parameters map[string]any `mapstructure:"-"`

	Logger logging.Logger `mapstructure:"-"`
}

// DefaultOptions holds the default session limits.
var DefaultOptions = Options{
	MaxIterations:           10,
	SuggestionsPerIteration: 3,
}

// FailedModification records a modification that could not be applied.
type FailedModification struct {
	SuggestionID string            `json:"suggestion_id"`
	Modification core.Modification `json:"modification"`
	Error        string            `json:"error"`
}

// DesignIteration is the record of one completed Iterate call.
type DesignIteration struct {
	Number              int                         `json:"number"`
	Before              core.ProposalSnapshot       `json:"before"`
	After               core.ProposalSnapshot       `json:"after"`
	StartedAt           time.Time                   `json:"started_at"`
	CompletedAt         time.Time                   `json:"completed_at"`
	Consensus           *core.ConsensusResult       `json:"consensus"`
	Suggestions         []core.Suggestion           `json:"suggestions,omitempty"`
	Applied             []core.Suggestion           `json:"applied,omitempty"`
	FailedModifications []FailedModification        `json:"failed_modifications,omitempty"`
	Modifications       []core.ProposalModification `json:"modifications,omitempty"`
}

// Duration is the wall time the iteration took.
func (it DesignIteration) Duration() time.Duration { return it.CompletedAt.Sub(it.StartedAt) }

// Result summarizes a finished RunToCompletion.
type Result struct {
	SessionID      string                `json:"session_id"`
	Status         Status                `json:"status"`
	Iterations     []DesignIteration     `json:"iterations"`
	FinalProposal  core.ProposalSnapshot `json:"final_proposal"`
	FinalConsensus *core.ConsensusResult `json:"final_consensus,omitempty"`
	Duration       time.Duration         `json:"duration"`
}

// Session iteratively refines one proposal until it converges or the
// iteration cap is reached.
//
// A session has a single writer: Iterate and RunToCompletion must not be
// called concurrently on the same session. Status, Iterations and the shared
// state accessors are safe to call from other goroutines at any time.
type Session struct {
	id     string
	d      Deliberator
	opts   Options
	logger logging.Logger
	state  *State

	proposal *core.DesignProposal

	mu         sync.RWMutex
	status     Status
	err        error
	iterations []DesignIteration
	createdAt  time.Time
}

// New creates an active session refining proposal through d.
func New(d Deliberator, proposal *core.DesignProposal, optFns ...func(o *Options)) (*Session, error) {
	if d == nil {
		return nil, errors.New("session: deliberator is required")
	}
	if proposal == nil {
		return nil, core.ErrNilProposal
	}

	opts := DefaultOptions
	opts.Logger = logging.NoOpLogger{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultOptions.MaxIterations
	}
	if opts.SuggestionsPerIteration <= 0 {
		opts.SuggestionsPerIteration = DefaultOptions.SuggestionsPerIteration
	}

	return &Session{
		id:        opts.ID,
		d:         d,
		opts:      opts,
		logger:    logging.With(logging.OrNoOp(opts.Logger), "session_id", opts.ID),
		state:     NewState(),
		proposal:  proposal,
		status:    StatusActive,
		createdAt: time.Now(),
	}, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Proposal returns the proposal being refined.
func (s *Session) Proposal() *core.DesignProposal { return s.proposal }

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// MaxIterations returns the iteration cap.
func (s *Session) MaxIterations() int { return s.opts.MaxIterations }

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Err returns the error recorded by Fail, if any.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Iterations returns a copy of the completed iteration records.
func (s *Session) Iterations() []DesignIteration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]DesignIteration(nil), s.iterations...)
}

// LastConsensus returns the consensus of the latest iteration, nil before the first.
func (s *Session) LastConsensus() *core.ConsensusResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.iterations) == 0 {
		return nil
	}
	return s.iterations[len(s.iterations)-1].Consensus
}

// SetSharedState stores a copy of a session-shared value. Evaluators see it
// from the next iteration on. Pointer and struct values are not copied and
// must not be mutated after the call.
func (s *Session) SetSharedState(key string, value any) { s.state.Set(key, value) }

// SharedState returns a session-shared value.
func (s *Session) SharedState(key string) (any, bool) { return s.state.Get(key) }

// SharedStateSnapshot returns a copy of the session-shared state.
func (s *Session) SharedStateSnapshot() map[string]any { return s.state.Snapshot() }

// Cancel moves an active session to StatusCancelled. It reports whether the
// status changed.
func (s *Session) Cancel() bool { return s.transition(StatusCancelled, nil) }

// Fail moves an active session to StatusError and records err. It reports
// whether the status changed.
func (s *Session) Fail(err error) bool { return s.transition(StatusError, err) }

func (s *Session) transition(to Status, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Terminal() {
		return false
	}
	s.status = to
	s.err = err
	return true
}

// Iterate runs one refinement step and returns its record.
//
// It returns ErrSessionClosed when the session is no longer active. An error
// from the deliberator caused by ctx is returned as is and leaves the session
// active; any other deliberator error fails the session.
func (s *Session) Iterate(ctx context.Context) (*DesignIteration, error) {
	s.mu.RLock()
	status, number := s.status, len(s.iterations)+1
	s.mu.RUnlock()
	if status.Terminal() || number > s.opts.MaxIterations {
		return nil, ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	it := DesignIteration{
		Number:    number,
		StartedAt: time.Now(),
		Before:    s.proposal.Snapshot(),
	}
	params := s.parameters(number)

	consensus, err := s.d.GetConsensus(ctx, s.proposal, core.EvaluationContext{
		Parameters:  params,
		SharedState: s.state.Snapshot(),
	})
	if err != nil {
		return nil, s.deliberationFailed(ctx, "consensus", err)
	}
	it.Consensus = consensus

	suggestions, err := s.d.CollectSuggestions(ctx, core.SuggestionContext{
		Proposal:    s.proposal,
		Consensus:   consensus,
		SharedState: s.state.Snapshot(),
		Parameters:  params,
	})
	if err != nil {
		return nil, s.deliberationFailed(ctx, "suggestions", err)
	}
	it.Suggestions = suggestions

	if !consensus.Approved && len(suggestions) > 0 {
		s.apply(&it)
	}

	it.After = s.proposal.Snapshot()
	it.CompletedAt = time.Now()

	s.mu.Lock()
	s.iterations = append(s.iterations, it)
	// Cancel or Fail may have run while the deliberator was busy.
	if !s.status.Terminal() {
		switch {
		case consensus.Approved:
			s.status = StatusConverged
		case number >= s.opts.MaxIterations:
			s.status = StatusMaxIterations
		}
	}
	status = s.status
	s.mu.Unlock()

	s.logger.Info("iteration completed",
		"iteration", number, "status", string(status), "score", consensus.Score,
		"approved", consensus.Approved, "suggestions", len(suggestions),
		"applied", len(it.Applied), "failed_modifications", len(it.FailedModifications))

	s.publish(ctx, bus.TopicIterationCompleted, it, map[string]string{
		"iteration": fmt.Sprint(number),
		"status":    string(status),
	})
	return &it, nil
}

// apply selects the top suggestions by priority then rank and applies their
// modifications in order. A failing modification is recorded and skipped.
func (s *Session) apply(it *DesignIteration) {
	ranked := append([]core.Suggestion(nil), it.Suggestions...)
	core.SortByPriority(ranked)
	if len(ranked) > s.opts.SuggestionsPerIteration {
		ranked = ranked[:s.opts.SuggestionsPerIteration]
	}
	it.Applied = ranked

	for _, sg := range ranked {
		for _, mod := range sg.Modifications {
			rec, err := s.proposal.Apply(mod, sg.ID)
			if err != nil {
				s.logger.Warn("modification skipped",
					"iteration", it.Number, "suggestion_id", sg.ID, "kind", mod.Kind.String(), "error", err)
				it.FailedModifications = append(it.FailedModifications, FailedModification{
					SuggestionID: sg.ID,
					Modification: mod,
					Error:        err.Error(),
				})
				continue
			}
			it.Modifications = append(it.Modifications, rec)
		}
	}
}

func (s *Session) parameters(iteration int) map[string]any {
	params := make(map[string]any, len(s.opts.Parameters)+2)
	for k, v := range s.opts.Parameters {
		params[k] = v
	}
	params["session_id"] = s.id
	params["iteration"] = iteration
	return params
}

func (s *Session) deliberationFailed(ctx context.Context, stage string, err error) error {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return err
	}
	err = fmt.Errorf("session %s: %s: %w", s.id, stage, err)
	s.logger.Error("iteration failed", "stage", stage, "error", err)
	s.Fail(err)
	return err
}

// RunToCompletion iterates while the session is active, checking ctx between
// iterations, and publishes session.completed with the result.
//
// When ctx ends the session moves to StatusCancelled and the partial result
// is returned together with ctx's error. A failed iteration returns the
// result with the failure.
func (s *Session) RunToCompletion(ctx context.Context) (*Result, error) {
	start := time.Now()
	var runErr error
	for s.Status() == StatusActive {
		if err := ctx.Err(); err != nil {
			s.Cancel()
			runErr = err
			break
		}
		if _, err := s.Iterate(ctx); err != nil {
			if errors.Is(err, ErrSessionClosed) {
				break
			}
			if ctx.Err() != nil {
				s.Cancel()
			}
			runErr = err
			break
		}
	}

	res := &Result{
		SessionID:      s.id,
		Status:         s.Status(),
		Iterations:     s.Iterations(),
		FinalProposal:  s.proposal.Snapshot(),
		FinalConsensus: s.LastConsensus(),
		Duration:       time.Since(start),
	}

	s.logger.Info("session completed",
		"status", string(res.Status), "iterations", len(res.Iterations), "duration", res.Duration)
	s.publish(context.WithoutCancel(ctx), bus.TopicSessionCompleted, *res, map[string]string{
		"status": string(res.Status),
	})
	return res, runErr
}

func (s *Session) publish(ctx context.Context, topic string, payload any, meta map[string]string) {
	b := s.d.Bus()
	if b == nil {
		return
	}
	meta["session_id"] = s.id
	b.Publish(ctx, bus.Message{
		Topic:    topic,
		SenderID: s.id,
		Payload:  payload,
		Metadata: meta,
	})
}

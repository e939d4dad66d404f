// Package council provides a high-level facade over the coordinator, the
// message bus and refinement sessions, enabling rapid construction of
// multi-specialist design reviews. Most applications interact with this
// package by:
//  1. Creating a Council via New() or FromConfig()
//  2. Registering one or more evaluators (rule based, model backed or custom)
//  3. Asking for consensus, suggestions, validation or a Pareto negotiation,
//     or starting a Session that refines a proposal until it converges
//
// The facade delegates deliberation to coordinator.Coordinator and keeps the
// sessions it creates in a session.Store. All defaults are safe for local
// development and testing.
package council

import (
	"context"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/stingtools/council/bus"
	"github.com/stingtools/council/config"
	"github.com/stingtools/council/conflict"
	"github.com/stingtools/council/coordinator"
	"github.com/stingtools/council/core"
	"github.com/stingtools/council/evaluator"
	"github.com/stingtools/council/logging"
	"github.com/stingtools/council/model"
	"github.com/stingtools/council/model/anthropic"
	"github.com/stingtools/council/model/openai"
	"github.com/stingtools/council/session"
)

// Options configures the Council instance.
type Options struct {
	// Coordinator contains the deliberation protocol parameters.
	Coordinator coordinator.Config

	// Session holds the limits applied to every session created through
	// CreateSession before per-call overrides.
	Session session.Options

	// BusHistoryCapacity bounds the message history of the bus created when
	// Bus is nil.
	BusHistoryCapacity int

	// VoteBasis selects the factor conflict resolution weighs votes by.
	// Defaults to conflict.VoteByScore.
	VoteBasis conflict.VoteBasis

	// Bus is shared by the coordinator and all sessions. A new bus is created when nil.
	Bus *bus.Bus

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Council is the high-level facade aggregating the coordinator and the sessions.
type Council struct {
	opts     Options
	coord    *coordinator.Coordinator
	sessions *session.Store
	logger   logging.Logger
}

// New creates a new Council with optional overrides.
func New(optFns ...func(o *Options)) *Council {
	opts := Options{
		Coordinator:        coordinator.DefaultConfig,
		Session:            session.DefaultOptions,
		BusHistoryCapacity: bus.DefaultHistoryCapacity,
		VoteBasis:          conflict.VoteByScore,
		Logger:             logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	logger := logging.OrNoOp(opts.Logger)
	if opts.Bus == nil {
		opts.Bus = bus.New(func(o *bus.Options) {
			o.HistoryCapacity = opts.BusHistoryCapacity
			o.Logger = logger
		})
	}

	resolver := conflict.New(func(o *conflict.Options) {
		o.VoteBasis = opts.VoteBasis
		o.Logger = logger
	})

	coord := coordinator.New(func(o *coordinator.Options) {
		o.Config = opts.Coordinator
		o.Bus = opts.Bus
		o.Resolver = resolver
		o.Logger = logger
	})

	return &Council{
		opts:     opts,
		coord:    coord,
		sessions: session.NewStore(),
		logger:   logger,
	}
}

// FromConfig creates a Council from a loaded configuration and registers the
// evaluators its profiles describe. llm backs model-kind profiles; when nil
// it is built from cfg.Model.
func FromConfig(cfg *config.Config, llm model.Model, logger logging.Logger) (*Council, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = cfg.Logging.Logger()
	}

	if llm == nil && needsModel(cfg.Evaluators) {
		m, err := NewModel(cfg.Model)
		if err != nil {
			return nil, err
		}
		llm = m
	}

	c := New(func(o *Options) {
		o.Coordinator = cfg.Coordinator
		o.VoteBasis = conflict.VoteBasis(cfg.Conflict.VoteBasis)
		cfg.Session.Apply(&o.Session)
		o.BusHistoryCapacity = cfg.Bus.HistoryCapacity
		o.Logger = logger
	})

	evaluators, err := evaluator.BuildAll(cfg.Evaluators, llm, logger)
	if err != nil {
		return nil, err
	}
	for _, e := range evaluators {
		if err := c.Register(e); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func needsModel(profiles []evaluator.Profile) bool {
	for _, p := range profiles {
		if p.Kind == evaluator.KindModel {
			return true
		}
	}
	return false
}

// mockReply satisfies every model evaluator operation with a neutral answer.
const mockReply = `{"score": 0.5, "confidence": 0.5, "summary": "mock review", "valid": true, "suggestions": []}`

// NewModel builds the language model selected by mc.
func NewModel(mc config.ModelConfig) (model.Model, error) {
	switch mc.Provider {
	case "", "mock":
		name := mc.Name
		if name == "" {
			name = "mock"
		}
		return model.NewMockModel(name).SetFallback(mockReply), nil
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if mc.Name != "" {
				o.Model = anthropicsdk.Model(mc.Name)
			}
			o.Temperature = mc.Temperature
			if mc.MaxTokens > 0 {
				o.MaxTokens = mc.MaxTokens
			}
			o.APIKey = mc.APIKey
		}), nil
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			if mc.Name != "" {
				o.Model = mc.Name
			}
			o.Temperature = mc.Temperature
			if mc.MaxTokens > 0 {
				o.MaxCompletionTokens = mc.MaxTokens
			}
			o.APIKey = mc.APIKey
		}), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", mc.Provider)
	}
}

// Coordinator exposes the underlying coordinator.
func (c *Council) Coordinator() *coordinator.Coordinator { return c.coord }

// Bus returns the bus shared by the coordinator and all sessions.
func (c *Council) Bus() *bus.Bus { return c.coord.Bus() }

// Register adds an evaluator to the council.
func (c *Council) Register(e core.Evaluator) error { return c.coord.Register(e) }

// Unregister removes the evaluator with the given id.
func (c *Council) Unregister(id string) bool { return c.coord.Unregister(id) }

// Evaluators lists the registered evaluators in registration order.
func (c *Council) Evaluators() []core.Evaluator { return c.coord.Evaluators() }

// GetConsensus runs a consensus computation over proposal.
func (c *Council) GetConsensus(ctx context.Context, proposal *core.DesignProposal, ec core.EvaluationContext) (*core.ConsensusResult, error) {
	return c.coord.GetConsensus(ctx, proposal, ec)
}

// ValidateAction asks every active evaluator whether action is acceptable.
func (c *Council) ValidateAction(ctx context.Context, action core.Action) (core.ValidationResult, error) {
	return c.coord.ValidateAction(ctx, action)
}

// CollectSuggestions gathers ranked improvement suggestions.
func (c *Council) CollectSuggestions(ctx context.Context, sc core.SuggestionContext) ([]core.Suggestion, error) {
	return c.coord.CollectSuggestions(ctx, sc)
}

// Negotiate searches for Pareto-optimal variants of proposal across objectives.
func (c *Council) Negotiate(ctx context.Context, proposal *core.DesignProposal, objectives []string, params map[string]any) (*core.ParetoNegotiationResult, error) {
	return c.coord.Negotiate(ctx, proposal, objectives, params)
}

// CreateSession starts tracking a new refinement session for proposal. The
// council's session defaults apply first, then optFns.
func (c *Council) CreateSession(proposal *core.DesignProposal, optFns ...func(o *session.Options)) (*session.Session, error) {
	s, err := session.New(c.coord, proposal, func(o *session.Options) {
		o.MaxIterations = c.opts.Session.MaxIterations
		o.SuggestionsPerIteration = c.opts.Session.SuggestionsPerIteration
		o.Parameters = c.opts.Session.Parameters
		o.Logger = c.logger
		for _, fn := range optFns {
			fn(o)
		}
	})
	if err != nil {
		return nil, err
	}
	c.sessions.Add(s)
	c.logger.Debug("session created", "session_id", s.ID(), "proposal_id", proposal.ID())
	return s, nil
}

// Refine creates a session for proposal and runs it to completion.
func (c *Council) Refine(ctx context.Context, proposal *core.DesignProposal, optFns ...func(o *session.Options)) (*session.Result, error) {
	s, err := c.CreateSession(proposal, optFns...)
	if err != nil {
		return nil, err
	}
	return s.RunToCompletion(ctx)
}

// Session returns a tracked session by id.
func (c *Council) Session(id string) (*session.Session, bool) { return c.sessions.Get(id) }

// Sessions lists the ids of all tracked sessions in sorted order.
func (c *Council) Sessions() []string { return c.sessions.IDs() }

// ActiveSessions returns the tracked sessions that can still iterate.
func (c *Council) ActiveSessions() []*session.Session { return c.sessions.Active() }

// CloseSession cancels the session with the given id and stops tracking it.
func (c *Council) CloseSession(id string) bool {
	s, ok := c.sessions.Get(id)
	if !ok {
		return false
	}
	s.Cancel()
	return c.sessions.Remove(id)
}

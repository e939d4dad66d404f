package coordinator

import (
	"fmt"
	"sync"
	"time"

	"github.com/stingtools/council/bus"
	"github.com/stingtools/council/conflict"
	"github.com/stingtools/council/core"
	"github.com/stingtools/council/logging"
)

// SenderID identifies the coordinator as the sender of bus messages.
const SenderID = "coordinator"

// Config defines the tuning parameters of the deliberation protocols.
//
// Example:
//
//	cfg := coordinator.DefaultConfig
//	cfg.ConsensusThreshold = 0.8
//	cfg.EvaluatorTimeout = 2 * time.Second
type Config struct {
	// MaxConsensusRounds bounds the number of evaluation rounds in one
	// consensus computation, the first round included.
	MaxConsensusRounds int `mapstructure:"max_consensus_rounds"`

	// ConsensusThreshold is the aggregate score a proposal needs to be approved.
	ConsensusThreshold float64 `mapstructure:"consensus_threshold"`

	// VarianceThreshold is the population variance of individual scores below
	// which a round declares consensus.
	VarianceThreshold float64 `mapstructure:"variance_threshold"`

	// CriticalIssueWeight multiplies the aggregation weight of an opinion
	// that flags a critical issue.
	CriticalIssueWeight float64 `mapstructure:"critical_issue_weight"`

	// DefaultExpertise replaces an expertise weight that is unknown or not positive.
	DefaultExpertise float64 `mapstructure:"default_expertise"`

	// DissentThreshold is the distance from the aggregate beyond which an
	// opinion counts as dissenting.
	DissentThreshold float64 `mapstructure:"dissent_threshold"`

	// EvaluatorTimeout bounds every single call into an evaluator.
	EvaluatorTimeout time.Duration `mapstructure:"evaluator_timeout"`

	// MaxSuggestions truncates the ranked output of CollectSuggestions.
	MaxSuggestions int `mapstructure:"max_suggestions"`

	// ParallelValidation fans ValidateAction out concurrently. Leave it off
	// when an evaluator wraps a single-threaded external system.
	ParallelValidation bool `mapstructure:"parallel_validation"`
}

// DefaultConfig provides the default protocol parameters.
var DefaultConfig = Config{
	MaxConsensusRounds:  3,
	ConsensusThreshold:  0.7,
	VarianceThreshold:   0.05,
	CriticalIssueWeight: 2.0,
	DefaultExpertise:    0.5,
	DissentThreshold:    0.2,
	EvaluatorTimeout:    5 * time.Second,
	MaxSuggestions:      10,
	ParallelValidation:  false,
}

// Options configures a Coordinator.
type Options struct {
	// Config contains the protocol parameters. Defaults to DefaultConfig.
	Config Config

	// Bus receives consensus.completed messages. A private bus is created when nil.
	Bus *bus.Bus

	// Resolver resolves contested domains of non-consensus outcomes.
	// Defaults to a score-based resolver.
	Resolver *conflict.Resolver

	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Coordinator owns the evaluator registry and runs consensus, suggestion
// collection, action validation and negotiation over it. It is safe for
// concurrent use.
type Coordinator struct {
	config   Config
	bus      *bus.Bus
	resolver *conflict.Resolver
	logger   logging.Logger

	mu         sync.RWMutex
	evaluators []core.Evaluator // registration order
	index      map[string]int   // evaluator id -> position in evaluators
}

// New creates a Coordinator with an empty registry.
func New(optFns ...func(o *Options)) *Coordinator {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := opts.Config
	if cfg.MaxConsensusRounds < 1 {
		cfg.MaxConsensusRounds = 1
	}
	if cfg.EvaluatorTimeout <= 0 {
		cfg.EvaluatorTimeout = DefaultConfig.EvaluatorTimeout
	}
	if cfg.DefaultExpertise <= 0 {
		cfg.DefaultExpertise = DefaultConfig.DefaultExpertise
	}
	if cfg.CriticalIssueWeight <= 0 {
		cfg.CriticalIssueWeight = 1
	}
	if cfg.MaxSuggestions <= 0 {
		cfg.MaxSuggestions = DefaultConfig.MaxSuggestions
	}

	logger := logging.OrNoOp(opts.Logger)
	if opts.Bus == nil {
		opts.Bus = bus.New(func(o *bus.Options) { o.Logger = logger })
	}
	if opts.Resolver == nil {
		opts.Resolver = conflict.New(func(o *conflict.Options) { o.Logger = logger })
	}

	return &Coordinator{
		config:   cfg,
		bus:      opts.Bus,
		resolver: opts.Resolver,
		logger:   logger,
		index:    make(map[string]int),
	}
}

// Config returns the effective configuration.
func (c *Coordinator) Config() Config { return c.config }

// Bus returns the bus the coordinator publishes on.
func (c *Coordinator) Bus() *bus.Bus { return c.bus }

// Resolver returns the conflict resolver.
func (c *Coordinator) Resolver() *conflict.Resolver { return c.resolver }

// Register adds e to the registry. Registering an id that is already present
// is silently ignored.
func (c *Coordinator) Register(e core.Evaluator) error {
	if e == nil {
		return core.ErrNilEvaluator
	}
	if e.ID() == "" {
		return fmt.Errorf("register %q: empty evaluator id: %w", e.Name(), core.ErrNilEvaluator)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.index[e.ID()]; ok {
		return nil
	}
	c.index[e.ID()] = len(c.evaluators)
	c.evaluators = append(c.evaluators, e)
	c.logger.Debug("evaluator registered", "evaluator_id", e.ID(), "specialty", e.Specialty().String())
	return nil
}

// Unregister removes the evaluator with the given id and reports whether it
// was registered.
func (c *Coordinator) Unregister(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	pos, ok := c.index[id]
	if !ok {
		return false
	}
	c.evaluators = append(c.evaluators[:pos:pos], c.evaluators[pos+1:]...)
	delete(c.index, id)
	for i := pos; i < len(c.evaluators); i++ {
		c.index[c.evaluators[i].ID()] = i
	}
	return true
}

// Evaluator returns the registered evaluator with the given id.
func (c *Coordinator) Evaluator(id string) (core.Evaluator, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pos, ok := c.index[id]
	if !ok {
		return nil, false
	}
	return c.evaluators[pos], true
}

// Evaluators returns a snapshot of the registry in registration order.
func (c *Coordinator) Evaluators() []core.Evaluator {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]core.Evaluator, len(c.evaluators))
	copy(out, c.evaluators)
	return out
}

// active returns the snapshot filtered to active evaluators.
func (c *Coordinator) active() []core.Evaluator {
	all := c.Evaluators()
	out := all[:0]
	for _, e := range all {
		if e.IsActive() {
			out = append(out, e)
		}
	}
	return out
}

// Package config loads council configuration from defaults, an optional YAML
// file and COUNCIL_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"github.com/stingtools/council/bus"
	"github.com/stingtools/council/conflict"
	"github.com/stingtools/council/coordinator"
	"github.com/stingtools/council/evaluator"
	"github.com/stingtools/council/logging"
	"github.com/stingtools/council/session"
)

// EnvPrefix is prepended to environment overrides, e.g.
// COUNCIL_COORDINATOR_MAX_CONSENSUS_ROUNDS.
const EnvPrefix = "COUNCIL"

// Config represents the complete council configuration
type Config struct {
	Coordinator coordinator.Config  `mapstructure:"coordinator"`
	Conflict    ConflictConfig      `mapstructure:"conflict"`
	Session     SessionConfig       `mapstructure:"session"`
	Bus         BusConfig           `mapstructure:"bus"`
	Logging     LoggingConfig       `mapstructure:"logging"`
	Model       ModelConfig         `mapstructure:"model"`
	Evaluators  []evaluator.Profile `mapstructure:"evaluators"`
}

// ConflictConfig controls conflict resolution of non-consensus outcomes
type ConflictConfig struct {
	// VoteBasis is score or confidence
	VoteBasis string `mapstructure:"vote_basis"`
}

// SessionConfig controls iterative refinement sessions
type SessionConfig struct {
	// MaxIterations caps the iterations of one session
	MaxIterations int `mapstructure:"max_iterations"`
	// SuggestionsPerIteration is how many top suggestions are applied per iteration
	SuggestionsPerIteration int `mapstructure:"suggestions_per_iteration"`
}

// Apply copies the limits onto session options.
func (c SessionConfig) Apply(o *session.Options) {
	o.MaxIterations = c.MaxIterations
	o.SuggestionsPerIteration = c.SuggestionsPerIteration
}

// BusConfig controls the message bus
type BusConfig struct {
	// HistoryCapacity bounds the number of retained messages
	HistoryCapacity int `mapstructure:"history_capacity"`
}

// LoggingConfig controls structured logging
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format is json or text
	Format    string `mapstructure:"format"`
	AddSource bool   `mapstructure:"add_source"`
}

// Logger builds the configured logger. An unparsable level falls back to info.
func (c LoggingConfig) Logger() logging.Logger {
	level, err := logging.ParseLevel(c.Level)
	if err != nil {
		level = logging.LogLevelInfo
	}
	return logging.NewLogger(logging.LoggerConfig{
		Level:     level,
		Format:    c.Format,
		AddSource: c.AddSource,
		Output:    os.Stderr,
	})
}

// ModelConfig selects the language model behind model-kind evaluators
type ModelConfig struct {
	// Provider is one of mock, anthropic, openai
	Provider string `mapstructure:"provider"`
	// Name is the provider's model id; empty uses the adapter default
	Name        string  `mapstructure:"name"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int64   `mapstructure:"max_tokens"`
	// APIKey overrides the provider's own environment variable
	APIKey string `mapstructure:"api_key"`
}

// Default returns a Config with default values
func Default() *Config {
	return &Config{
		Coordinator: coordinator.DefaultConfig,
		Conflict: ConflictConfig{
			VoteBasis: string(conflict.VoteByScore),
		},
		Session: SessionConfig{
			MaxIterations:           session.DefaultOptions.MaxIterations,
			SuggestionsPerIteration: session.DefaultOptions.SuggestionsPerIteration,
		},
		Bus: BusConfig{
			HistoryCapacity: bus.DefaultHistoryCapacity,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Model: ModelConfig{
			Provider:    "mock",
			Temperature: 0.2,
			MaxTokens:   1024,
		},
	}
}

// SetDefaults registers every default on v so that environment overrides
// resolve for keys absent from the config file.
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	// Coordinator defaults
	v.SetDefault("coordinator.max_consensus_rounds", defaults.Coordinator.MaxConsensusRounds)
	v.SetDefault("coordinator.consensus_threshold", defaults.Coordinator.ConsensusThreshold)
	v.SetDefault("coordinator.variance_threshold", defaults.Coordinator.VarianceThreshold)
	v.SetDefault("coordinator.critical_issue_weight", defaults.Coordinator.CriticalIssueWeight)
	v.SetDefault("coordinator.default_expertise", defaults.Coordinator.DefaultExpertise)
	v.SetDefault("coordinator.dissent_threshold", defaults.Coordinator.DissentThreshold)
	v.SetDefault("coordinator.evaluator_timeout", defaults.Coordinator.EvaluatorTimeout)
	v.SetDefault("coordinator.max_suggestions", defaults.Coordinator.MaxSuggestions)
	v.SetDefault("coordinator.parallel_validation", defaults.Coordinator.ParallelValidation)

	// Conflict defaults
	v.SetDefault("conflict.vote_basis", defaults.Conflict.VoteBasis)

	// Session defaults
	v.SetDefault("session.max_iterations", defaults.Session.MaxIterations)
	v.SetDefault("session.suggestions_per_iteration", defaults.Session.SuggestionsPerIteration)

	// Bus defaults
	v.SetDefault("bus.history_capacity", defaults.Bus.HistoryCapacity)

	// Logging defaults
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)
	v.SetDefault("logging.add_source", defaults.Logging.AddSource)

	// Model defaults
	v.SetDefault("model.provider", defaults.Model.Provider)
	v.SetDefault("model.name", defaults.Model.Name)
	v.SetDefault("model.temperature", defaults.Model.Temperature)
	v.SetDefault("model.max_tokens", defaults.Model.MaxTokens)
	v.SetDefault("model.api_key", defaults.Model.APIKey)
}

// New returns a viper instance with defaults and environment overrides
// registered. path, when set, names the YAML config file to read.
func New(path string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("council")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(ConfigDir())
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads and validates the configuration. An explicit path must exist;
// without one a missing council.yaml is not an error.
func Load(path string) (*Config, error) {
	v := New(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return Decode(v)
}

// Decode unmarshals v into a Config and validates it.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "council")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".council"
	}
	return filepath.Join(home, ".config", "council")
}

// Package logging provides the minimal logging port used by every council
// component.
//
// Components never reach for a process-wide logger. They receive a Logger at
// construction (through their Options) and default to NoOpLogger. This package
// includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NewLogger building a JSON or text slog handler from LoggerConfig
//   - NoOpLogger for silent operation (testing, embedding)
//
// Usage:
//
//	logger := logging.NewLogger(logging.LoggerConfig{Level: logging.LogLevelInfo, Format: "text"})
//	c := coordinator.New(func(o *coordinator.Options) { o.Logger = logger })
//
// Arguments after the message are slog-style alternating key/value pairs.
package logging

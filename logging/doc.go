// Package logging provides a minimal key/value logging interface and adapters
// for shopmesh.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) every component accepts through its options. This package
// includes:
//
//   - Logger interface for dependency injection
//   - ShopMeshLogger wrapping Go's structured logging
//   - ZapAdapter for deployments standardised on zap
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	a := agent.New(searchTool, store, func(o *agent.Options) { o.Logger = logger })
//
// Event names follow component.action.outcome, e.g. "memory.compaction.success".
package logging

// Package logging provides a minimal logging interface and adapters for InkMesh.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that the engine and agents use for observability. This package
// includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - InkMeshLogger with contextual helpers (component, book) and domain
//     helpers for task execution, provider calls and retries
//
// The design intentionally keeps the interface minimal to avoid vendor
// lock-in while supporting structured logging where available.
package logging

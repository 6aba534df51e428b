// Package core provides the foundational domain types and interfaces used by
// InkMesh. It defines the core abstractions for:
//
//   - Messages (typed, causally linked units of agent communication)
//   - The Bus (per-recipient FIFO delivery between agents)
//   - Task records and the per-agent task registry
//   - Pluggable component storage for generated book material
//
// The package intentionally keeps implementation concerns (bus transports,
// provider adapters, concrete agents) out of scope, exposing small interfaces
// to enable custom backends and extensions.
package core

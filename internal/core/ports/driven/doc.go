// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the store to function:
//
//   - EmbeddingService: turns text into fixed-dimension vectors
//   - VectorIndex: slot-addressed similarity index
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - AuditLog: append-only change record. Append failures are logged
//     and never fail the originating mutation.
//   - Reranker: post-retrieval result reordering.
//   - ConfigStore: application configuration.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: any adapter package
package driven

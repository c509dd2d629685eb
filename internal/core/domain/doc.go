// Package domain defines the core business entities for Vectra.
//
// This package is part of the hexagonal architecture's innermost layer.
// It defines the fundamental types:
//
//   - Document: stored text content plus metadata
//   - Metadata: identity, validity window and ordered tags
//   - Tags: ordered tag set with the two filter-expansion strategies
//   - Filter: expanded metadata filter applied to search candidates
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. All other packages depend on
// domain, never the reverse.
//
// # Import Rules
//
//   - Can Import: standard library, google/uuid (content id generation)
//   - Cannot Import: any other internal/ package
package domain

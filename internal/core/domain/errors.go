package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a document was rejected as a
	// near-duplicate of stored content.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	// Validation happens before any mutation; an operation failing
	// with this error has left no trace of a partial step.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStoreConsistency indicates the similarity index, the slot
	// mapping and the document table have diverged. This is fatal and
	// non-recoverable: the failing operation aborts rather than
	// silently skipping the inconsistent slot.
	ErrStoreConsistency = errors.New("store consistency violation")

	// ErrEmbeddingUnavailable indicates the embedding service failed
	// or is not configured. The operation that needed it performs no
	// partial mutation.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
)

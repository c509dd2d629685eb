package domain

// SearchOptions configures a vector store search.
type SearchOptions struct {
	// K is the maximum number of results (default 5).
	K int

	// Filter restricts candidates to documents whose stored tag
	// ordering matches one of the expansions of this tag list.
	// Nil or empty means no filtering.
	Filter Tags

	// FetchK is the number of candidates fetched from the similarity
	// index before filtering (default 20). Ignored when no filter is
	// applied, since nothing would discard candidates.
	FetchK int

	// ScoreThreshold, when positive, keeps only candidates whose
	// distance is at or below it. Distances grow with dissimilarity,
	// so this is a permissive upper bound, not a similarity floor.
	ScoreThreshold float32

	// Priority selects the priority-based filter expansion instead of
	// the default powerset-with-permutations strategy.
	Priority bool
}

// AuditEntry is one record of the external append-only audit log.
type AuditEntry struct {
	// DocumentID is the storage id of the affected document.
	DocumentID string

	// Editor identifies who performed the change.
	Editor string

	// Timestamp is the epoch second of the change.
	Timestamp int64

	// Description is a short human-readable summary.
	Description string
}

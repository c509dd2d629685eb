package driven

// VectorIndex holds embeddings in insertion-ordered slots and answers
// nearest-neighbour queries. Slots are dense integers starting at 0;
// removal renumbers the survivors so the slot range stays contiguous.
//
// The reference implementation performs exact squared-L2 search.
// Approximate indexes may be substituted as long as Search returns
// hits in ascending distance order.
//
// Implementations must be safe for concurrent use; the store service
// additionally serialises mutations against its own document table.
type VectorIndex interface {
	// Add appends vectors in order, assigning the next sequential
	// slots. The vector dimension is fixed by the first Add (or at
	// construction) and never changes afterwards.
	Add(vectors [][]float32) error

	// Search returns up to k nearest neighbours of the query vector,
	// ordered by ascending distance (lower means more similar).
	// Fewer than k hits are returned when the index holds fewer.
	Search(query []float32, k int) ([]VectorHit, error)

	// Remove deletes the given slots and compacts the remaining
	// vectors into a dense 0..n-1 range, preserving their relative
	// order. Compaction is complete before Remove returns.
	Remove(slots []int) error

	// Reset empties the index. The dimension is retained.
	Reset()

	// Count returns the number of stored vectors.
	Count() int

	// Dimension returns the fixed vector dimension, or 0 before the
	// first Add.
	Dimension() int

	// Save serialises the index to the given file path.
	Save(path string) error

	// Load replaces the index contents from the given file path.
	Load(path string) error
}

// VectorHit is a single similarity search result.
type VectorHit struct {
	// Slot is the matched index slot.
	Slot int

	// Distance is the squared L2 distance to the query.
	Distance float32
}

package flat

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/vectra/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Index is an in-memory exact-L2 vector index.
type Index struct {
	mu   sync.RWMutex
	dim  int
	vecs [][]float32
}

// New creates an empty index. A positive dimension fixes the vector
// size up front; zero defers fixing it to the first Add.
func New(dimension int) *Index {
	if dimension < 0 {
		dimension = 0
	}
	return &Index{dim: dimension}
}

// Add appends vectors in order, assigning the next sequential slots.
func (idx *Index) Add(vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.dim == 0 {
		if len(vectors[0]) == 0 {
			return errors.New("flat: cannot add zero-dimension vector")
		}
		idx.dim = len(vectors[0])
	}
	for i, vec := range vectors {
		if len(vec) != idx.dim {
			return fmt.Errorf("flat: vector %d has dimension %d, index dimension is %d", i, len(vec), idx.dim)
		}
	}

	for _, vec := range vectors {
		stored := make([]float32, idx.dim)
		copy(stored, vec)
		idx.vecs = append(idx.vecs, stored)
	}
	return nil
}

// Search returns up to k nearest neighbours by ascending squared L2
// distance. Fewer hits are returned when the index holds fewer vectors.
func (idx *Index) Search(query []float32, k int) ([]driven.VectorHit, error) {
	if k <= 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.vecs) == 0 {
		return nil, nil
	}
	if len(query) != idx.dim {
		return nil, fmt.Errorf("flat: query dimension %d, index dimension %d", len(query), idx.dim)
	}

	hits := make([]driven.VectorHit, len(idx.vecs))
	for slot, vec := range idx.vecs {
		hits[slot] = driven.VectorHit{Slot: slot, Distance: squaredL2(query, vec)}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Distance < hits[b].Distance })

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Remove deletes the given slots and compacts the survivors into a
// dense 0..n-1 range, preserving their relative order.
func (idx *Index) Remove(slots []int) error {
	if len(slots) == 0 {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	doomed := make(map[int]struct{}, len(slots))
	for _, slot := range slots {
		if slot < 0 || slot >= len(idx.vecs) {
			return fmt.Errorf("flat: slot %d out of range [0,%d)", slot, len(idx.vecs))
		}
		doomed[slot] = struct{}{}
	}

	kept := idx.vecs[:0]
	for slot, vec := range idx.vecs {
		if _, gone := doomed[slot]; !gone {
			kept = append(kept, vec)
		}
	}
	// Release references past the new length.
	for i := len(kept); i < len(idx.vecs); i++ {
		idx.vecs[i] = nil
	}
	idx.vecs = kept
	return nil
}

// Reset empties the index. The dimension is retained.
func (idx *Index) Reset() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.vecs = nil
}

// Count returns the number of stored vectors.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vecs)
}

// Dimension returns the fixed vector dimension, or 0 before first use.
func (idx *Index) Dimension() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.dim
}

// squaredL2 computes the squared Euclidean distance between a and b.
func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

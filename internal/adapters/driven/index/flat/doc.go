// Package flat provides an exact-search vector index over dense
// float32 vectors held in host memory.
//
// Vectors occupy insertion-ordered slots starting at 0. Removal
// compacts the survivors eagerly so the slot range stays contiguous.
// Search is exhaustive squared-L2, which is the store's reference
// behaviour; an approximate index can replace this adapter as long as
// it honours the driven.VectorIndex ordering contract.
package flat

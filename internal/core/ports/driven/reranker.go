package driven

import (
	"context"

	"github.com/custodia-labs/vectra/internal/core/domain"
)

// Reranker reorders retrieved documents by relevance to the query.
// It runs after the store has returned validity- and filter-passing,
// distance-ordered documents; the store's own contract ends there.
type Reranker interface {
	// Rerank returns the documents reordered by decreasing relevance.
	Rerank(ctx context.Context, docs []domain.Document, query string) ([]domain.Document, error)
}

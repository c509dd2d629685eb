// Package noop provides a pass-through reranker that keeps the
// store's distance ordering untouched. It stands in where no external
// reranking service is configured.
package noop

import (
	"context"

	"github.com/custodia-labs/vectra/internal/core/domain"
	"github.com/custodia-labs/vectra/internal/core/ports/driven"
)

// Ensure Reranker implements the interface.
var _ driven.Reranker = (*Reranker)(nil)

// Reranker returns results in the order it received them.
type Reranker struct{}

func NewReranker() *Reranker {
	return &Reranker{}
}

// Rerank returns docs unchanged.
func (r *Reranker) Rerank(_ context.Context, docs []domain.Document, _ string) ([]domain.Document, error) {
	return docs, nil
}

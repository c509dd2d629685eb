package services

import (
	"context"
	"fmt"
	"slices"

	"github.com/custodia-labs/vectra/internal/core/domain"
	"github.com/custodia-labs/vectra/internal/core/ports/driven"
	"github.com/custodia-labs/vectra/internal/core/ports/driving"
	"github.com/custodia-labs/vectra/internal/logger"
)

const (
	retrievalAttemptLimit     = 10
	retrievalMinDocuments     = 1
	retrievalInitialThreshold = 0.6
	retrievalThresholdStep    = 0.05
	retrievalK                = 10
)

// RetrievalService answers free-text queries against a Store. It widens
// the distance threshold across repeated attempts when a strict initial
// cut returns too little, so callers get useful results without tuning
// a threshold themselves.
type RetrievalService struct {
	store       driving.Store
	reranker    driven.Reranker
	defaultTags domain.Tags
}

var _ driving.Retriever = (*RetrievalService)(nil)

// NewRetrievalService wires a retriever over the given store. The
// reranker may be nil, in which case results keep index order.
// defaultTags are prepended to every query's tags.
func NewRetrievalService(store driving.Store, reranker driven.Reranker, defaultTags domain.Tags) *RetrievalService {
	return &RetrievalService{
		store:       store,
		reranker:    reranker,
		defaultTags: defaultTags,
	}
}

// Retrieve searches for documents matching the query, filtered by tags.
// The configured default tags are always prepended to the caller's.
// When the caller supplied no tags of their own the filter expands over
// the full subset-permutation space; otherwise only priority orderings
// are tried, which keeps the candidate set small for long tag lists.
func (r *RetrievalService) Retrieve(ctx context.Context, query string, tags domain.Tags) ([]domain.Document, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: query must not be empty", domain.ErrInvalidInput)
	}

	searchTags := slices.Clone(r.defaultTags)
	searchTags = append(searchTags, tags...)

	opts := domain.SearchOptions{
		K:        retrievalK,
		Filter:   searchTags,
		Priority: len(tags) > 0,
	}

	docs, err := r.adaptiveSearch(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	if r.reranker == nil || len(docs) == 0 {
		return docs, nil
	}

	reranked, err := r.reranker.Rerank(ctx, docs, query)
	if err != nil {
		return nil, fmt.Errorf("reranking results: %w", err)
	}
	return reranked, nil
}

// adaptiveSearch retries the search with a progressively looser
// distance threshold until it has enough documents or runs out of
// attempts. The last attempt's results are returned even when short.
func (r *RetrievalService) adaptiveSearch(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.Document, error) {
	var docs []domain.Document
	threshold := float32(retrievalInitialThreshold)

	for attempt := 0; attempt < retrievalAttemptLimit; attempt++ {
		opts.ScoreThreshold = threshold

		var err error
		docs, err = r.store.Search(ctx, query, opts)
		if err != nil {
			return nil, err
		}
		if len(docs) >= retrievalMinDocuments {
			return docs, nil
		}

		logger.Debug("Attempt %d returned %d documents, raising threshold to %.2f",
			attempt+1, len(docs), threshold+retrievalThresholdStep)
		threshold += retrievalThresholdStep
	}
	return docs, nil
}

package services

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/vectra/internal/core/domain"
	"github.com/custodia-labs/vectra/internal/core/ports/driven"
	"github.com/custodia-labs/vectra/internal/core/ports/driving"
	"github.com/custodia-labs/vectra/internal/logger"
)

// Ensure StoreService implements the interface.
var _ driving.Store = (*StoreService)(nil)

// Default configuration values.
const (
	// DefaultDedupThreshold is the cosine similarity above which a new
	// document is rejected as a near-duplicate of stored content.
	DefaultDedupThreshold = 0.9

	// DefaultRebuildWorkers is the embedding worker pool size for
	// index rebuilds.
	DefaultRebuildWorkers = 4

	// dedupProbeNeighbours is how many nearest neighbours the dedup
	// probe inspects per new document.
	dedupProbeNeighbours = 2

	// scoreThresholdMargin widens a caller-supplied score threshold
	// before filtering, so a threshold tuned on similarity scores does
	// not cut off borderline matches.
	scoreThresholdMargin = 0.12
)

// StoreConfig configures a StoreService.
type StoreConfig struct {
	// Dir is the directory holding persisted snapshots.
	Dir string

	// Embedder turns text into vectors. Required.
	Embedder driven.EmbeddingService

	// Index is the similarity index. Required; its dimension must be
	// zero (unfixed) or equal to the embedder's output dimension.
	Index driven.VectorIndex

	// DedupThreshold overrides DefaultDedupThreshold when positive.
	DedupThreshold float32

	// RebuildWorkers overrides DefaultRebuildWorkers when positive.
	RebuildWorkers int
}

// StoreService composes the similarity index, the document table and
// the slot mapping into one vector store.
//
// Isolation: mutations (add, remove, rebuild, clear) hold the write
// lock for the full index+table+mapping sequence; Search and
// GetAllDocuments hold the read lock while resolving slots. Readers
// therefore always observe a consistent mapping, never a partial
// renumber.
type StoreService struct {
	mu       sync.RWMutex
	embedder driven.EmbeddingService
	index    driven.VectorIndex

	// docstore maps storage id to document; mapping maps slot to
	// storage id and its keys are always exactly 0..len(mapping)-1.
	docstore map[string]domain.Document
	mapping  []string

	dir            string
	dedupThreshold float32
	rebuildWorkers int
	persister      *persister
}

// metaSnapshot is the on-disk form of the document table and mapping.
type metaSnapshot struct {
	Docstore map[string]domain.Document `json:"docstore"`
	Mapping  []string                   `json:"mapping"`
}

// NewStoreService creates a vector store over the given index and
// embedder. When a snapshot named "index" exists under cfg.Dir, both
// its files are loaded; otherwise the store starts empty.
func NewStoreService(cfg StoreConfig) (*StoreService, error) {
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("%w: embedding service is required", domain.ErrInvalidInput)
	}
	if cfg.Index == nil {
		return nil, fmt.Errorf("%w: vector index is required", domain.ErrInvalidInput)
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("%w: snapshot directory is required", domain.ErrInvalidInput)
	}
	if err := os.MkdirAll(cfg.Dir, 0700); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}

	s := &StoreService{
		embedder:       cfg.Embedder,
		index:          cfg.Index,
		docstore:       make(map[string]domain.Document),
		dir:            cfg.Dir,
		dedupThreshold: cfg.DedupThreshold,
		rebuildWorkers: cfg.RebuildWorkers,
	}
	if s.dedupThreshold <= 0 {
		s.dedupThreshold = DefaultDedupThreshold
	}
	if s.rebuildWorkers <= 0 {
		s.rebuildWorkers = DefaultRebuildWorkers
	}

	if err := s.loadSnapshot(defaultIndexName); err != nil {
		return nil, err
	}

	s.persister = newPersister(s)
	return s, nil
}

// AddDocuments embeds and inserts documents, skipping near-duplicates.
func (s *StoreService) AddDocuments(
	ctx context.Context, docs []domain.Document, ids []string,
) ([]domain.Document, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	if ids != nil && len(ids) != len(docs) {
		return nil, fmt.Errorf("%w: got %d ids for %d documents",
			domain.ErrInvalidInput, len(ids), len(docs))
	}
	if err := s.validateNewIDs(ids); err != nil {
		return nil, err
	}

	texts := make([]string, len(docs))
	for i := range docs {
		texts[i] = docs[i].PageContent
	}

	embeds, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding %d documents: %v",
			domain.ErrEmbeddingUnavailable, len(docs), err)
	}
	if len(embeds) != len(docs) {
		return nil, fmt.Errorf("%w: embedder returned %d vectors for %d documents",
			domain.ErrInvalidInput, len(embeds), len(docs))
	}

	if ids == nil {
		ids = make([]string, len(docs))
		for i := range ids {
			ids[i] = uuid.NewString()
		}
	}

	// All fallible work (embedding, dedup verdicts) happens before the
	// mutation lock is taken, so the mutation sequence below cannot
	// fail halfway and leave a partial insert.
	accepted := make([]domain.Document, 0, len(docs))
	acceptedIDs := make([]string, 0, len(docs))
	acceptedVecs := make([][]float32, 0, len(docs))
	for i := range docs {
		dup, err := s.isNearDuplicate(ctx, embeds[i])
		if err != nil {
			return nil, err
		}
		if dup {
			logger.Debug("Skipping near-duplicate document %s", ids[i])
			continue
		}
		accepted = append(accepted, docs[i])
		acceptedIDs = append(acceptedIDs, ids[i])
		acceptedVecs = append(acceptedVecs, embeds[i])
	}
	if len(accepted) == 0 {
		return []domain.Document{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-check collisions under the write lock: a concurrent add may
	// have stored one of these ids since the fail-fast validation.
	for _, id := range acceptedIDs {
		if _, exists := s.docstore[id]; exists {
			return nil, fmt.Errorf("%w: id %q is already stored",
				domain.ErrInvalidInput, id)
		}
	}

	if err := s.index.Add(acceptedVecs); err != nil {
		return nil, fmt.Errorf("indexing documents: %w", err)
	}
	for i, id := range acceptedIDs {
		s.docstore[id] = accepted[i]
		s.mapping = append(s.mapping, id)
	}

	logger.Info("Added %d of %d documents (store size %d)",
		len(accepted), len(docs), len(s.mapping))
	return accepted, nil
}

// validateNewIDs rejects duplicate ids within a batch and ids already
// stored, so a colliding add fails before any embedding work.
func (s *StoreService) validateNewIDs(ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate id %q in add request",
				domain.ErrInvalidInput, id)
		}
		if _, exists := s.docstore[id]; exists {
			return fmt.Errorf("%w: id %q is already stored",
				domain.ErrInvalidInput, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// isNearDuplicate probes the index for the vector's nearest
// neighbours and compares by cosine similarity. The neighbour's
// embedding is deliberately recomputed from its stored text rather
// than reused from the index, so the verdict tracks the current
// embedding model.
func (s *StoreService) isNearDuplicate(ctx context.Context, vec []float32) (bool, error) {
	contents, err := s.probeNeighbours(vec)
	if err != nil {
		return false, err
	}

	for _, content := range contents {
		neighbourVec, err := s.embedder.Embed(ctx, content)
		if err != nil {
			return false, fmt.Errorf("%w: re-embedding dedup neighbour: %v",
				domain.ErrEmbeddingUnavailable, err)
		}

		if cosineSimilarity(vec, neighbourVec) > s.dedupThreshold {
			return true, nil
		}
	}
	return false, nil
}

// probeNeighbours resolves the vector's nearest slots to their stored
// text. Probe and resolution share one read lock so a concurrent
// removal cannot renumber slots between them.
func (s *StoreService) probeNeighbours(vec []float32) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hits, err := s.index.Search(vec, dedupProbeNeighbours)
	if err != nil {
		return nil, fmt.Errorf("dedup probe: %w", err)
	}

	contents := make([]string, 0, len(hits))
	for _, hit := range hits {
		if hit.Slot < 0 || hit.Slot >= len(s.mapping) {
			return nil, fmt.Errorf("%w: slot %d outside mapping of size %d",
				domain.ErrStoreConsistency, hit.Slot, len(s.mapping))
		}
		id := s.mapping[hit.Slot]
		doc, ok := s.docstore[id]
		if !ok {
			return nil, fmt.Errorf("%w: slot %d resolves to missing document %q",
				domain.ErrStoreConsistency, hit.Slot, id)
		}
		contents = append(contents, doc.PageContent)
	}
	return contents, nil
}

// RemoveDocumentsByID removes documents by storage id. A nil slice
// clears the whole store.
func (s *StoreService) RemoveDocumentsByID(
	_ context.Context, ids []string,
) ([]domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ids == nil {
		total := s.index.Count()
		removed := make([]domain.Document, 0, len(s.mapping))
		for _, id := range s.mapping {
			removed = append(removed, s.docstore[id])
		}
		s.docstore = make(map[string]domain.Document)
		s.mapping = nil
		s.index.Reset()
		logger.Info("Cleared store: removed %d of %d documents", len(removed), total)
		return removed, nil
	}
	if len(ids) == 0 {
		return nil, nil
	}

	targets := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := targets[id]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q in removal request",
				domain.ErrInvalidInput, id)
		}
		targets[id] = struct{}{}
	}

	var slots []int
	var removed []domain.Document
	for slot, id := range s.mapping {
		if _, hit := targets[id]; hit {
			slots = append(slots, slot)
			removed = append(removed, s.docstore[id])
		}
	}
	if len(slots) == 0 {
		return nil, nil
	}

	if err := s.index.Remove(slots); err != nil {
		return nil, fmt.Errorf("removing index slots: %w", err)
	}

	// Renumber the mapping in lock-step with the index compaction so
	// slot keys stay exactly 0..n-1.
	kept := s.mapping[:0]
	for _, id := range s.mapping {
		if _, hit := targets[id]; hit {
			delete(s.docstore, id)
			continue
		}
		kept = append(kept, id)
	}
	for i := len(kept); i < len(s.mapping); i++ {
		s.mapping[i] = ""
	}
	s.mapping = kept

	logger.Info("Removed %d documents (store size %d)", len(removed), len(s.mapping))
	return removed, nil
}

// DeleteDocumentsByIDs resolves content-level metadata ids to storage
// ids and removes the matches.
func (s *StoreService) DeleteDocumentsByIDs(
	ctx context.Context, metadataIDs []string,
) ([]domain.Document, error) {
	if len(metadataIDs) == 0 {
		return nil, fmt.Errorf("%w: metadata id list cannot be empty", domain.ErrInvalidInput)
	}

	targets := make(map[string]struct{}, len(metadataIDs))
	for _, id := range metadataIDs {
		targets[id] = struct{}{}
	}

	s.mu.RLock()
	var storageIDs []string
	for id, doc := range s.docstore {
		if _, hit := targets[doc.Metadata.IDs]; hit {
			storageIDs = append(storageIDs, id)
		}
	}
	s.mu.RUnlock()

	if len(storageIDs) == 0 {
		return nil, nil
	}
	return s.RemoveDocumentsByID(ctx, storageIDs)
}

// Search embeds the query and returns up to opts.K valid,
// filter-passing documents in ascending distance order.
func (s *StoreService) Search(
	ctx context.Context, query string, opts domain.SearchOptions,
) ([]domain.Document, error) {
	k := opts.K
	if k <= 0 {
		k = 5
	}
	fetchK := opts.FetchK
	if fetchK <= 0 {
		fetchK = 20
	}

	filter := opts.Filter.ToFilter(!opts.Priority)

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", domain.ErrEmbeddingUnavailable, err)
	}

	// Without a filter nothing discards candidates, so fetching more
	// than k would be wasted work.
	n := k
	if filter != nil {
		n = fetchK
	}

	type candidate struct {
		doc      domain.Document
		distance float32
	}

	s.mu.RLock()
	hits, err := s.index.Search(vec, n)
	if err != nil {
		s.mu.RUnlock()
		return nil, fmt.Errorf("index search: %w", err)
	}
	candidates := make([]candidate, 0, len(hits))
	for _, hit := range hits {
		if hit.Slot < 0 || hit.Slot >= len(s.mapping) {
			s.mu.RUnlock()
			return nil, fmt.Errorf("%w: slot %d outside mapping of size %d",
				domain.ErrStoreConsistency, hit.Slot, len(s.mapping))
		}
		id := s.mapping[hit.Slot]
		doc, ok := s.docstore[id]
		if !ok {
			s.mu.RUnlock()
			return nil, fmt.Errorf("%w: slot %d resolves to missing document %q",
				domain.ErrStoreConsistency, hit.Slot, id)
		}
		candidates = append(candidates, candidate{doc: doc, distance: hit.Distance})
	}
	s.mu.RUnlock()

	threshold := opts.ScoreThreshold
	if threshold > 0 {
		threshold += scoreThresholdMargin
	}

	now := time.Now()
	results := make([]domain.Document, 0, k)
	for _, c := range candidates {
		if !filter.Matches(c.doc.Metadata) {
			continue
		}
		if threshold > 0 && c.distance > threshold {
			continue
		}
		if !c.doc.IsValid(now) {
			continue
		}
		results = append(results, c.doc)
		if len(results) == k {
			break
		}
	}

	logger.Debug("Search %q: %d hits, %d after filtering", query, len(hits), len(results))
	return results, nil
}

// RebuildIndex re-embeds every stored document into a fresh index and
// mapping, replacing the live ones under the mutation lock. Snapshots
// always run this first, so what lands on disk is derived from the
// document table of record rather than from incremental mutation
// history.
func (s *StoreService) RebuildIndex(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, len(s.mapping))
	copy(ids, s.mapping)
	texts := make([]string, len(ids))
	for i, id := range ids {
		doc, ok := s.docstore[id]
		if !ok {
			return fmt.Errorf("%w: mapping slot %d resolves to missing document %q",
				domain.ErrStoreConsistency, i, id)
		}
		texts[i] = doc.PageContent
	}

	embeds, err := s.embedAll(ctx, texts)
	if err != nil {
		return err
	}

	s.index.Reset()
	if err := s.index.Add(embeds); err != nil {
		return fmt.Errorf("rebuilding index: %w", err)
	}
	s.mapping = ids

	logger.Info("Rebuilt index over %d documents", len(ids))
	return nil
}

// embedAll embeds texts across a fixed-size worker pool, concatenating
// the partial batches in input order.
func (s *StoreService) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	workers := s.rebuildWorkers
	if workers > len(texts) {
		workers = len(texts)
	}
	batch := (len(texts) + workers - 1) / workers

	embeds := make([][]float32, len(texts))
	g, ctx := errgroup.WithContext(ctx)
	for lo := 0; lo < len(texts); lo += batch {
		lo, hi := lo, lo+batch
		if hi > len(texts) {
			hi = len(texts)
		}
		g.Go(func() error {
			part, err := s.embedder.EmbedBatch(ctx, texts[lo:hi])
			if err != nil {
				return fmt.Errorf("%w: embedding batch [%d:%d]: %v",
					domain.ErrEmbeddingUnavailable, lo, hi, err)
			}
			if len(part) != hi-lo {
				return fmt.Errorf("%w: embedder returned %d vectors for batch of %d",
					domain.ErrInvalidInput, len(part), hi-lo)
			}
			copy(embeds[lo:hi], part)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return embeds, nil
}

// SaveIndex enqueues an asynchronous snapshot and returns immediately.
func (s *StoreService) SaveIndex(name string) {
	if name == "" {
		name = defaultIndexName
	}
	s.persister.enqueue(name)
}

// GetAllDocuments returns a snapshot of the document table.
func (s *StoreService) GetAllDocuments(_ context.Context) (map[string]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make(map[string]domain.Document, len(s.docstore))
	for id, doc := range s.docstore {
		all[id] = doc
	}
	return all, nil
}

// Close stops the persistence worker after draining queued saves.
func (s *StoreService) Close() error {
	s.persister.stop()
	return nil
}

// vectorsPath returns the index file path for a snapshot name.
func (s *StoreService) vectorsPath(name string) string {
	return filepath.Join(s.dir, name+".vectors")
}

// metaPath returns the table+mapping file path for a snapshot name.
func (s *StoreService) metaPath(name string) string {
	return filepath.Join(s.dir, name+".meta")
}

// cosineSimilarity computes the cosine of the angle between a and b.
// Mismatched or zero-magnitude vectors yield 0.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

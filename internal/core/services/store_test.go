package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/vectra/internal/adapters/driven/index/flat"
	"github.com/custodia-labs/vectra/internal/core/domain"
	"github.com/custodia-labs/vectra/internal/core/ports/driven"
)

// fakeEmbedder returns pre-registered vectors by exact text. Unknown
// texts are an error so tests fail loudly instead of drifting.
type fakeEmbedder struct {
	mu   sync.Mutex
	dim  int
	vecs map[string][]float32
	err  error
}

var _ driven.EmbeddingService = (*fakeEmbedder)(nil)

func newFakeEmbedder(dim int) *fakeEmbedder {
	return &fakeEmbedder{dim: dim, vecs: make(map[string][]float32)}
}

func (f *fakeEmbedder) register(text string, vec []float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vecs[text] = vec
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	vec, ok := f.vecs[text]
	if !ok {
		return nil, fmt.Errorf("no vector registered for %q", text)
	}
	out := make([]float32, len(vec))
	copy(out, vec)
	return out, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := f.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int              { return f.dim }
func (f *fakeEmbedder) ModelName() string            { return "fake" }
func (f *fakeEmbedder) Ping(_ context.Context) error { return nil }
func (f *fakeEmbedder) Close() error                 { return nil }

func newTestStore(t *testing.T, embedder driven.EmbeddingService) *StoreService {
	t.Helper()
	store, err := NewStoreService(StoreConfig{
		Dir:      t.TempDir(),
		Embedder: embedder,
		Index:    flat.New(0),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func taggedDoc(content string, tags ...string) domain.Document {
	return domain.Document{
		PageContent: content,
		Metadata: domain.NewMetadata(domain.MetadataConfig{
			Tags: tags,
		}),
	}
}

func TestNewStoreService_Validation(t *testing.T) {
	emb := newFakeEmbedder(2)

	_, err := NewStoreService(StoreConfig{Index: flat.New(0), Dir: t.TempDir()})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = NewStoreService(StoreConfig{Embedder: emb, Dir: t.TempDir()})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = NewStoreService(StoreConfig{Embedder: emb, Index: flat.New(0)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestStoreService_AddDocuments_Success(t *testing.T) {
	emb := newFakeEmbedder(3)
	emb.register("alpha", []float32{1, 0, 0})
	emb.register("beta", []float32{0, 1, 0})
	store := newTestStore(t, emb)

	accepted, err := store.AddDocuments(context.Background(),
		[]domain.Document{taggedDoc("alpha", "a"), taggedDoc("beta", "b")},
		[]string{"id-1", "id-2"})
	require.NoError(t, err)

	assert.Len(t, accepted, 2)

	all, err := store.GetAllDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "alpha", all["id-1"].PageContent)
	assert.Equal(t, "beta", all["id-2"].PageContent)
}

func TestStoreService_AddDocuments_IDCountMismatch(t *testing.T) {
	emb := newFakeEmbedder(3)
	store := newTestStore(t, emb)

	_, err := store.AddDocuments(context.Background(),
		[]domain.Document{taggedDoc("alpha")},
		[]string{"id-1", "id-2"})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestStoreService_AddDocuments_DuplicateIDsInBatch(t *testing.T) {
	emb := newFakeEmbedder(3)
	emb.register("alpha", []float32{1, 0, 0})
	emb.register("beta", []float32{0, 1, 0})
	store := newTestStore(t, emb)

	_, err := store.AddDocuments(context.Background(),
		[]domain.Document{taggedDoc("alpha", "a"), taggedDoc("beta", "b")},
		[]string{"same-id", "same-id"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// Nothing was inserted: one table entry backed by two index slots
	// would produce a snapshot the loader rejects.
	all, err := store.GetAllDocuments(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestStoreService_AddDocuments_IDAlreadyStored(t *testing.T) {
	emb := newFakeEmbedder(3)
	emb.register("alpha", []float32{1, 0, 0})
	emb.register("beta", []float32{0, 1, 0})
	store := newTestStore(t, emb)

	_, err := store.AddDocuments(context.Background(),
		[]domain.Document{taggedDoc("alpha", "a")}, []string{"id-1"})
	require.NoError(t, err)

	_, err = store.AddDocuments(context.Background(),
		[]domain.Document{taggedDoc("beta", "b")}, []string{"id-1"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	all, err := store.GetAllDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "alpha", all["id-1"].PageContent)
}

func TestStoreService_AddDocuments_GeneratesIDs(t *testing.T) {
	emb := newFakeEmbedder(3)
	emb.register("alpha", []float32{1, 0, 0})
	store := newTestStore(t, emb)

	accepted, err := store.AddDocuments(context.Background(),
		[]domain.Document{taggedDoc("alpha")}, nil)
	require.NoError(t, err)
	require.Len(t, accepted, 1)

	all, err := store.GetAllDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	for id := range all {
		assert.NotEmpty(t, id)
	}
}

func TestStoreService_AddDocuments_RejectsNearDuplicate(t *testing.T) {
	emb := newFakeEmbedder(3)
	emb.register("original", []float32{1, 0, 0})
	// Nearly parallel to the original: cosine ≈ 0.995.
	emb.register("copycat", []float32{0.99, 0.1, 0})
	store := newTestStore(t, emb)

	_, err := store.AddDocuments(context.Background(),
		[]domain.Document{taggedDoc("original")}, []string{"id-1"})
	require.NoError(t, err)

	accepted, err := store.AddDocuments(context.Background(),
		[]domain.Document{taggedDoc("copycat")}, []string{"id-2"})
	require.NoError(t, err)

	// Rejection is silent: no error, just not inserted.
	assert.Empty(t, accepted)
	all, err := store.GetAllDocuments(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStoreService_AddDocuments_AcceptsDistinctContent(t *testing.T) {
	emb := newFakeEmbedder(3)
	emb.register("original", []float32{1, 0, 0})
	emb.register("different", []float32{0, 1, 0}) // orthogonal, cosine 0
	store := newTestStore(t, emb)

	_, err := store.AddDocuments(context.Background(),
		[]domain.Document{taggedDoc("original")}, []string{"id-1"})
	require.NoError(t, err)

	accepted, err := store.AddDocuments(context.Background(),
		[]domain.Document{taggedDoc("different")}, []string{"id-2"})
	require.NoError(t, err)

	assert.Len(t, accepted, 1)
}

func TestStoreService_AddDocuments_EmbedderFailure(t *testing.T) {
	emb := newFakeEmbedder(3)
	emb.err = errors.New("model offline")
	store := newTestStore(t, emb)

	_, err := store.AddDocuments(context.Background(),
		[]domain.Document{taggedDoc("alpha")}, nil)

	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

	all, getErr := store.GetAllDocuments(context.Background())
	require.NoError(t, getErr)
	assert.Empty(t, all)
}

func TestStoreService_RemoveDocumentsByID_RenumbersSlots(t *testing.T) {
	emb := newFakeEmbedder(3)
	emb.register("alpha", []float32{1, 0, 0})
	emb.register("beta", []float32{0, 1, 0})
	emb.register("gamma", []float32{0, 0, 1})
	store := newTestStore(t, emb)

	_, err := store.AddDocuments(context.Background(),
		[]domain.Document{taggedDoc("alpha"), taggedDoc("beta"), taggedDoc("gamma")},
		[]string{"id-1", "id-2", "id-3"})
	require.NoError(t, err)

	removed, err := store.RemoveDocumentsByID(context.Background(), []string{"id-2"})
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, "beta", removed[0].PageContent)

	// The survivors remain searchable through the renumbered mapping.
	emb.register("query-gamma", []float32{0, 0, 1})
	docs, err := store.Search(context.Background(), "query-gamma", domain.SearchOptions{K: 1})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "gamma", docs[0].PageContent)
}

func TestStoreService_RemoveDocumentsByID_NilClearsAll(t *testing.T) {
	emb := newFakeEmbedder(3)
	emb.register("alpha", []float32{1, 0, 0})
	emb.register("beta", []float32{0, 1, 0})
	store := newTestStore(t, emb)

	_, err := store.AddDocuments(context.Background(),
		[]domain.Document{taggedDoc("alpha"), taggedDoc("beta")},
		[]string{"id-1", "id-2"})
	require.NoError(t, err)

	removed, err := store.RemoveDocumentsByID(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, removed, 2)

	all, err := store.GetAllDocuments(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestStoreService_RemoveDocumentsByID_EmptyIsNoOp(t *testing.T) {
	emb := newFakeEmbedder(3)
	emb.register("alpha", []float32{1, 0, 0})
	store := newTestStore(t, emb)

	_, err := store.AddDocuments(context.Background(),
		[]domain.Document{taggedDoc("alpha")}, []string{"id-1"})
	require.NoError(t, err)

	removed, err := store.RemoveDocumentsByID(context.Background(), []string{})
	require.NoError(t, err)
	assert.Empty(t, removed)

	all, err := store.GetAllDocuments(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStoreService_RemoveDocumentsByID_DuplicateIDs(t *testing.T) {
	emb := newFakeEmbedder(3)
	store := newTestStore(t, emb)

	_, err := store.RemoveDocumentsByID(context.Background(), []string{"id-1", "id-1"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestStoreService_RemoveDocumentsByID_UnknownIDsSkipped(t *testing.T) {
	emb := newFakeEmbedder(3)
	emb.register("alpha", []float32{1, 0, 0})
	store := newTestStore(t, emb)

	_, err := store.AddDocuments(context.Background(),
		[]domain.Document{taggedDoc("alpha")}, []string{"id-1"})
	require.NoError(t, err)

	removed, err := store.RemoveDocumentsByID(context.Background(), []string{"unknown"})
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestStoreService_DeleteDocumentsByIDs_EmptyList(t *testing.T) {
	store := newTestStore(t, newFakeEmbedder(3))

	_, err := store.DeleteDocumentsByIDs(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestStoreService_DeleteDocumentsByIDs_ResolvesMetadataIDs(t *testing.T) {
	emb := newFakeEmbedder(3)
	emb.register("alpha", []float32{1, 0, 0})
	emb.register("beta", []float32{0, 1, 0})
	store := newTestStore(t, emb)

	docA := taggedDoc("alpha", "a")
	docA.Metadata.IDs = "meta-1"
	docB := taggedDoc("beta", "b")
	docB.Metadata.IDs = "meta-2"

	_, err := store.AddDocuments(context.Background(),
		[]domain.Document{docA, docB}, []string{"id-1", "id-2"})
	require.NoError(t, err)

	removed, err := store.DeleteDocumentsByIDs(context.Background(), []string{"meta-1"})
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, "alpha", removed[0].PageContent)
}

func TestStoreService_DeleteDocumentsByIDs_NoMatches(t *testing.T) {
	store := newTestStore(t, newFakeEmbedder(3))

	removed, err := store.DeleteDocumentsByIDs(context.Background(), []string{"absent"})
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestStoreService_Search_AscendingDistance(t *testing.T) {
	emb := newFakeEmbedder(2)
	emb.register("near", []float32{0.1, 0})
	emb.register("far", []float32{0, 1})
	emb.register("query", []float32{0, 0})
	store := newTestStore(t, emb)

	_, err := store.AddDocuments(context.Background(),
		[]domain.Document{taggedDoc("near"), taggedDoc("far")},
		[]string{"id-1", "id-2"})
	require.NoError(t, err)

	docs, err := store.Search(context.Background(), "query", domain.SearchOptions{K: 2})
	require.NoError(t, err)

	require.Len(t, docs, 2)
	assert.Equal(t, "near", docs[0].PageContent)
	assert.Equal(t, "far", docs[1].PageContent)
}

func TestStoreService_Search_EmptyStore(t *testing.T) {
	emb := newFakeEmbedder(2)
	emb.register("query", []float32{0, 0})
	store := newTestStore(t, emb)

	docs, err := store.Search(context.Background(), "query", domain.SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestStoreService_Search_TagFilterExactOrder(t *testing.T) {
	emb := newFakeEmbedder(3)
	emb.register("ordered", []float32{1, 0, 0})
	emb.register("reversed", []float32{0, 1, 0})
	emb.register("other", []float32{0, 0, 1})
	emb.register("query", []float32{0, 0, 0})
	store := newTestStore(t, emb)

	_, err := store.AddDocuments(context.Background(),
		[]domain.Document{
			taggedDoc("ordered", "a", "b"),
			taggedDoc("reversed", "b", "a"),
			taggedDoc("other", "c"),
		},
		[]string{"id-1", "id-2", "id-3"})
	require.NoError(t, err)

	// Powerset expansion of ["a","b"] covers both orderings but not ["c"].
	docs, err := store.Search(context.Background(), "query", domain.SearchOptions{
		K:      10,
		Filter: domain.Tags{"a", "b"},
	})
	require.NoError(t, err)

	contents := make([]string, 0, len(docs))
	for _, d := range docs {
		contents = append(contents, d.PageContent)
	}
	assert.ElementsMatch(t, []string{"ordered", "reversed"}, contents)
}

func TestStoreService_Search_ScoreThresholdWithMargin(t *testing.T) {
	emb := newFakeEmbedder(2)
	emb.register("near", []float32{0.5, 0}) // squared distance 0.25
	emb.register("far", []float32{0, 1})    // squared distance 1.0
	emb.register("query", []float32{0, 0})
	store := newTestStore(t, emb)

	_, err := store.AddDocuments(context.Background(),
		[]domain.Document{taggedDoc("near"), taggedDoc("far")},
		[]string{"id-1", "id-2"})
	require.NoError(t, err)

	// Effective cut is 0.5 + 0.12 = 0.62: keeps 0.25, drops 1.0.
	docs, err := store.Search(context.Background(), "query", domain.SearchOptions{
		K:              10,
		ScoreThreshold: 0.5,
	})
	require.NoError(t, err)

	require.Len(t, docs, 1)
	assert.Equal(t, "near", docs[0].PageContent)
}

func TestStoreService_Search_SkipsExpiredDocuments(t *testing.T) {
	emb := newFakeEmbedder(2)
	emb.register("expired", []float32{1, 0})
	emb.register("current", []float32{0, 1})
	emb.register("query", []float32{0, 0})
	store := newTestStore(t, emb)

	expired := taggedDoc("expired")
	expired.Metadata.StartTime = 1000
	expired.Metadata.ValidTime = 60 // window closed long ago

	_, err := store.AddDocuments(context.Background(),
		[]domain.Document{expired, taggedDoc("current")},
		[]string{"id-1", "id-2"})
	require.NoError(t, err)

	docs, err := store.Search(context.Background(), "query", domain.SearchOptions{K: 10})
	require.NoError(t, err)

	require.Len(t, docs, 1)
	assert.Equal(t, "current", docs[0].PageContent)
}

func TestStoreService_Search_CorruptMappingDetected(t *testing.T) {
	emb := newFakeEmbedder(2)
	emb.register("alpha", []float32{1, 0})
	emb.register("query", []float32{0, 0})
	store := newTestStore(t, emb)

	_, err := store.AddDocuments(context.Background(),
		[]domain.Document{taggedDoc("alpha")}, []string{"id-1"})
	require.NoError(t, err)

	// Sever the table entry behind the mapping's back.
	store.mu.Lock()
	delete(store.docstore, "id-1")
	store.mu.Unlock()

	_, err = store.Search(context.Background(), "query", domain.SearchOptions{K: 1})
	assert.ErrorIs(t, err, domain.ErrStoreConsistency)
}

func TestStoreService_RebuildIndex_TracksNewEmbeddings(t *testing.T) {
	emb := newFakeEmbedder(2)
	emb.register("alpha", []float32{1, 0})
	emb.register("beta", []float32{0, 1})
	emb.register("query", []float32{0, 0.1})
	store := newTestStore(t, emb)

	_, err := store.AddDocuments(context.Background(),
		[]domain.Document{taggedDoc("alpha"), taggedDoc("beta")},
		[]string{"id-1", "id-2"})
	require.NoError(t, err)

	// The model moved: alpha now embeds where beta used to be.
	emb.register("alpha", []float32{0, 1})
	emb.register("beta", []float32{1, 0})

	require.NoError(t, store.RebuildIndex(context.Background()))

	docs, err := store.Search(context.Background(), "query", domain.SearchOptions{K: 1})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "alpha", docs[0].PageContent)
}

func TestStoreService_RebuildIndex_Empty(t *testing.T) {
	store := newTestStore(t, newFakeEmbedder(2))
	assert.NoError(t, store.RebuildIndex(context.Background()))
}

func TestStoreService_AddDocuments_Concurrent(t *testing.T) {
	const n = 8
	emb := newFakeEmbedder(n)
	for i := 0; i < n; i++ {
		vec := make([]float32, n)
		vec[i] = 1
		emb.register(fmt.Sprintf("doc-%d", i), vec)
	}
	store := newTestStore(t, emb)

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.AddDocuments(context.Background(),
				[]domain.Document{taggedDoc(fmt.Sprintf("doc-%d", i))},
				[]string{fmt.Sprintf("id-%d", i)})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "add %d", i)
	}

	all, err := store.GetAllDocuments(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, n)
}

func TestStoreService_AddDocuments_ConcurrentWithRemoval(t *testing.T) {
	const n = 16
	emb := newFakeEmbedder(n)
	for i := 0; i < n; i++ {
		vec := make([]float32, n)
		vec[i] = 1
		emb.register(fmt.Sprintf("doc-%d", i), vec)
	}
	store := newTestStore(t, emb)

	// Seed half the store so every dedup probe resolves neighbours
	// while the removals below renumber slots underneath it.
	for i := 0; i < n/2; i++ {
		_, err := store.AddDocuments(context.Background(),
			[]domain.Document{taggedDoc(fmt.Sprintf("doc-%d", i))},
			[]string{fmt.Sprintf("id-%d", i)})
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	addErrs := make([]error, n/2)
	for i := n / 2; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, addErrs[i-n/2] = store.AddDocuments(context.Background(),
				[]domain.Document{taggedDoc(fmt.Sprintf("doc-%d", i))},
				[]string{fmt.Sprintf("id-%d", i)})
		}(i)
	}
	for i := 0; i < n/2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.RemoveDocumentsByID(context.Background(),
				[]string{fmt.Sprintf("id-%d", i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	for i, err := range addErrs {
		require.NoError(t, err, "add %d", i+n/2)
	}

	all, err := store.GetAllDocuments(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, n/2)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-6)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-6)
	assert.Equal(t, float32(0), cosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Equal(t, float32(0), cosineSimilarity([]float32{0, 0}, []float32{1, 0}))
}

package driving

import (
	"context"

	"github.com/custodia-labs/vectra/internal/core/domain"
)

// Store is the vector store's public surface.
//
// Mutations (AddDocuments, RemoveDocumentsByID, DeleteDocumentsByIDs,
// RebuildIndex) are serialised behind a single mutation lock covering
// the similarity index, the slot mapping and the document table as one
// unit. Reads take a shared lock; see the service documentation for
// the isolation guarantees.
type Store interface {
	// AddDocuments embeds and inserts the given documents, skipping
	// any whose embedding is a near-duplicate of stored content.
	// ids supplies storage ids; nil generates random ones. A length
	// mismatch between ids and docs fails validation before any
	// mutation. The returned slice holds the documents actually
	// inserted, duplicates excluded.
	AddDocuments(ctx context.Context, docs []domain.Document, ids []string) ([]domain.Document, error)

	// RemoveDocumentsByID removes the documents with the given storage
	// ids and returns them. Unknown ids are skipped; duplicate ids in
	// the request fail validation. A nil slice clears the entire store
	// and returns everything that was removed.
	RemoveDocumentsByID(ctx context.Context, ids []string) ([]domain.Document, error)

	// DeleteDocumentsByIDs resolves content-level metadata ids to
	// storage ids and removes the matches. An empty id list fails
	// validation.
	DeleteDocumentsByIDs(ctx context.Context, metadataIDs []string) ([]domain.Document, error)

	// Search embeds the query and returns up to opts.K valid,
	// filter-passing documents in ascending distance order.
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.Document, error)

	// SaveIndex enqueues an asynchronous snapshot of the store under
	// the given name ("index" when empty) and returns without waiting
	// for the write. Persistence failures surface only in logs.
	SaveIndex(name string)

	// RebuildIndex re-embeds every stored document into a fresh index
	// and slot mapping, replacing the live ones atomically.
	RebuildIndex(ctx context.Context) error

	// GetAllDocuments returns a snapshot of the full document table,
	// keyed by storage id.
	GetAllDocuments(ctx context.Context) (map[string]domain.Document, error)

	// Close stops the persistence worker after draining queued saves.
	Close() error
}

// Retriever performs adaptive multi-attempt retrieval on top of Store.
type Retriever interface {
	// Retrieve searches with a rising score threshold until enough
	// documents are found or the attempt limit is reached, then
	// reranks the results.
	Retrieve(ctx context.Context, query string, tags domain.Tags) ([]domain.Document, error)
}

// DocumentService exposes the ingestion-level document flows.
type DocumentService interface {
	// AddDocument validates, stores and audits a new document,
	// returning its storage id.
	AddDocument(ctx context.Context, content string, meta domain.MetadataConfig, editor string) (string, error)

	// UpdateDocument replaces the document with the given content-level
	// metadata id by removing it and inserting the replacement as a
	// new document, returning the new storage id. In-place mutation of
	// stored content never happens.
	UpdateDocument(ctx context.Context, metadataID, content string, meta domain.MetadataConfig, editor string) (string, error)

	// DeleteDocuments removes documents by content-level metadata id.
	DeleteDocuments(ctx context.Context, metadataIDs []string, editor string) ([]domain.Document, error)
}

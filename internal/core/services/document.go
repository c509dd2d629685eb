package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/vectra/internal/core/domain"
	"github.com/custodia-labs/vectra/internal/core/ports/driven"
	"github.com/custodia-labs/vectra/internal/core/ports/driving"
	"github.com/custodia-labs/vectra/internal/logger"
)

// DocumentService implements the editor-facing ingestion flows on top
// of a Store. It validates input, attributes every change to an editor
// in the audit log, and queues a persistence pass after each mutation.
type DocumentService struct {
	store driving.Store
	audit driven.AuditLog
}

var _ driving.DocumentService = (*DocumentService)(nil)

func NewDocumentService(store driving.Store, audit driven.AuditLog) *DocumentService {
	return &DocumentService{store: store, audit: audit}
}

// AddDocument inserts a single document on behalf of an editor. The
// document must carry at least one tag. Returns the storage id of the
// inserted document, or ErrAlreadyExists when the store rejected it as
// a near-duplicate.
func (d *DocumentService) AddDocument(ctx context.Context, content string, meta domain.MetadataConfig, editor string) (string, error) {
	if editor == "" {
		return "", fmt.Errorf("%w: editor must not be empty", domain.ErrInvalidInput)
	}
	if content == "" {
		return "", fmt.Errorf("%w: content must not be empty", domain.ErrInvalidInput)
	}
	if len(meta.Tags) == 0 {
		return "", fmt.Errorf("%w: document must carry at least one tag", domain.ErrInvalidInput)
	}

	doc := domain.Document{
		PageContent: content,
		Metadata:    domain.NewMetadata(meta),
	}

	storageID := uuid.NewString()
	accepted, err := d.store.AddDocuments(ctx, []domain.Document{doc}, []string{storageID})
	if err != nil {
		return "", err
	}
	if len(accepted) == 0 {
		return "", fmt.Errorf("%w: document is a near-duplicate of stored content", domain.ErrAlreadyExists)
	}

	d.store.SaveIndex("")
	d.recordChange(storageID, editor, "document added")
	return storageID, nil
}

// UpdateDocument replaces the document carrying the given metadata id:
// it deletes all documents with that id and inserts the new content as
// a fresh document. Returns ErrNotFound when nothing carried the id.
func (d *DocumentService) UpdateDocument(ctx context.Context, metadataID, content string, meta domain.MetadataConfig, editor string) (string, error) {
	if editor == "" {
		return "", fmt.Errorf("%w: editor must not be empty", domain.ErrInvalidInput)
	}
	if metadataID == "" {
		return "", fmt.Errorf("%w: metadata id must not be empty", domain.ErrInvalidInput)
	}

	removed, err := d.store.DeleteDocumentsByIDs(ctx, []string{metadataID})
	if err != nil {
		return "", err
	}
	if len(removed) == 0 {
		return "", fmt.Errorf("%w: no document carries metadata id %q", domain.ErrNotFound, metadataID)
	}

	doc := domain.Document{
		PageContent: content,
		Metadata:    domain.NewMetadata(meta),
	}

	storageID := uuid.NewString()
	accepted, err := d.store.AddDocuments(ctx, []domain.Document{doc}, []string{storageID})
	if err != nil {
		return "", err
	}
	if len(accepted) == 0 {
		return "", fmt.Errorf("%w: replacement is a near-duplicate of stored content", domain.ErrAlreadyExists)
	}

	d.store.SaveIndex("")
	d.recordChange(storageID, editor, "document updated")
	return storageID, nil
}

// DeleteDocuments removes every document carrying any of the given
// metadata ids and returns the removed documents.
func (d *DocumentService) DeleteDocuments(ctx context.Context, metadataIDs []string, editor string) ([]domain.Document, error) {
	if editor == "" {
		return nil, fmt.Errorf("%w: editor must not be empty", domain.ErrInvalidInput)
	}

	removed, err := d.store.DeleteDocumentsByIDs(ctx, metadataIDs)
	if err != nil {
		return nil, err
	}
	if len(removed) > 0 {
		d.store.SaveIndex("")
	}
	return removed, nil
}

// recordChange appends an audit entry without blocking the caller's
// flow. A failed append is logged and otherwise ignored; the document
// change has already happened and must not be rolled back over it.
func (d *DocumentService) recordChange(storageID, editor, description string) {
	if d.audit == nil {
		return
	}
	entry := domain.AuditEntry{
		DocumentID:  storageID,
		Editor:      editor,
		Timestamp:   time.Now().Unix(),
		Description: description,
	}
	go func() {
		if err := d.audit.Append(context.Background(), entry); err != nil {
			logger.Warn("Recording audit entry for %s failed: %v", storageID, err)
		}
	}()
}

package driven

import (
	"context"

	"github.com/custodia-labs/vectra/internal/core/domain"
)

// AuditLog records document changes in an external append-only store.
// The core never reads the log back and treats append failures as
// non-fatal: they are logged and the originating mutation proceeds.
type AuditLog interface {
	// Append records a single change.
	Append(ctx context.Context, entry domain.AuditEntry) error

	// List returns the recorded entries for a document, oldest first.
	// An empty documentID returns all entries.
	List(ctx context.Context, documentID string) ([]domain.AuditEntry, error)

	// Close releases resources.
	Close() error
}

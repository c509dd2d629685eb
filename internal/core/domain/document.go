package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// ValidIndefinitely marks a document that never expires.
const ValidIndefinitely = -1

// DefaultSplitter is the splitter name assigned when none is given.
const DefaultSplitter = "default"

// Document pairs retrievable text content with its metadata.
// It is the unit stored, indexed and returned by the vector store.
type Document struct {
	// PageContent is the full text content of the document.
	PageContent string `json:"page_content"`

	// Metadata carries identity, validity and tag information.
	Metadata Metadata `json:"metadata"`
}

// Metadata describes a stored document.
// Fields are immutable after ingestion except for tag edits made
// before the document is first persisted.
type Metadata struct {
	// IDs is the content-level identifier, distinct from the storage id
	// the store assigns. Defaults to the SHA-256 of a random UUID.
	IDs string `json:"ids"`

	// Splitter names the text splitter that produced the content.
	Splitter string `json:"splitter"`

	// ValidTime is the validity duration in seconds.
	// ValidIndefinitely (-1) means the document never expires.
	ValidTime int64 `json:"valid_time"`

	// StartTime is the epoch second the validity window opens.
	StartTime int64 `json:"start_time"`

	// Related marks the document as related to another entity.
	Related bool `json:"related"`

	// Tags is the ordered tag list. Ordering is significant: the first
	// two entries are treated as the highest-priority tags by the
	// priority-based filter generator.
	Tags Tags `json:"tags"`
}

// MetadataConfig enumerates the caller-settable metadata fields.
// Zero values select the documented defaults.
type MetadataConfig struct {
	// IDs overrides the generated content identifier.
	// Default: SHA-256 of a freshly generated random UUID.
	IDs string

	// Splitter names the producing splitter. Default: "default".
	Splitter string

	// ValidTime is the validity duration in seconds.
	// Zero or negative selects ValidIndefinitely.
	ValidTime int64

	// StartTime is the epoch second the validity window opens.
	// Zero selects the current time.
	StartTime int64

	// Related marks the document as related to another entity.
	Related bool

	// Tags is the initial ordered tag list. Duplicates are dropped.
	Tags []string
}

// NewMetadata builds a Metadata from the given config, filling defaults.
func NewMetadata(cfg MetadataConfig) Metadata {
	m := Metadata{
		IDs:       cfg.IDs,
		Splitter:  cfg.Splitter,
		ValidTime: cfg.ValidTime,
		StartTime: cfg.StartTime,
		Related:   cfg.Related,
	}
	if m.IDs == "" {
		m.IDs = NewContentID()
	}
	if m.Splitter == "" {
		m.Splitter = DefaultSplitter
	}
	if m.ValidTime <= 0 {
		m.ValidTime = ValidIndefinitely
	}
	if m.StartTime == 0 {
		m.StartTime = time.Now().Unix()
	}
	for _, tag := range cfg.Tags {
		m.Tags.Add(tag)
	}
	return m
}

// NewContentID returns the SHA-256 hex digest of a freshly generated
// random UUID, the default content-level identifier.
func NewContentID() string {
	id := uuid.New()
	sum := sha256.Sum256(id[:])
	return hex.EncodeToString(sum[:])
}

// IsValid reports whether the document is current at the given time.
// A document is valid at t when ValidTime is ValidIndefinitely or
// t is at or before StartTime+ValidTime. The window is inclusive at
// both ends.
func (d *Document) IsValid(now time.Time) bool {
	if d.Metadata.ValidTime == ValidIndefinitely {
		return true
	}
	return now.Unix() <= d.Metadata.StartTime+d.Metadata.ValidTime
}

package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetadata_Defaults(t *testing.T) {
	before := time.Now().Unix()
	meta := NewMetadata(MetadataConfig{})
	after := time.Now().Unix()

	assert.Len(t, meta.IDs, 64) // SHA-256 hex digest
	assert.Equal(t, DefaultSplitter, meta.Splitter)
	assert.Equal(t, int64(ValidIndefinitely), meta.ValidTime)
	assert.GreaterOrEqual(t, meta.StartTime, before)
	assert.LessOrEqual(t, meta.StartTime, after)
	assert.False(t, meta.Related)
	assert.Empty(t, meta.Tags)
}

func TestNewMetadata_ExplicitValues(t *testing.T) {
	meta := NewMetadata(MetadataConfig{
		IDs:       "custom-id",
		Splitter:  "markdown",
		ValidTime: 3600,
		StartTime: 1000,
		Related:   true,
		Tags:      []string{"go", "db", "go"},
	})

	assert.Equal(t, "custom-id", meta.IDs)
	assert.Equal(t, "markdown", meta.Splitter)
	assert.Equal(t, int64(3600), meta.ValidTime)
	assert.Equal(t, int64(1000), meta.StartTime)
	assert.True(t, meta.Related)
	assert.Equal(t, Tags{"go", "db"}, meta.Tags)
}

func TestNewMetadata_NegativeValidTime(t *testing.T) {
	meta := NewMetadata(MetadataConfig{ValidTime: -30})

	assert.Equal(t, int64(ValidIndefinitely), meta.ValidTime)
}

func TestNewContentID_Unique(t *testing.T) {
	a := NewContentID()
	b := NewContentID()

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func TestDocument_IsValid_Indefinite(t *testing.T) {
	doc := Document{Metadata: Metadata{
		ValidTime: ValidIndefinitely,
		StartTime: 0,
	}}

	assert.True(t, doc.IsValid(time.Now()))
	assert.True(t, doc.IsValid(time.Unix(1<<40, 0)))
}

func TestDocument_IsValid_WindowInclusive(t *testing.T) {
	doc := Document{Metadata: Metadata{
		ValidTime: 100,
		StartTime: 1000,
	}}

	assert.True(t, doc.IsValid(time.Unix(1000, 0)))
	assert.True(t, doc.IsValid(time.Unix(1100, 0))) // boundary second counts
	assert.False(t, doc.IsValid(time.Unix(1101, 0)))
}

func TestDocument_JSONRoundTrip(t *testing.T) {
	doc := Document{
		PageContent: "the content",
		Metadata: Metadata{
			IDs:       "id-1",
			Splitter:  "default",
			ValidTime: -1,
			StartTime: 42,
			Related:   true,
			Tags:      Tags{"a", "b"},
		},
	}

	data, err := json.Marshal(doc)
	require.NoError(t, err)

	// Wire format keys are fixed; snapshots depend on them.
	assert.Contains(t, string(data), `"page_content"`)
	assert.Contains(t, string(data), `"valid_time"`)
	assert.Contains(t, string(data), `"start_time"`)

	var decoded Document
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, doc, decoded)
}

package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTags_ToFilter_Empty(t *testing.T) {
	var tags Tags

	assert.Nil(t, tags.ToFilter(true))
	assert.Nil(t, tags.ToFilter(false))
}

func TestTags_ToFilter_Powerset(t *testing.T) {
	tags := Tags{"a", "b"}

	f := tags.ToFilter(true)

	require.NotNil(t, f)
	// Includes the empty ordering: untagged documents pass.
	assert.Len(t, f.Tags, 5)
}

func TestTags_ToFilter_Priority(t *testing.T) {
	tags := Tags{"a", "b"}

	f := tags.ToFilter(false)

	require.NotNil(t, f)
	assert.Len(t, f.Tags, 4)
}

func TestFilter_Matches_NilMatchesEverything(t *testing.T) {
	var f *Filter

	assert.True(t, f.Matches(Metadata{Tags: Tags{"x"}}))
	assert.True(t, f.Matches(Metadata{}))
}

func TestFilter_Matches_TagOrderIsExact(t *testing.T) {
	f := &Filter{Tags: [][]string{{"a", "b"}}}

	assert.True(t, f.Matches(Metadata{Tags: Tags{"a", "b"}}))
	assert.False(t, f.Matches(Metadata{Tags: Tags{"b", "a"}}))
	assert.False(t, f.Matches(Metadata{Tags: Tags{"a"}}))
	assert.False(t, f.Matches(Metadata{Tags: Tags{"a", "b", "c"}}))
}

func TestFilter_Matches_IDs(t *testing.T) {
	f := &Filter{IDs: []string{"id-1", "id-2"}}

	assert.True(t, f.Matches(Metadata{IDs: "id-2"}))
	assert.False(t, f.Matches(Metadata{IDs: "id-3"}))
}

func TestFilter_Matches_Splitters(t *testing.T) {
	f := &Filter{Splitters: []string{"markdown"}}

	assert.True(t, f.Matches(Metadata{Splitter: "markdown"}))
	assert.False(t, f.Matches(Metadata{Splitter: "default"}))
}

func TestFilter_Matches_AllFieldsMustPass(t *testing.T) {
	f := &Filter{
		Tags: [][]string{{"a"}},
		IDs:  []string{"id-1"},
	}

	assert.True(t, f.Matches(Metadata{Tags: Tags{"a"}, IDs: "id-1"}))
	assert.False(t, f.Matches(Metadata{Tags: Tags{"a"}, IDs: "other"}))
	assert.False(t, f.Matches(Metadata{Tags: Tags{"b"}, IDs: "id-1"}))
}

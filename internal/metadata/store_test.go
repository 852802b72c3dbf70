package metadata

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/iamhimansu/template-repeater/internal/markup"
)

func parse(t *testing.T, source string) *markup.Document {
	t.Helper()
	doc, err := markup.Parse(source, zaptest.NewLogger(t))
	require.NoError(t, err)
	return doc
}

func TestExtract(t *testing.T) {
	doc := parse(t, `<template id="h-template" class="x" data-width="100px" data-height="50 px" data-cols="2" data-use-pages="true" data-paper="A4"></template><div>body</div>`)

	store, err := Extract(doc, "template", "h-template", zaptest.NewLogger(t))
	require.NoError(t, err)

	want := map[string]Entry{
		"data-width":     {Value: "100", Unit: "px"},
		"data-height":    {Value: "50", Unit: "px"},
		"data-cols":      {Value: "2"},
		"data-use-pages": {Value: "true"},
		"data-paper":     {Value: "A4"},
	}
	if diff := cmp.Diff(want, store.Table()); diff != "" {
		t.Errorf("metadata table mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"data-width", "data-height", "data-cols", "data-use-pages", "data-paper"}, store.Keys())

	// The definition element is configuration, not content.
	assert.Equal(t, "<div>body</div>", doc.HTML())
}

func TestExtractErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		target error
	}{
		{"No Node", `<div id="h-template"></div>`, ErrNodeNotFound},
		{"Wrong ID", `<template id="other" data-width="1"></template>`, ErrNodeNotFound},
		{"No Data Attributes", `<template id="h-template" class="x"></template>`, ErrMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parse(t, tt.source)
			_, err := Extract(doc, "template", "h-template", nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.target), "got %v", err)
		})
	}
}

func TestStoreLookup(t *testing.T) {
	store := New(map[string]Entry{
		"data-width":    {Value: "100", Unit: "px"},
		"data-compress": {Value: "true"},
		"data-rows":     {Value: "abc"},
	})

	v, ok := store.Lookup("@width")
	assert.True(t, ok)
	assert.Equal(t, "100", v)

	v, ok = store.Lookup("data-width")
	assert.True(t, ok)
	assert.Equal(t, "100", v)

	_, ok = store.Lookup("width")
	assert.False(t, ok, "bare keys are looked up literally")

	entry, ok := store.Entry("@width")
	assert.True(t, ok)
	assert.Equal(t, "px", entry.Unit)

	assert.True(t, store.Bool("@compress"))
	assert.False(t, store.Bool("@use-pages"))

	assert.Equal(t, 1, store.Int("@cols", 1))
	assert.Equal(t, 3, store.Int("@rows", 3))

	f, ok := store.Float("@width")
	assert.True(t, ok)
	assert.Equal(t, 100.0, f)

	assert.True(t, store.Has("@compress"))
	assert.Equal(t, []string{"data-compress", "data-rows", "data-width"}, store.Keys())
}

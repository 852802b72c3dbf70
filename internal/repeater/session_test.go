package repeater

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/iamhimansu/template-repeater/internal/templating"
)

const gridTemplate = `<template id="h-template" data-width="100px" data-height="50px" data-cols="2" data-rows="2"></template>` +
	`<div class="label" style="position: absolute; top: 0px; left: 0px;">{{ name }}</div>`

const twoPageTemplate = `<template id="h-template" data-width="100" data-height="40" data-cols="2" data-rows="2" data-use-pages="true"></template>` +
	`<page1 data-initial-left="10px"><div style="position:absolute; top: 5px; left: 10px">{{ front }}</div></page1>` +
	`<page2 data-initial-left="130px"><div style="position:absolute; top: 5px; left: 140px">{{ back }}</div></page2>`

func newTestSession(t *testing.T, source string) *Session {
	t.Helper()
	s, err := NewSession(source, nil, DefaultOptions(), zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, s.Init())
	return s
}

func pushN(t *testing.T, s *Session, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		require.NoError(t, s.Push(map[string]any{"name": fmt.Sprintf("r%d", i), "front": "F", "back": "B"}))
	}
}

func TestGridExample(t *testing.T) {
	s := newTestSession(t, gridTemplate)
	require.Equal(t, 1, s.TotalPages())
	assert.Equal(t, "div", s.Pages()[0].Name())
	assert.Equal(t, Grid{Cols: 2, Rows: 2}, s.Limits())
	assert.Equal(t, Size{Width: 100, Height: 50}, s.TileSize())

	pushN(t, s, 5)

	stack := s.Pages()[0].Stack()
	require.Len(t, stack, 5)

	expected := []struct{ left, top string }{
		{"0px", "0px"},
		{"100px", "0px"},
		{"0px", "50px"},
		{"100px", "50px"},
		{"0px", "0px"},
	}
	for i, e := range expected {
		tile := stack[i].HTML
		assert.Contains(t, tile, "top: "+e.top+";", "tile %d", i+1)
		assert.Contains(t, tile, "left: "+e.left+";", "tile %d", i+1)
		assert.Contains(t, tile, fmt.Sprintf(">r%d</div>", i+1))
		assert.Equal(t, 0, stack[i].Index)
	}
	assert.Equal(t,
		`<div class="label" style="position: absolute; top: 50px; left: 0px;" data-template-initial-top="0" data-template-initial-left="0">r3</div>`,
		stack[2].HTML)
}

func TestCursorFollowsRowMajorOrder(t *testing.T) {
	s := newTestSession(t, strings.Replace(gridTemplate, `data-cols="2" data-rows="2"`, `data-cols="3" data-rows="2"`, 1))
	page := s.Pages()[0]
	capacity := s.Limits().Capacity()

	for n := 1; n <= 2*capacity; n++ {
		pushN(t, s, 1)
		next := n % capacity
		assert.Equal(t, next%3, page.RepeatX(), "after %d pushes", n)
		assert.Equal(t, next/3, page.RepeatY(), "after %d pushes", n)
		if n%capacity == 0 {
			assert.Equal(t, 0, page.RepeatX())
			assert.Equal(t, 0, page.RepeatY())
		}
	}
}

func TestLayoutReadsLockedPositions(t *testing.T) {
	s := newTestSession(t, strings.Replace(gridTemplate, "top: 0px; left: 0px;", "top: 20px; left: 30px; margin-top: 7px;", 1))
	page := s.Pages()[0]
	require.Equal(t, 1, page.Positioned())

	el := page.positioned[0]
	pushN(t, s, 1)

	// Corrupt the live style; the next step must derive from the locked attributes.
	el.Attr[1].Val = "position: absolute; top: 999px; left: 999px; margin-top: 7px;"
	pushN(t, s, 1)

	stack := page.Stack()
	require.Len(t, stack, 2)
	assert.Contains(t, stack[0].HTML, `style="position: absolute; top: 20px; left: 0px; margin-top: 7px;"`)
	assert.Contains(t, stack[1].HTML, `style="position: absolute; top: 20px; left: 100px; margin-top: 7px;"`)
	assert.Contains(t, stack[1].HTML, `data-template-initial-top="20"`)
	assert.Contains(t, stack[1].HTML, `data-template-initial-left="30"`)
}

func TestLockCapturesAllOffsets(t *testing.T) {
	s := newTestSession(t, `<template id="h-template" data-width="10" data-height="10"></template>`+
		`<div><span style="position:absolute; right: 4px; bottom: 2.5in">x</span><span style="display:block; top: 3px">y</span></div>`)

	page := s.Pages()[0]
	page.LockInitialPositions()
	html := page.HTML()
	assert.Contains(t, html, `data-template-initial-right="4"`)
	assert.Contains(t, html, `data-template-initial-bottom="2.5"`)
	assert.NotContains(t, html, `data-template-initial-top`, "only absolute elements are locked")
}

func TestMultiPageOffsetsAndCounters(t *testing.T) {
	s := newTestSession(t, twoPageTemplate)
	require.Equal(t, 2, s.TotalPages())
	assert.True(t, s.UsePages())

	pages := s.Pages()
	assert.Equal(t, "page1", pages[0].Name())
	assert.Equal(t, 10.0, pages[0].InitialLeft())
	assert.Equal(t, 130.0, pages[1].InitialLeft())

	pushN(t, s, 3)

	front, back := pages[0].Stack(), pages[1].Stack()
	require.Len(t, front, 3)
	require.Len(t, back, 3)

	assert.Contains(t, front[0].HTML, "top: 5px; left: 0px;")
	assert.Contains(t, front[1].HTML, "top: 5px; left: 100px;")
	assert.Contains(t, front[2].HTML, "top: 45px; left: 0px;")

	assert.Contains(t, back[0].HTML, "top: 5px; left: 10px;")
	assert.Contains(t, back[1].HTML, "top: 5px; left: 110px;")
	assert.Contains(t, back[2].HTML, "top: 45px; left: 10px;")
	assert.Equal(t, 1, back[0].Index)

	assert.Equal(t, 1, pages[0].RepeatX())
	assert.Equal(t, 1, pages[1].RepeatX())
	assert.Equal(t, 1, pages[0].RepeatY())

	content := s.Content()
	parts := strings.Split(content, DefaultPageBreak)
	require.Len(t, parts, 3)
	assert.Equal(t, 3, strings.Count(parts[0], "<page1"))
	assert.Equal(t, 3, strings.Count(parts[1], "<page2"))
	assert.Empty(t, parts[2])
}

func TestSingleRegionSharesCursorAndStack(t *testing.T) {
	s := newTestSession(t, `<template id="h-template" data-width="100" data-height="10" data-cols="4" data-rows="1"></template>`+
		`<page1><i style="position:absolute; left: 0px">a</i></page1><page2><i style="position:absolute; left: 0px">b</i></page2>`)

	pages := s.Pages()
	pushN(t, s, 1)

	assert.Equal(t, 2, pages[0].RepeatX())
	assert.Equal(t, 2, pages[1].RepeatX())
	assert.Equal(t, 2, s.Pending())

	stack := pages[1].Stack()
	require.Len(t, stack, 2)
	assert.Contains(t, stack[0].HTML, "left: 0px;")
	assert.Contains(t, stack[1].HTML, "left: 100px;")

	content := s.Content()
	assert.True(t, strings.HasSuffix(content, DefaultPageBreak))
	assert.Equal(t, 1, strings.Count(content, DefaultPageBreak))
	assert.Equal(t, 0, s.Pending())
}

func TestCanFlush(t *testing.T) {
	s := newTestSession(t, strings.Replace(gridTemplate, `data-cols="2" data-rows="2"`, `data-cols="2" data-rows="1"`, 1))

	pushN(t, s, 1)
	assert.False(t, s.CanFlush())
	pushN(t, s, 1)
	assert.True(t, s.CanFlush())

	out := s.Content()
	assert.False(t, s.CanFlush())
	assert.Equal(t, 2, strings.Count(out, "<div"))

	pushN(t, s, 1)
	assert.False(t, s.CanFlush())
	assert.Equal(t, 3, s.Pushed())
}

func TestContentClearsStacks(t *testing.T) {
	s := newTestSession(t, gridTemplate)
	pushN(t, s, 3)

	first := s.Content()
	assert.Equal(t, 3, strings.Count(first, "<div"))
	assert.Empty(t, s.Content())
	assert.Empty(t, s.Pages()[0].Stack())
}

func TestStackAccessors(t *testing.T) {
	s := newTestSession(t, gridTemplate)
	page := s.Pages()[0]

	page.SetStack([]Tile{{Index: 0, HTML: "a"}, {Index: 0, HTML: "b"}})
	assert.Equal(t, "ab", s.Content())

	page.SetStack([]Tile{{HTML: "x"}})
	page.CleanStack()
	assert.Empty(t, page.Stack())
}

func TestSessionErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		target error
	}{
		{"Metadata Node Not Found", `<div style="position:absolute"></div>`, ErrMetadataNodeNotFound},
		{"Metadata Missing", `<template id="h-template"></template><div></div>`, ErrMetadataMissing},
		{"No Data Attributes", `<template id="h-template" class="meta"></template><div></div>`, ErrMetadataMissing},
		{"Missing Width", `<template id="h-template" data-height="10"></template><div></div>`, ErrEmptyAttribute},
		{"Unparsable Height", `<template id="h-template" data-width="10" data-height="auto"></template><div></div>`, ErrEmptyAttribute},
		{"Use Pages Without Pages", `<template id="h-template" data-width="10" data-height="10" data-use-pages="true"></template><div></div>`, ErrMissingPageElements},
		{"Page Unparsable Initial Left", `<template id="h-template" data-width="10" data-height="10" data-use-pages="true"></template><page1 data-initial-left="auto"></page1>`, ErrEmptyAttribute},
		{"Page Without Initial Left", `<template id="h-template" data-width="10" data-height="10" data-use-pages="true"></template><page1></page1>`, ErrEmptyAttribute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSession(tt.source, nil, DefaultOptions(), zaptest.NewLogger(t))
			require.NoError(t, err)

			err = s.Init()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
			assert.False(t, s.IsInitialized())
		})
	}
}

func TestNewSessionRejectsEmptyTemplate(t *testing.T) {
	_, err := NewSession("  \n ", nil, DefaultOptions(), nil)
	assert.ErrorIs(t, err, ErrEmptyTemplate)
	assert.Equal(t, CodeEmptyTemplate, CodeOf(err))

	opts := DefaultOptions()
	opts.TemplateID = ""
	_, err = NewSession(gridTemplate, nil, opts, nil)
	assert.ErrorIs(t, err, ErrInvalidOption)
}

func TestLifecycleGuards(t *testing.T) {
	s, err := NewSession(gridTemplate, nil, DefaultOptions(), nil)
	require.NoError(t, err)

	assert.ErrorIs(t, s.Push(nil), ErrNotInitialized)

	require.NoError(t, s.Init())
	assert.True(t, s.IsInitialized())
	assert.ErrorIs(t, s.Init(), ErrAlreadyInitialized)
	assert.Equal(t, 1, s.TotalPages())
}

func TestTemplatingErrorPropagatesVerbatim(t *testing.T) {
	s := newTestSession(t, strings.Replace(gridTemplate, "{{ name }}", "{{ name + }}", 1))

	err := s.Push(map[string]any{"name": "x"})
	require.Error(t, err)

	var terr *templating.Error
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, templating.KindSyntax, terr.Kind)
	assert.ErrorIs(t, err, ErrTemplating)
	assert.Equal(t, CodeTemplating, CodeOf(err))
	assert.Empty(t, s.Pages()[0].Stack())
}

func TestCustomTemplateIDAndPageBreak(t *testing.T) {
	opts := DefaultOptions()
	opts.TemplateID = "labels"
	opts.PageBreak = "<hr>"

	s, err := NewSession(`<template id="labels" data-width="10" data-height="10" data-use-pages="1"></template>`+
		`<page1 data-initial-left="0"><b>{{ a }}</b></page1>`, templating.NewExprEngine(false), opts, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, s.Init())

	require.NoError(t, s.Push(map[string]any{"a": "<x>"}))
	assert.Equal(t, `<page1 data-initial-left="0"><b><x></b></page1><hr>`, s.Content())
}

func TestGoEngineQuotedLiteralsAndPartials(t *testing.T) {
	source := `<template id="h-template" data-width="10" data-height="10"></template>` +
		`<div style="position:absolute; top: 0px; left: 0px">{{ printf "%s!" .name }}{{ template "sig" . }}</div>`
	for _, escape := range []bool{false, true} {
		engine := &templating.GoEngine{Escape: escape, Partials: map[string]string{"sig": "<em>S</em>"}}
		s, err := NewSession(source, engine, DefaultOptions(), zaptest.NewLogger(t))
		require.NoError(t, err)
		require.NoError(t, s.Init())

		require.NoError(t, s.Push(map[string]any{"name": "Ada"}), "escape=%v", escape)
		assert.Contains(t, s.Content(), ">Ada!<em>S</em></div>", "escape=%v", escape)
	}
}

func TestCompressMinifiesTemplate(t *testing.T) {
	s := newTestSession(t, `<template id="h-template" data-width="10" data-height="10" data-compress="true"></template>`+
		"<div>\n  <!-- drop me -->\n  <p>{{ v }}</p>\n</div>")

	assert.NotContains(t, s.Template(), "drop me")
	pushN(t, s, 1)
	assert.NotContains(t, s.Content(), "drop me")
}

func TestPaperAndOrientation(t *testing.T) {
	s := newTestSession(t, gridTemplate)
	assert.Equal(t, "A4", s.Paper())
	assert.Equal(t, "p", s.Orientation())

	s = newTestSession(t, strings.Replace(gridTemplate, `data-rows="2"`, `data-rows="2" data-paper="A3" data-orientation="L"`, 1))
	assert.Equal(t, "A3", s.Paper())
	assert.Equal(t, "l", s.Orientation())
	assert.NotEmpty(t, s.ID())
	assert.Contains(t, s.String(), s.ID())
}

func TestTemplateExcludesMetadata(t *testing.T) {
	s := newTestSession(t, gridTemplate)
	assert.NotContains(t, s.Template(), "<template")
	assert.Contains(t, s.Template(), `class="label"`)

	entry, ok := s.Metadata().Entry("@width")
	require.True(t, ok)
	assert.Equal(t, "px", entry.Unit)
}

package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/iamhimansu/template-repeater/internal/repeater"
)

const labelTemplate = `<template id="h-template" data-width="100" data-height="50" data-cols="2" data-rows="2"></template>` +
	`<div style="position: absolute; top: 0px; left: 0px;">{{ name }}</div>`

func newSession(t *testing.T) *repeater.Session {
	t.Helper()
	s, err := repeater.NewSession(labelTemplate, nil, repeater.DefaultOptions(), zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, s.Init())
	return s
}

func records(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = map[string]any{"name": fmt.Sprintf("n%d", i+1)}
	}
	return out
}

func TestRunEmitsFullAndPartialSheets(t *testing.T) {
	var sheets []Sheet
	summary, err := Run(context.Background(), newSession(t), records(5), func(s Sheet) error {
		sheets = append(sheets, s)
		return nil
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Records)
	assert.Equal(t, 2, summary.Sheets)
	require.Len(t, sheets, 2)

	assert.Equal(t, 1, sheets[0].Index)
	assert.Equal(t, 4, sheets[0].Records)
	assert.False(t, sheets[0].Partial)
	assert.Equal(t, 4, strings.Count(sheets[0].HTML, "<div"))
	assert.Contains(t, sheets[0].HTML, "top: 50px; left: 100px;")

	assert.Equal(t, 2, sheets[1].Index)
	assert.Equal(t, 1, sheets[1].Records)
	assert.True(t, sheets[1].Partial)
	assert.Contains(t, sheets[1].HTML, ">n5</div>")
}

func TestRunExactSheetHasNoPartial(t *testing.T) {
	count := 0
	summary, err := Run(context.Background(), newSession(t), records(8), func(Sheet) error {
		count++
		return nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 2, summary.Sheets)
}

type stubSession struct {
	pushed int
	cancel context.CancelFunc
}

func (s *stubSession) Push(any) error {
	s.pushed++
	if s.pushed == 2 && s.cancel != nil {
		s.cancel()
	}
	return nil
}
func (s *stubSession) CanFlush() bool  { return false }
func (s *stubSession) Content() string { return "" }
func (s *stubSession) Pending() int    { return s.pushed }

func TestRunStopsBetweenRecordsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stub := &stubSession{cancel: cancel}
	summary, err := Run(ctx, stub, records(5), func(Sheet) error { return nil }, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, stub.pushed)
	assert.Equal(t, 2, summary.Records)
	assert.Equal(t, 0, summary.Sheets)
}

func TestRunPropagatesErrors(t *testing.T) {
	sinkErr := errors.New("disk full")
	_, err := Run(context.Background(), newSession(t), records(4), func(Sheet) error { return sinkErr }, nil)
	assert.ErrorIs(t, err, sinkErr)

	s, err := repeater.NewSession(strings.Replace(labelTemplate, "{{ name }}", "{{ name", 1), nil, repeater.DefaultOptions(), nil)
	require.NoError(t, err)
	require.NoError(t, s.Init())

	_, err = Run(context.Background(), s, records(1), func(Sheet) error { return nil }, nil)
	assert.ErrorIs(t, err, repeater.ErrTemplating)
	assert.Contains(t, err.Error(), "record 0")
}

func TestFileSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	sink, err := NewFileSink(dir, "", false)
	require.NoError(t, err)

	_, err = Run(context.Background(), newSession(t), records(5), sink.Write, nil)
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	written := sink.Written()
	require.Len(t, written, 2)
	assert.Equal(t, filepath.Join(dir, "sheet-0001.html"), written[0])
	assert.Equal(t, filepath.Join(dir, "sheet-0002.html"), written[1])

	data, err := os.ReadFile(written[1])
	require.NoError(t, err)
	assert.Contains(t, string(data), ">n5</div>")
}

func TestFileSinkRejectsPatternWithoutVerb(t *testing.T) {
	_, err := NewFileSink(t.TempDir(), "sheet.html", false)
	assert.Error(t, err)
}

func TestWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := &WriterSink{W: &buf, Minify: true}

	require.NoError(t, sink.Write(Sheet{Index: 1, HTML: "<div>\n  <!-- c -->\n  <p>a</p>\n</div>"}))
	require.NoError(t, sink.Write(Sheet{Index: 2, HTML: "<p>b</p>"}))
	require.NoError(t, sink.Close())

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.NotContains(t, lines[0], "<!--")
	assert.Contains(t, lines[0], "<p>a</p>")
	assert.Equal(t, "<p>b</p>", lines[1])
}

func TestNewSink(t *testing.T) {
	sink, err := NewSink("", "", false)
	require.NoError(t, err)
	assert.IsType(t, &WriterSink{}, sink)

	sink, err = NewSink(t.TempDir(), "label-%d.html", true)
	require.NoError(t, err)
	assert.IsType(t, &FileSink{}, sink)
}

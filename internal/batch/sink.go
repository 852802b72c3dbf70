package batch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"

	"github.com/iamhimansu/template-repeater/internal/markup"
)

// DefaultPattern names sheet files by their 1-based index.
const DefaultPattern = "sheet-%04d.html"

// Sink receives flushed sheets.
type Sink interface {
	Write(sheet Sheet) error
	Close() error
}

// NewSink returns a WriterSink on stdout when dir is empty or "stdout", and a
// FileSink otherwise.
func NewSink(dir, pattern string, minify bool) (Sink, error) {
	if dir == "" || dir == "stdout" {
		return &WriterSink{W: os.Stdout, Minify: minify}, nil
	}
	return NewFileSink(dir, pattern, minify)
}

// FileSink writes every sheet to its own file under Dir.
type FileSink struct {
	Dir     string
	Pattern string
	Minify  bool
	written []string
}

// NewFileSink expands a leading ~ in dir and creates it.
func NewFileSink(dir, pattern string, minify bool) (*FileSink, error) {
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to expand output directory %q: %w", dir, err)
	}
	if pattern == "" {
		pattern = DefaultPattern
	}
	if !strings.Contains(pattern, "%") {
		return nil, fmt.Errorf("output pattern %q needs a verb for the sheet index", pattern)
	}
	if err := os.MkdirAll(expanded, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", expanded, err)
	}
	return &FileSink{Dir: expanded, Pattern: pattern, Minify: minify}, nil
}

func (s *FileSink) Write(sheet Sheet) error {
	html, err := prepare(sheet.HTML, s.Minify)
	if err != nil {
		return err
	}
	path := filepath.Join(s.Dir, fmt.Sprintf(s.Pattern, sheet.Index))
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		return fmt.Errorf("failed to write sheet %s: %w", path, err)
	}
	s.written = append(s.written, path)
	return nil
}

// Written returns the paths written so far.
func (s *FileSink) Written() []string {
	return append([]string(nil), s.written...)
}

func (s *FileSink) Close() error { return nil }

// WriterSink writes sheets to W, one per line.
type WriterSink struct {
	W      io.Writer
	Minify bool
}

func (s *WriterSink) Write(sheet Sheet) error {
	html, err := prepare(sheet.HTML, s.Minify)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(s.W, html+"\n"); err != nil {
		return fmt.Errorf("failed to write sheet %d: %w", sheet.Index, err)
	}
	return nil
}

// Close closes W when it is an io.Closer other than stdout.
func (s *WriterSink) Close() error {
	if c, ok := s.W.(io.Closer); ok && s.W != os.Stdout {
		return c.Close()
	}
	return nil
}

func prepare(html string, minify bool) (string, error) {
	if !minify {
		return html, nil
	}
	return markup.Minify(html)
}

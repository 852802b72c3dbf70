// Package metadata reads the layout configuration carried by the template's
// definition element.
package metadata

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/iamhimansu/template-repeater/internal/markup"
)

// Prefix marks configuration attributes on the definition element.
const Prefix = "data-"

var (
	ErrNodeNotFound = errors.New("metadata node not found")
	ErrMissing      = errors.New("metadata attributes missing")
)

// Store holds the classified configuration of one template. It is built once by
// Extract and read-only afterwards.
type Store struct {
	keys    []string
	entries map[string]Entry
}

// Extract locates the <tag id="id"> definition element, classifies each of its
// data-* attributes and removes the element from doc.
func Extract(doc *markup.Document, tag, id string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	node, err := doc.FindByTagAndID(tag, id)
	if err != nil {
		return nil, fmt.Errorf("looking up <%s id=%q>: %w", tag, id, err)
	}
	if node == nil {
		return nil, fmt.Errorf("%w: no <%s> element with id %q", ErrNodeNotFound, tag, id)
	}
	if len(node.Attr) == 0 {
		return nil, fmt.Errorf("%w: <%s id=%q> has no attributes", ErrMissing, tag, id)
	}

	store := &Store{entries: make(map[string]Entry)}
	for _, attr := range node.Attr {
		if !strings.HasPrefix(attr.Key, Prefix) {
			continue
		}
		if _, seen := store.entries[attr.Key]; !seen {
			store.keys = append(store.keys, attr.Key)
		}
		store.entries[attr.Key] = Classify(attr.Val)
	}
	if len(store.keys) == 0 {
		return nil, fmt.Errorf("%w: <%s id=%q> has no %s attributes", ErrMissing, tag, id, Prefix)
	}

	markup.Remove(node)
	logger.Debug("Extracted template metadata", zap.String("id", id), zap.Strings("keys", store.keys))
	return store, nil
}

// New builds a Store from already classified entries, keyed by full attribute name.
// Keys are ordered alphabetically.
func New(entries map[string]Entry) *Store {
	s := &Store{entries: make(map[string]Entry, len(entries))}
	for k, v := range entries {
		s.keys = append(s.keys, k)
		s.entries[k] = v
	}
	sort.Strings(s.keys)
	return s
}

// resolve maps "@name" to "data-name"; bare keys are used literally.
func resolve(key string) string {
	if strings.HasPrefix(key, "@") {
		return Prefix + key[1:]
	}
	return key
}

// Entry returns the full entry for key.
func (s *Store) Entry(key string) (Entry, bool) {
	e, ok := s.entries[resolve(key)]
	return e, ok
}

// Lookup returns the value for key. A missing key is not an error: callers fall
// back to their default.
func (s *Store) Lookup(key string) (string, bool) {
	e, ok := s.Entry(key)
	return e.Value, ok
}

// Has reports whether key is present.
func (s *Store) Has(key string) bool {
	_, ok := s.Entry(key)
	return ok
}

// Bool returns the flag value of key, false when absent or undecidable.
func (s *Store) Bool(key string) bool {
	e, ok := s.Entry(key)
	if !ok {
		return false
	}
	v, decided := e.Bool()
	return v && decided
}

// Int returns the integer value of key, or def when absent or not numeric.
func (s *Store) Int(key string, def int) int {
	e, ok := s.Entry(key)
	if !ok {
		return def
	}
	if n, ok := e.Int(); ok {
		return n
	}
	return def
}

// Float returns the numeric value of key.
func (s *Store) Float(key string) (float64, bool) {
	e, ok := s.Entry(key)
	if !ok {
		return 0, false
	}
	return e.Float()
}

// Keys returns the attribute names in declaration order.
func (s *Store) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Table returns a copy of every entry keyed by attribute name.
func (s *Store) Table() map[string]Entry {
	out := make(map[string]Entry, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

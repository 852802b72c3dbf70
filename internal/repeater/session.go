// Package repeater tiles the page regions of an HTML template across a grid and
// renders every tile against a data record.
package repeater

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/iamhimansu/template-repeater/internal/markup"
	"github.com/iamhimansu/template-repeater/internal/metadata"
	"github.com/iamhimansu/template-repeater/internal/templating"
)

const (
	metadataTag = "template"
	// pageQuery discovers page regions: <page>, <page1>, <page-front>...
	pageQuery = `//*[starts-with(local-name(),"page")]`
	// pageInitialLeftAttr declares a page offset in use-pages mode.
	pageInitialLeftAttr = "data-initial-left"
	defaultOrientation  = "p"
)

// Session holds the state of one template: its metadata, its pages and the
// sheet counter. A Session is not safe for concurrent use.
type Session struct {
	id     string
	source string
	opts   Options
	engine templating.Engine
	logger *zap.Logger

	template    string
	meta        *metadata.Store
	pages       []*Page
	grid        Grid
	tile        Size
	usePages    bool
	compress    bool
	sheet       sheetCounter
	canFlush    bool
	pushed      int
	initialized bool
}

// NewSession validates the inputs of a session. A nil engine selects the expr
// engine with escaping.
func NewSession(source string, engine templating.Engine, opts Options, logger *zap.Logger) (*Session, error) {
	if strings.TrimSpace(source) == "" {
		return nil, newError(CodeEmptyTemplate, "template cannot be empty")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if engine == nil {
		engine = templating.NewExprEngine(true)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	id := uuid.NewString()
	return &Session{
		id:     id,
		source: source,
		opts:   opts,
		engine: engine,
		logger: logger.Named("session").With(zap.String("session_id", id)),
		sheet:  newSheetCounter(),
	}, nil
}

// Init parses the template, extracts its metadata, discovers the pages and locks
// their initial positions. A session can be initialised once.
func (s *Session) Init() error {
	if s.initialized {
		return newError(CodeAlreadyInitialized, "session %s is already initialized", s.id)
	}

	doc, err := markup.Parse(s.source, s.logger)
	if err != nil {
		return err
	}

	meta, err := metadata.Extract(doc, metadataTag, s.opts.TemplateID, s.logger)
	if err != nil {
		return classifyMetadataError(err)
	}
	s.meta = meta
	s.compress = meta.Bool("@compress")
	s.usePages = meta.Bool("@use-pages")

	s.template = doc.HTML()
	if s.compress {
		if s.template, err = markup.Minify(s.template); err != nil {
			return err
		}
	}

	s.grid = Grid{Cols: positive(meta.Int("@cols", 1)), Rows: positive(meta.Int("@rows", 1))}
	if s.tile.Width, err = s.dimension("@width"); err != nil {
		return err
	}
	if s.tile.Height, err = s.dimension("@height"); err != nil {
		return err
	}

	if err := s.constructPages(doc); err != nil {
		return err
	}
	for _, p := range s.pages {
		p.LockInitialPositions()
	}

	s.initialized = true
	s.logger.Info("Session initialized",
		zap.Int("pages", len(s.pages)),
		zap.Int("cols", s.grid.Cols),
		zap.Int("rows", s.grid.Rows),
		zap.Float64("width", s.tile.Width),
		zap.Float64("height", s.tile.Height),
		zap.Bool("use_pages", s.usePages),
		zap.Bool("compress", s.compress))
	return nil
}

func classifyMetadataError(err error) error {
	switch {
	case errors.Is(err, metadata.ErrNodeNotFound):
		return wrapError(CodeMetadataNodeNotFound, err, "template metadata")
	case errors.Is(err, metadata.ErrMissing):
		return wrapError(CodeMetadataMissing, err, "template metadata")
	default:
		return err
	}
}

func (s *Session) dimension(key string) (float64, error) {
	if raw, ok := s.meta.Lookup(key); ok && raw != "" {
		if f, ok := s.meta.Float(key); ok {
			return f, nil
		}
	}
	return 0, newError(CodeEmptyAttribute, "[%s] attribute is required on <%s id=%q>",
		metadata.Prefix+strings.TrimPrefix(key, "@"), metadataTag, s.opts.TemplateID)
}

func (s *Session) constructPages(doc *markup.Document) error {
	s.pages = nil
	elements, err := doc.Query(pageQuery)
	if err != nil {
		return err
	}
	if s.usePages && len(elements) == 0 {
		return newError(CodeMissingPageElements,
			"use-pages requires page elements, wrap sections into pages: <page1><p>Front</p></page1><page2><p>Back</p></page2>")
	}

	var (
		sharedCursor = &Cursor{}
		sharedStack  = &Stack{}
		pageLogger   = s.logger.Named("page")
	)

	cfg := func(name, source string, initialLeft float64) pageConfig {
		c := pageConfig{
			name:        name,
			source:      source,
			grid:        s.grid,
			tile:        s.tile,
			initialLeft: initialLeft,
			usePages:    s.usePages,
			cursor:      sharedCursor,
			stack:       sharedStack,
			engine:      s.engine,
			logger:      pageLogger,
		}
		if s.usePages {
			c.cursor, c.stack = &Cursor{}, &Stack{}
		}
		return c
	}

	if len(elements) == 0 {
		p, err := newPage(cfg(documentName(doc), s.template, 0))
		if err != nil {
			return err
		}
		s.pages = []*Page{p}
		return nil
	}

	for _, el := range elements {
		initialLeft, err := s.pageInitialLeft(el)
		if err != nil {
			return err
		}
		source := markup.Render(el)
		if s.compress {
			if source, err = markup.Minify(source); err != nil {
				return err
			}
		}
		p, err := newPage(cfg(el.Data, source, initialLeft))
		if err != nil {
			return err
		}
		s.pages = append(s.pages, p)
	}
	return nil
}

func (s *Session) pageInitialLeft(el *html.Node) (float64, error) {
	if !s.usePages {
		return 0, nil
	}
	raw := markup.Attr(el, pageInitialLeftAttr)
	if strings.TrimSpace(raw) == "" {
		return 0, newError(CodeEmptyAttribute, "[%s] attribute not set on <%s>", pageInitialLeftAttr, el.Data)
	}
	f, ok := metadata.Classify(raw).Float()
	if !ok {
		return 0, newError(CodeEmptyAttribute, "[%s] attribute on <%s> is not a number: %q", pageInitialLeftAttr, el.Data, raw)
	}
	return f, nil
}

// documentName names the synthesized page: the root tag when the template has a
// single root element.
func documentName(doc *markup.Document) string {
	if roots := doc.Elements(); len(roots) == 1 {
		return roots[0].Data
	}
	return "document"
}

func positive(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// Push lays out and renders one tile per page against data, then advances the
// sheet counter. CanFlush reports true once the sheet is full.
func (s *Session) Push(data any) error {
	if !s.initialized {
		return newError(CodeNotInitialized, "session %s must be initialized before push", s.id)
	}

	for i, p := range s.pages {
		placement, err := p.LayoutStep(i, data)
		if placement.Wrapped {
			s.canFlush = true
		}
		if err != nil {
			return err
		}
	}

	s.pushed++
	if s.sheet.advance(s.grid) {
		s.canFlush = true
		s.logger.Debug("Sheet full", zap.Int("records", s.pushed))
	}
	return nil
}

// Content returns the rendered output of every page separated by the page break,
// clears every stack and resets CanFlush. In use-pages mode a trailing break
// follows the last page.
func (s *Session) Content() string {
	s.canFlush = false

	segments := make([]string, 0, len(s.pages)+1)
	for _, p := range s.pages {
		var b strings.Builder
		for _, t := range p.stack.tiles {
			b.WriteString(t.HTML)
		}
		segments = append(segments, b.String())
		p.CleanStack()
	}
	if s.usePages {
		segments = append(segments, "")
	}
	return strings.Join(segments, s.opts.PageBreak)
}

// CanFlush reports whether the current sheet is full.
func (s *Session) CanFlush() bool { return s.canFlush }

// Pending returns the number of rendered tiles not yet taken by Content.
func (s *Session) Pending() int {
	seen := make(map[*Stack]struct{}, len(s.pages))
	n := 0
	for _, p := range s.pages {
		if _, ok := seen[p.stack]; ok {
			continue
		}
		seen[p.stack] = struct{}{}
		n += p.stack.len()
	}
	return n
}

// Pages returns the discovered pages in document order.
func (s *Session) Pages() []*Page {
	out := make([]*Page, len(s.pages))
	copy(out, s.pages)
	return out
}

// TotalPages returns the number of discovered pages.
func (s *Session) TotalPages() int { return len(s.pages) }

// Metadata returns the extracted metadata, nil before Init.
func (s *Session) Metadata() *metadata.Store { return s.meta }

// Template returns the working template: the source without its metadata element,
// minified when data-compress is set.
func (s *Session) Template() string { return s.template }

// Limits returns the sheet grid.
func (s *Session) Limits() Grid { return s.grid }

// TileSize returns the tile dimensions in pixels.
func (s *Session) TileSize() Size { return s.tile }

// UsePages reports whether each page keeps its own cursor and stack.
func (s *Session) UsePages() bool { return s.usePages }

// Paper returns data-paper, or the configured paper when the template has none.
func (s *Session) Paper() string {
	if s.meta != nil {
		if v, ok := s.meta.Lookup("@paper"); ok && v != "" {
			return v
		}
	}
	return s.opts.Paper
}

// Orientation returns data-orientation ("p" or "l"), "p" by default.
func (s *Session) Orientation() string {
	if s.meta != nil {
		if v, ok := s.meta.Lookup("@orientation"); ok && v != "" {
			return strings.ToLower(v)
		}
	}
	return defaultOrientation
}

// Pushed returns the number of records pushed.
func (s *Session) Pushed() int { return s.pushed }

// Options returns the session options.
func (s *Session) Options() Options { return s.opts }

// ID identifies the session in logs and responses.
func (s *Session) ID() string { return s.id }

// IsInitialized reports whether Init succeeded.
func (s *Session) IsInitialized() bool { return s.initialized }

func (s *Session) String() string {
	return fmt.Sprintf("session %s (%d pages, %dx%d)", s.id, len(s.pages), s.grid.Cols, s.grid.Rows)
}

package repeater

import (
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/iamhimansu/template-repeater/internal/markup"
	"github.com/iamhimansu/template-repeater/internal/style"
	"github.com/iamhimansu/template-repeater/internal/templating"
)

const (
	// positionedQuery selects every element managed by the layout engine.
	positionedQuery = `//*[contains(@style,"absolute")]`
	// lockAttributePrefix names the attributes holding locked offsets, e.g.
	// data-template-initial-top.
	lockAttributePrefix = "data-template-initial-"
)

// Placement describes one LayoutStep.
type Placement struct {
	Page    string `json:"page"`
	Index   int    `json:"index"`
	RepeatX int    `json:"repeat_x"`
	RepeatY int    `json:"repeat_y"`
	// Wrapped is set when this step filled the page grid and reset the cursor.
	Wrapped bool `json:"wrapped"`
}

// Page is one repeatable region of a template. It owns its parsed fragment;
// its cursor and stack are either its own or shared with every page of the
// session, depending on the use-pages flag.
type Page struct {
	name        string
	doc         *markup.Document
	positioned  []*html.Node
	grid        Grid
	tile        Size
	initialLeft float64
	usePages    bool
	cursor      *Cursor
	stack       *Stack
	engine      templating.Engine
	locked      bool
	logger      *zap.Logger
}

type pageConfig struct {
	name        string
	source      string
	grid        Grid
	tile        Size
	initialLeft float64
	usePages    bool
	cursor      *Cursor
	stack       *Stack
	engine      templating.Engine
	logger      *zap.Logger
}

func newPage(cfg pageConfig) (*Page, error) {
	logger := cfg.logger.With(zap.String("page", cfg.name))

	doc, err := markup.Parse(cfg.source, logger)
	if err != nil {
		return nil, err
	}
	positioned, err := doc.Query(positionedQuery)
	if err != nil {
		return nil, err
	}

	return &Page{
		name:        cfg.name,
		doc:         doc,
		positioned:  positioned,
		grid:        cfg.grid,
		tile:        cfg.tile,
		initialLeft: cfg.initialLeft,
		usePages:    cfg.usePages,
		cursor:      cfg.cursor,
		stack:       cfg.stack,
		engine:      cfg.engine,
		logger:      logger,
	}, nil
}

// Name is the tag name of the page element.
func (p *Page) Name() string { return p.name }

// RepeatX is the current column of the page cursor.
func (p *Page) RepeatX() int { return p.cursor.X }

// RepeatY is the current row of the page cursor.
func (p *Page) RepeatY() int { return p.cursor.Y }

// InitialLeft is the page offset declared by data-initial-left.
func (p *Page) InitialLeft() float64 { return p.initialLeft }

// Positioned returns the number of position-managed elements.
func (p *Page) Positioned() int { return len(p.positioned) }

// HTML serializes the page fragment in its current layout.
func (p *Page) HTML() string { return p.doc.HTML() }

// Stack returns the tiles rendered so far. In single-region mode this is the
// stack shared by all pages.
func (p *Page) Stack() []Tile {
	out := make([]Tile, len(p.stack.tiles))
	copy(out, p.stack.tiles)
	return out
}

// SetStack replaces the page stack.
func (p *Page) SetStack(tiles []Tile) {
	p.stack.tiles = append([]Tile(nil), tiles...)
}

// CleanStack empties the page stack.
func (p *Page) CleanStack() {
	p.stack.tiles = nil
}

// LockInitialPositions copies the leading number of every top, left, right and
// bottom declaration of each positioned element into a data-template-initial-*
// attribute. Later layout steps compute offsets from these attributes only, so
// the rewritten style never feeds back into the next step. Only the first call
// has an effect.
func (p *Page) LockInitialPositions() {
	if p.locked {
		return
	}
	p.locked = true

	for _, el := range p.positioned {
		decls := style.Parse(markup.Attr(el, "style"))
		fields := make([]zap.Field, 0, len(style.Offsets)+1)
		fields = append(fields, zap.String("element", markup.XPath(el)))

		for _, prop := range style.Offsets {
			value, ok := decls.Get(prop)
			if !ok {
				continue
			}
			n, _, ok := style.LeadingNumber(value)
			if !ok {
				continue
			}
			markup.SetAttr(el, lockAttribute(prop), style.FormatNumber(n))
			fields = append(fields, zap.Float64(string(prop), n))
		}
		p.logger.Debug("Locked initial positions", fields...)
	}
}

// LayoutStep places the next tile: it rewrites top and left of every positioned
// element from the locked offsets and the cursor, advances the cursor, renders
// the fragment against data and pushes the result onto the stack.
//
// The cursor advances before rendering, so the returned placement carries the
// position of the next tile and Wrapped is meaningful even when rendering fails.
func (p *Page) LayoutStep(index int, data any) (Placement, error) {
	col, row := p.cursor.X, p.cursor.Y
	x, y := float64(col), float64(row)

	for _, el := range p.positioned {
		decls := style.Parse(markup.Attr(el, "style"))
		changed := false

		if decls.Has(style.Top) {
			top := lockedOffset(el, style.Top) + y*p.tile.Height
			decls.Set(style.Top, style.Pixels(top))
			changed = true
		}
		if decls.Has(style.Left) {
			var left float64
			if p.usePages {
				left = lockedOffset(el, style.Left) - p.initialLeft + x*p.tile.Width
			} else {
				left = x*p.tile.Width - p.initialLeft
			}
			decls.Set(style.Left, style.Pixels(left))
			changed = true
		}
		if changed {
			markup.SetAttr(el, "style", decls.String())
		}
	}

	placement := Placement{Page: p.name, Index: index}
	placement.Wrapped = p.cursor.advance(p.grid)
	placement.RepeatX, placement.RepeatY = p.cursor.X, p.cursor.Y

	p.logger.Debug("Placed tile",
		zap.Int("index", index),
		zap.Int("repeat_x", col),
		zap.Int("repeat_y", row),
		zap.Bool("wrapped", placement.Wrapped))

	rendered, err := p.engine.Render(p.doc.HTML(), data)
	if err != nil {
		p.logger.Error("Failed to render tile", zap.Int("index", index), zap.Error(err))
		return placement, err
	}
	p.stack.push(Tile{Index: index, HTML: rendered})
	return placement, nil
}

func lockAttribute(prop style.Property) string {
	return lockAttributePrefix + string(prop)
}

// lockedOffset reads a locked offset, 0 when the element has none.
func lockedOffset(el *html.Node, prop style.Property) float64 {
	raw := strings.TrimSpace(markup.Attr(el, lockAttribute(prop)))
	if raw == "" {
		return 0
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return n
}

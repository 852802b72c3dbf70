// Package templating renders tile fragments against data records.
package templating

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownEngine is returned by New for an unregistered engine name.
var ErrUnknownEngine = errors.New("unknown template engine")

// Engine renders a template source against a data value.
type Engine interface {
	Render(source string, data any) (string, error)
}

// Engine names accepted by New.
const (
	EngineExpr = "expr"
	EngineGo   = "go"
)

// New returns the engine registered under name. An empty name selects the expr
// engine. Partials are named sub-templates and only apply to the go engine.
func New(name string, escape bool, partials map[string]string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", EngineExpr:
		return NewExprEngine(escape), nil
	case EngineGo:
		return &GoEngine{Escape: escape, Partials: partials}, nil
	default:
		return nil, fmt.Errorf("%w %q (want %q or %q)", ErrUnknownEngine, name, EngineExpr, EngineGo)
	}
}

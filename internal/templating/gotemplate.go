package templating

import (
	"bytes"
	"html"
	htmltemplate "html/template"
	"io"
	"strings"
	texttemplate "text/template"
)

const rootTemplateName = "tile"

// GoEngine renders with the standard Go template packages. With Escape set the
// contextual html/template escaper is used. Partials are registered as named
// templates available through {{ template "name" . }}.
type GoEngine struct {
	Escape   bool
	Partials map[string]string
}

// Render implements Engine. Sources serialized from a parsed document carry
// entity-escaped quotes inside actions; those are restored before parsing.
func (e *GoEngine) Render(source string, data any) (string, error) {
	source = unescapeActions(source)
	var buf bytes.Buffer
	var err error
	if e.Escape {
		err = e.executeHTML(&buf, source, data)
	} else {
		err = e.executeText(&buf, source, data)
	}
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (e *GoEngine) executeText(w io.Writer, source string, data any) error {
	t := texttemplate.New(rootTemplateName)
	for name, body := range e.Partials {
		if _, err := t.New(name).Parse(body); err != nil {
			return &Error{Kind: KindSyntax, Err: err}
		}
	}
	if _, err := t.Parse(source); err != nil {
		return &Error{Kind: KindSyntax, Err: err}
	}
	return classifyExecution(t.Execute(w, data))
}

func (e *GoEngine) executeHTML(w io.Writer, source string, data any) error {
	t := htmltemplate.New(rootTemplateName)
	for name, body := range e.Partials {
		if _, err := t.New(name).Parse(body); err != nil {
			return &Error{Kind: KindSyntax, Err: err}
		}
	}
	if _, err := t.Parse(source); err != nil {
		return &Error{Kind: KindSyntax, Err: err}
	}
	return classifyExecution(t.Execute(w, data))
}

// unescapeActions decodes HTML entities inside {{ }} actions only, so string
// literals such as {{ printf "%s" .x }} survive an html.Render round trip.
func unescapeActions(source string) string {
	if !strings.Contains(source, "&") {
		return source
	}
	var b strings.Builder
	b.Grow(len(source))
	rest := source
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			break
		}
		end := strings.Index(rest[start+2:], "}}")
		if end < 0 {
			break
		}
		end += start + 2
		b.WriteString(rest[:start+2])
		b.WriteString(html.UnescapeString(rest[start+2 : end]))
		b.WriteString("}}")
		rest = rest[end+2:]
	}
	b.WriteString(rest)
	return b.String()
}

func classifyExecution(err error) error {
	if err == nil {
		return nil
	}
	// text/template reports "not defined", html/template "no such template".
	if msg := err.Error(); strings.Contains(msg, "not defined") || strings.Contains(msg, "no such template") {
		return &Error{Kind: KindLoader, Err: err}
	}
	return &Error{Kind: KindRuntime, Err: err}
}

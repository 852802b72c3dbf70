package markup

import (
	"fmt"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/html"
)

const htmlMediaType = "text/html"

// Minifier compacts rendered sheets. Document tags, end tags and attribute quotes
// are preserved so the output stays valid for downstream HTML-to-PDF tools, and
// "{{ }}" placeholders pass through untouched.
type Minifier struct {
	m *minify.M
}

// NewMinifier returns a Minifier configured for template output.
func NewMinifier() *Minifier {
	m := minify.New()
	m.Add(htmlMediaType, &html.Minifier{
		KeepDocumentTags:    true,
		KeepEndTags:         true,
		KeepQuotes:          true,
		KeepDefaultAttrVals: true,
		TemplateDelims:      [2]string{"{{", "}}"},
	})
	return &Minifier{m: m}
}

// String minifies an HTML string.
func (mf *Minifier) String(source string) (string, error) {
	out, err := mf.m.String(htmlMediaType, source)
	if err != nil {
		return "", fmt.Errorf("failed to minify html: %w", err)
	}
	return out, nil
}

var defaultMinifier = NewMinifier()

// Minify compacts source with the shared template Minifier.
func Minify(source string) (string, error) {
	return defaultMinifier.String(source)
}

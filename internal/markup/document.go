// internal/markup/document.go
package markup

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// fullDocumentPattern detects sources that carry their own <html> root. Everything
// else is parsed as a body fragment so no implied html/head/body wrappers appear in
// the serialized output.
var fullDocumentPattern = regexp.MustCompile(`(?i)<html[\s>]`)

// Document is a parsed template tree rooted at a synthetic document node.
type Document struct {
	root *html.Node
}

// Parse builds a Document from an HTML string. Parsing is lenient: unknown
// elements such as <page1> are kept as regular elements. The doctype is removed
// and whitespace-only text between elements is dropped.
func Parse(source string, logger *zap.Logger) (*Document, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	root, err := parse(source)
	if err != nil {
		logger.Error("Failed to build template DOM", zap.Error(err), zap.Int("source_bytes", len(source)))
		return nil, fmt.Errorf("failed to parse template markup: %w", err)
	}

	stripDoctype(root)
	collapseWhitespace(root)
	return &Document{root: root}, nil
}

func parse(source string) (*html.Node, error) {
	if fullDocumentPattern.MatchString(source) {
		return html.Parse(strings.NewReader(source))
	}

	context := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(source), context)
	if err != nil {
		return nil, err
	}
	root := &html.Node{Type: html.DocumentNode}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	return root, nil
}

// Root returns the synthetic document node.
func (d *Document) Root() *html.Node { return d.root }

// Elements returns the top-level element children of the document.
func (d *Document) Elements() []*html.Node {
	var out []*html.Node
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// Query evaluates an XPath expression against the whole document.
func (d *Document) Query(expr string) ([]*html.Node, error) {
	return QueryFrom(d.root, expr)
}

// QueryOne returns the first node matching expr, or nil.
func (d *Document) QueryOne(expr string) (*html.Node, error) {
	nodes, err := d.Query(expr)
	if err != nil || len(nodes) == 0 {
		return nil, err
	}
	return nodes[0], nil
}

// QueryFrom evaluates an XPath expression relative to node.
func QueryFrom(node *html.Node, expr string) ([]*html.Node, error) {
	nodes, err := htmlquery.QueryAll(node, expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath expression %q: %w", expr, err)
	}
	return nodes, nil
}

// FindByTagAndID returns the first element with the given local name and id.
func (d *Document) FindByTagAndID(tag, id string) (*html.Node, error) {
	expr := fmt.Sprintf(`//*[local-name()=%s and @id=%s]`, xpathLiteral(tag), xpathLiteral(id))
	return d.QueryOne(expr)
}

// HTML serializes the whole document.
func (d *Document) HTML() string {
	return Render(d.root)
}

// Render serializes a node and its subtree. A document node renders its children.
func Render(node *html.Node) string {
	var buf bytes.Buffer
	_ = html.Render(&buf, node)
	return buf.String()
}

// Remove detaches node from its parent.
func Remove(node *html.Node) {
	if node != nil && node.Parent != nil {
		node.Parent.RemoveChild(node)
	}
}

// Attr returns the value of the attribute key, or "".
func Attr(node *html.Node, key string) string {
	return htmlquery.SelectAttr(node, key)
}

// HasAttr reports whether node carries the attribute key.
func HasAttr(node *html.Node, key string) bool {
	for _, a := range node.Attr {
		if a.Namespace == "" && a.Key == key {
			return true
		}
	}
	return false
}

// SetAttr sets or adds the attribute key.
func SetAttr(node *html.Node, key, value string) {
	for i, a := range node.Attr {
		if a.Namespace == "" && a.Key == key {
			node.Attr[i].Val = value
			return
		}
	}
	node.Attr = append(node.Attr, html.Attribute{Key: key, Val: value})
}

// RemoveAttr deletes the attribute key.
func RemoveAttr(node *html.Node, key string) {
	kept := node.Attr[:0]
	for _, a := range node.Attr {
		if a.Namespace == "" && a.Key == key {
			continue
		}
		kept = append(kept, a)
	}
	node.Attr = kept
}

// Attributes returns a copy of node's attributes in source order.
func Attributes(node *html.Node) []html.Attribute {
	out := make([]html.Attribute, len(node.Attr))
	copy(out, node.Attr)
	return out
}

func stripDoctype(root *html.Node) {
	for c := root.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.DoctypeNode {
			root.RemoveChild(c)
		}
		c = next
	}
}

// collapseWhitespace merges adjacent text nodes and drops whitespace-only text
// nodes, leaving preformatted and raw-text elements untouched.
func collapseWhitespace(node *html.Node) {
	for c := node.FirstChild; c != nil; {
		next := c.NextSibling
		switch c.Type {
		case html.TextNode:
			for next != nil && next.Type == html.TextNode {
				c.Data += next.Data
				after := next.NextSibling
				node.RemoveChild(next)
				next = after
			}
			if strings.TrimSpace(c.Data) == "" {
				node.RemoveChild(c)
			}
		case html.ElementNode:
			if !preservesWhitespace(c) {
				collapseWhitespace(c)
			}
		case html.DocumentNode:
			collapseWhitespace(c)
		}
		c = next
	}
}

func preservesWhitespace(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Pre, atom.Textarea, atom.Script, atom.Style:
		return true
	}
	return false
}

// xpathLiteral quotes s for use inside an XPath expression.
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	parts := strings.Split(s, `"`)
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = `"` + p + `"`
	}
	return "concat(" + strings.Join(quoted, `, '"', `) + ")"
}

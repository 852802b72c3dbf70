// internal/markup/xpath.go
package markup

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// XPath builds an XPath expression that locates node within its document.
// An element carrying an id anchors the path so logs stay short for the page
// and metadata elements.
func XPath(node *html.Node) string {
	if node == nil {
		return ""
	}

	var segments []string
	for n := node; n != nil && n.Type != html.DocumentNode; n = n.Parent {
		if n.Type != html.ElementNode || n.Data == "" {
			continue
		}
		tag := strings.ToLower(n.Data)

		if id := Attr(n, "id"); id != "" {
			segments = append(segments, fmt.Sprintf("//%s[@id=%s]", tag, xpathLiteral(id)))
			break
		}
		segments = append(segments, fmt.Sprintf("%s[%d]", tag, siblingIndex(n, tag)))
	}

	if len(segments) == 0 {
		return "/"
	}

	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}

	path := strings.Join(segments, "/")
	if !strings.HasPrefix(path, "//") {
		path = "/" + path
	}
	return path
}

// siblingIndex is the 1-based position of n among preceding siblings with the same tag.
func siblingIndex(n *html.Node, tag string) int {
	index := 1
	for prev := n.PrevSibling; prev != nil; prev = prev.PrevSibling {
		if prev.Type == html.ElementNode && strings.ToLower(prev.Data) == tag {
			index++
		}
	}
	return index
}

// CLAUDE:SUMMARY In-memory document model over x/net/html: page discovery, marker spans, normalization.
package dom

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// MarkerAttr tags the span elements this package wraps around
// annotated text so they can be found and unwound later.
const MarkerAttr = "data-annot-id"

var (
	ErrNoPages   = errors.New("dom: no pages found")
	ErrNotReady  = errors.New("dom: text layer not ready")
	ErrPageRange = errors.New("dom: page number out of range")
)

// Document wraps a parsed HTML tree of a rendered-PDF viewer.
type Document struct {
	Root *html.Node
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse: %w", err)
	}
	return &Document{Root: root}, nil
}

// ParseString reads an HTML document from a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Page is one rendered PDF page inside the viewer DOM.
type Page struct {
	Number int // 1-based
	Node   *html.Node
}

// TextLayer returns the page's text layer element, or nil while the
// viewer is still rendering it.
func (p *Page) TextLayer() *html.Node {
	var found *html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && hasClass(n, "textLayer") {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(p.Node)
	return found
}

// Ready reports whether the page's text layer has rendered at least
// one text node. Callers retry with backoff until this holds.
func (p *Page) Ready() bool {
	tl := p.TextLayer()
	if tl == nil {
		return false
	}
	var has bool
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if has {
			return
		}
		if n.Type == html.TextNode && strings.TrimSpace(n.Data) != "" {
			has = true
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(tl)
	return has
}

// Pages finds the viewer's page containers, identified by their
// data-page-number attribute, in document order.
func (d *Document) Pages() []*Page {
	var pages []*Page
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if v := attr(n, "data-page-number"); v != "" {
				if num, err := strconv.Atoi(v); err == nil {
					pages = append(pages, &Page{Number: num, Node: n})
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(d.Root)
	return pages
}

// Page returns the page with the given 1-based number.
func (d *Document) Page(num int) (*Page, error) {
	for _, p := range d.Pages() {
		if p.Number == num {
			return p, nil
		}
	}
	return nil, fmt.Errorf("dom: page %d: %w", num, ErrPageRange)
}

// Normalize merges adjacent text node siblings under n, recursively,
// and drops empty text nodes. Unwrapping marker spans leaves split
// text nodes behind; anchoring assumes a normalized tree.
func Normalize(n *html.Node) {
	c := n.FirstChild
	for c != nil {
		next := c.NextSibling
		if c.Type == html.TextNode {
			if c.Data == "" {
				n.RemoveChild(c)
			} else if next != nil && next.Type == html.TextNode {
				c.Data += next.Data
				n.RemoveChild(next)
				continue // re-examine c against its new sibling
			}
		} else {
			Normalize(c)
		}
		c = next
	}
}

// WrapMarker wraps the given text node in a marker span carrying the
// annotation id and returns the span. The text node keeps its content
// and moves inside the span.
func WrapMarker(textNode *html.Node, id string, extra map[string]string) (*html.Node, error) {
	if textNode.Type != html.TextNode {
		return nil, errors.New("dom: wrap marker: not a text node")
	}
	parent := textNode.Parent
	if parent == nil {
		return nil, errors.New("dom: wrap marker: detached text node")
	}
	span := &html.Node{
		Type:     html.ElementNode,
		Data:     "span",
		DataAtom: atom.Span,
		Attr:     []html.Attribute{{Key: MarkerAttr, Val: id}},
	}
	for k, v := range extra {
		span.Attr = append(span.Attr, html.Attribute{Key: k, Val: v})
	}
	parent.InsertBefore(span, textNode)
	parent.RemoveChild(textNode)
	span.AppendChild(textNode)
	return span, nil
}

// Markers returns all marker spans under root carrying the given id,
// or every marker span when id is empty.
func Markers(root *html.Node, id string) []*html.Node {
	var out []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "span" {
			if v := attr(n, MarkerAttr); v != "" && (id == "" || v == id) {
				out = append(out, n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

// RemoveMarkers unwraps marker spans under root carrying the given
// id (all marker spans when id is empty), splicing their children
// back into the parent, then normalizes the affected parents.
func RemoveMarkers(root *html.Node, id string) int {
	spans := Markers(root, id)
	parents := make(map[*html.Node]struct{})
	for _, span := range spans {
		parent := span.Parent
		if parent == nil {
			continue
		}
		for span.FirstChild != nil {
			c := span.FirstChild
			span.RemoveChild(c)
			parent.InsertBefore(c, span)
		}
		parent.RemoveChild(span)
		parents[parent] = struct{}{}
	}
	for p := range parents {
		Normalize(p)
	}
	return len(spans)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// SetAttr sets or replaces an attribute on an element node.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// Attr returns the value of the named attribute, or "".
func Attr(n *html.Node, key string) string { return attr(n, key) }

func hasClass(n *html.Node, class string) bool {
	for _, f := range strings.Fields(attr(n, "class")) {
		if f == class {
			return true
		}
	}
	return false
}

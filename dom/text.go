package dom

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// TextIndex is the flattened text of a subtree plus the mapping back
// from flat offsets to the text nodes they came from. The flattening
// joins adjacent text nodes with a single space unless whitespace
// already sits at the boundary or the following node starts with '.'
// or ',', matching how the viewer breaks lines mid-sentence but keeps
// punctuation glued to its word.
type TextIndex struct {
	Text  string
	spans []textSpan
}

type textSpan struct {
	node       *html.Node
	start, end int // half-open range in Text
}

// BuildTextIndex flattens all text nodes under root in document order.
func BuildTextIndex(root *html.Node) *TextIndex {
	idx := &TextIndex{}
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode && strings.TrimSpace(n.Data) != "" {
			if b.Len() > 0 && needsJoinSpace(b.String()[b.Len()-1], n.Data) {
				b.WriteByte(' ')
			}
			start := b.Len()
			b.WriteString(n.Data)
			idx.spans = append(idx.spans, textSpan{node: n, start: start, end: b.Len()})
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	idx.Text = b.String()
	return idx
}

// needsJoinSpace decides whether a space goes between two adjacent
// text nodes: never before glued punctuation, never when whitespace
// already sits on either side of the boundary.
func needsJoinSpace(prev byte, next string) bool {
	if next == "" {
		return false
	}
	c := next[0]
	if c == '.' || c == ',' {
		return false
	}
	if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
		return false
	}
	if prev == ' ' || prev == '\t' || prev == '\n' || prev == '\r' {
		return false
	}
	return true
}

// Locate maps a flat offset to a text node and a local offset within
// it. For end offsets set endSide so an offset landing on a node
// boundary resolves to the preceding node's end rather than the next
// node's start.
func (ti *TextIndex) Locate(off int, endSide bool) (*html.Node, int, error) {
	for _, s := range ti.spans {
		if endSide {
			if off > s.start && off <= s.end {
				return s.node, off - s.start, nil
			}
		} else {
			if off >= s.start && off < s.end {
				return s.node, off - s.start, nil
			}
		}
	}
	return nil, 0, fmt.Errorf("dom: locate offset %d: out of range", off)
}

// Range spans text between two positions inside text nodes. Offsets
// are rune-agnostic byte offsets into the node data; stored snippets
// use the same convention.
type Range struct {
	Start       *html.Node
	StartOffset int
	End         *html.Node
	EndOffset   int
}

// RangeAt builds a Range over the flat interval [start,end).
func (ti *TextIndex) RangeAt(start, end int) (Range, error) {
	if start < 0 || end <= start || end > len(ti.Text) {
		return Range{}, fmt.Errorf("dom: range [%d,%d): out of bounds", start, end)
	}
	sn, so, err := ti.Locate(start, false)
	if err != nil {
		return Range{}, err
	}
	en, eo, err := ti.Locate(end, true)
	if err != nil {
		return Range{}, err
	}
	return Range{Start: sn, StartOffset: so, End: en, EndOffset: eo}, nil
}

// Text extracts the text covered by the range, applying the same join
// rule as BuildTextIndex between the nodes it crosses.
func (r Range) Text() (string, error) {
	if r.Start == r.End {
		if r.EndOffset > len(r.Start.Data) || r.StartOffset > r.EndOffset {
			return "", errors.New("dom: range text: offsets out of bounds")
		}
		return r.Start.Data[r.StartOffset:r.EndOffset], nil
	}
	nodes, err := r.TextNodes()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	var prev byte
	for i, n := range nodes {
		data := n.Data
		if i == 0 {
			if r.StartOffset > len(data) {
				return "", errors.New("dom: range text: start offset out of bounds")
			}
			data = data[r.StartOffset:]
		} else if i == len(nodes)-1 {
			if r.EndOffset > len(data) {
				return "", errors.New("dom: range text: end offset out of bounds")
			}
			data = data[:r.EndOffset]
		}
		if i > 0 && needsJoinSpace(prev, data) {
			b.WriteByte(' ')
		}
		b.WriteString(data)
		if b.Len() > 0 {
			prev = b.String()[b.Len()-1]
		}
	}
	return b.String(), nil
}

// TextNodes returns the text nodes the range covers, in document
// order, start and end included.
func (r Range) TextNodes() ([]*html.Node, error) {
	root := r.Start
	for root.Parent != nil {
		root = root.Parent
	}
	var nodes []*html.Node
	in := false
	done := false
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if done {
			return
		}
		if n.Type == html.TextNode {
			if n == r.Start {
				in = true
			}
			if in && n.Data != "" {
				nodes = append(nodes, n)
			}
			if n == r.End {
				done = true
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	if !done || len(nodes) == 0 {
		return nil, errors.New("dom: range end not reached from start")
	}
	return nodes, nil
}

// Wrap splits the range's boundary text nodes and wraps every covered
// text node in a marker span carrying id, returning the spans created.
func (r Range) Wrap(id string, extra map[string]string) ([]*html.Node, error) {
	start, end := r.Start, r.End
	startOff, endOff := r.StartOffset, r.EndOffset

	if start == end {
		// Split off the tail first so the start offset stays valid.
		if endOff < len(start.Data) {
			SplitText(start, endOff)
		}
		if startOff > 0 {
			start = SplitText(start, startOff)
		}
		end = start
	} else {
		if startOff > 0 {
			start = SplitText(start, startOff)
		}
		if endOff < len(end.Data) {
			SplitText(end, endOff)
		}
	}

	covered, err := (Range{Start: start, End: end}).TextNodes()
	if err != nil {
		return nil, err
	}
	var spans []*html.Node
	for _, n := range covered {
		if strings.TrimSpace(n.Data) == "" && n != start && n != end {
			continue
		}
		span, err := WrapMarker(n, id, extra)
		if err != nil {
			return nil, fmt.Errorf("dom: wrap range: %w", err)
		}
		spans = append(spans, span)
	}
	return spans, nil
}

// SplitText splits a text node at off and returns the new right-hand
// node, inserted immediately after the original.
func SplitText(n *html.Node, off int) *html.Node {
	right := &html.Node{Type: html.TextNode, Data: n.Data[off:]}
	n.Data = n.Data[:off]
	if n.NextSibling != nil {
		n.Parent.InsertBefore(right, n.NextSibling)
	} else {
		n.Parent.AppendChild(right)
	}
	return right
}

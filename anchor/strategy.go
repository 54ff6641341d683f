package anchor

import (
	"fmt"
	"strings"

	"github.com/hazyhaar/annot/dom"
)

// Structural resolves the record's stored node paths directly. It is
// the cheapest strategy and survives renders that rebuild the page
// with an identical node structure.
type Structural struct{}

func (Structural) Name() string { return "structural" }

func (Structural) Resolve(page *dom.Page, rec Record) (dom.Range, error) {
	start, err := dom.ResolvePath(page.Node, rec.StartPath)
	if err != nil {
		return dom.Range{}, fmt.Errorf("anchor: structural: %w", err)
	}
	end, err := dom.ResolvePath(page.Node, rec.EndPath)
	if err != nil {
		return dom.Range{}, fmt.Errorf("anchor: structural: %w", err)
	}
	if start.Type != end.Type {
		return dom.Range{}, fmt.Errorf("anchor: structural: mixed node types")
	}
	r := dom.Range{
		Start: start, StartOffset: rec.StartOffset,
		End: end, EndOffset: rec.EndOffset,
	}
	if rec.StartOffset > len(start.Data) || rec.EndOffset > len(end.Data) {
		return dom.Range{}, fmt.Errorf("anchor: structural: stored offsets exceed node data")
	}
	if err := Verify(r, rec.Snippet); err != nil {
		return dom.Range{}, err
	}
	return r, nil
}

// Exact searches the page's flattened text for the stored snippet.
// The first occurrence wins, which keeps resolution deterministic
// when the snippet repeats on the page.
type Exact struct{}

func (Exact) Name() string { return "exact" }

func (Exact) Resolve(page *dom.Page, rec Record) (dom.Range, error) {
	idx := dom.BuildTextIndex(page.Node)
	at := strings.Index(idx.Text, rec.Snippet)
	if at < 0 {
		return dom.Range{}, fmt.Errorf("anchor: exact: snippet not on page")
	}
	r, err := idx.RangeAt(at, at+len(rec.Snippet))
	if err != nil {
		return dom.Range{}, fmt.Errorf("anchor: exact: %w", err)
	}
	return r, nil
}

// Fuzzy matches the snippet's significant tokens in order. Tokens of
// three characters or fewer carry too little signal and are skipped.
// All remaining tokens must appear in order for the match to hold;
// the range then spans from the first token to the end of the last.
type Fuzzy struct{}

func (Fuzzy) Name() string { return "fuzzy" }

func (Fuzzy) Resolve(page *dom.Page, rec Record) (dom.Range, error) {
	tokens := significantTokens(rec.Snippet)
	if len(tokens) == 0 {
		return dom.Range{}, fmt.Errorf("anchor: fuzzy: no significant tokens")
	}
	idx := dom.BuildTextIndex(page.Node)
	first := -1
	pos := 0
	last := 0
	for _, tok := range tokens {
		at := strings.Index(idx.Text[pos:], tok)
		if at < 0 {
			return dom.Range{}, fmt.Errorf("anchor: fuzzy: token %q not found in order", tok)
		}
		at += pos
		if first < 0 {
			first = at
		}
		last = at + len(tok)
		pos = last
	}
	r, err := idx.RangeAt(first, last)
	if err != nil {
		return dom.Range{}, fmt.Errorf("anchor: fuzzy: %w", err)
	}
	return r, nil
}

func significantTokens(s string) []string {
	var out []string
	for _, f := range strings.Fields(s) {
		f = strings.Trim(f, ".,;:!?()[]{}\"'")
		if len(f) > 3 {
			out = append(out, f)
		}
	}
	return out
}

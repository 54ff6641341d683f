package apply

import (
	"context"
	"fmt"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/annot/anchor"
	"github.com/hazyhaar/annot/annotation"
	"github.com/hazyhaar/annot/dom"
	"github.com/hazyhaar/annot/history"
	"github.com/hazyhaar/annot/store"
)

// colorAttr carries a highlight's color on its marker spans so the
// renderer can paint without a store lookup.
const colorAttr = "data-color"

// CreateHighlight anchors the selection, wraps it, stores the record,
// and records the action. Where the selection overlaps an existing
// highlight the overlap is retagged to the new one: a text node never
// sits inside two marker spans, and the newest highlight wins the
// contested region.
func (a *Applier) CreateHighlight(ctx context.Context, page *dom.Page, r dom.Range, color string) (*annotation.Highlight, error) {
	text, err := r.Text()
	if err != nil {
		return nil, fmt.Errorf("apply: create highlight: %w", err)
	}
	if err := annotation.ValidateSelection(text); err != nil {
		return nil, err
	}
	if color == "" {
		color = annotation.DefaultColor
	}
	rec, err := anchor.MakeRecord(page, r)
	if err != nil {
		return nil, fmt.Errorf("apply: create highlight: %w", err)
	}
	hl := &annotation.Highlight{
		ID:        annotation.NewHighlightID(),
		Type:      annotation.KindHighlight,
		Color:     color,
		Anchor:    rec,
		CreatedAt: annotation.Now(),
	}
	if _, err := wrapOrRetag(r, hl.ID, hl.Color); err != nil {
		return nil, fmt.Errorf("apply: create highlight: %w", err)
	}
	if err := store.Upsert(ctx, a.store, a.url, hl); err != nil {
		dom.RemoveMarkers(a.doc.Root, hl.ID)
		return nil, fmt.Errorf("apply: create highlight: %w", err)
	}
	a.record(history.Entry{Kind: history.HighlightCreate, After: hl})
	a.redraw.Request()
	a.logger.Debug("highlight created", "id", hl.ID, "page", page.Number, "chars", len(text))
	return hl, nil
}

// EraseHighlight removes a highlight and its markers.
func (a *Applier) EraseHighlight(ctx context.Context, id string) error {
	rec, err := store.Get(ctx, a.store, a.url, annotation.KindHighlight, id)
	if err != nil {
		return fmt.Errorf("apply: erase highlight: %w", err)
	}
	if rec == nil {
		return nil
	}
	if err := store.Delete(ctx, a.store, a.url, annotation.KindHighlight, id); err != nil {
		return fmt.Errorf("apply: erase highlight: %w", err)
	}
	dom.RemoveMarkers(a.doc.Root, id)
	a.record(history.Entry{Kind: history.HighlightErase, Before: rec})
	a.redraw.Request()
	return nil
}

// ReanchorAll strips every marker, normalizes the tree, and re-places
// each stored highlight and comment. Records that fail to anchor stay
// in the store and are returned so the session can retry after the
// next render settles. Highlights and comments share a collection, so
// one list covers both.
func (a *Applier) ReanchorAll(ctx context.Context) (placed, failed []string, err error) {
	dom.RemoveMarkers(a.doc.Root, "")
	recs, err := a.store.List(ctx, a.url, annotation.KindHighlight)
	if err != nil {
		return nil, nil, fmt.Errorf("apply: reanchor: %w", err)
	}
	for _, rec := range recs {
		switch r := rec.(type) {
		case *annotation.Highlight:
			if err := a.wrapResolved(r); err != nil {
				a.logger.Debug("reanchor failed", "id", r.ID, "error", err)
				failed = append(failed, r.ID)
				continue
			}
			placed = append(placed, r.ID)
		case *annotation.Comment:
			if err := a.wrapCommentResolved(r); err != nil {
				a.logger.Debug("reanchor failed", "id", r.ID, "error", err)
				failed = append(failed, r.ID)
				continue
			}
			placed = append(placed, r.ID)
		}
	}
	a.redraw.Request()
	return placed, failed, nil
}

// wrapResolved resolves a stored highlight's anchor and wraps it.
func (a *Applier) wrapResolved(hl *annotation.Highlight) error {
	page, err := a.doc.Page(hl.Anchor.Page)
	if err != nil {
		return err
	}
	if !page.Ready() {
		return dom.ErrNotReady
	}
	r, strategy, err := a.resolver.Resolve(page, hl.Anchor)
	if err != nil {
		return err
	}
	if strategy != "structural" {
		a.logger.Debug("highlight re-anchored by fallback", "id", hl.ID, "strategy", strategy)
	}
	_, err = wrapOrRetag(r, hl.ID, hl.Color)
	return err
}

// wrapOrRetag is the single-wrap wrapper: covered text nodes already
// inside a marker span have that span retagged instead of gaining a
// second wrapper.
func wrapOrRetag(r dom.Range, id, color string) ([]*html.Node, error) {
	start, end := r.Start, r.End
	startOff, endOff := r.StartOffset, r.EndOffset

	if start == end {
		if endOff < len(start.Data) {
			splitWithMarker(start, endOff)
		}
		if startOff > 0 {
			start = splitWithMarker(start, startOff)
		}
		end = start
	} else {
		if startOff > 0 {
			start = splitWithMarker(start, startOff)
		}
		if endOff < len(end.Data) {
			splitWithMarker(end, endOff)
		}
	}

	covered, err := (dom.Range{Start: start, End: end}).TextNodes()
	if err != nil {
		return nil, err
	}
	var spans []*html.Node
	for _, n := range covered {
		if p := n.Parent; p != nil && dom.Attr(p, dom.MarkerAttr) != "" {
			dom.SetAttr(p, dom.MarkerAttr, id)
			dom.SetAttr(p, colorAttr, color)
			spans = append(spans, p)
			continue
		}
		span, err := dom.WrapMarker(n, id, map[string]string{colorAttr: color})
		if err != nil {
			return nil, err
		}
		spans = append(spans, span)
	}
	return spans, nil
}

// splitWithMarker splits a text node at off and, when the node lives
// inside a marker span, splits the span too so each half can carry a
// different highlight. Returns the right-hand text node.
func splitWithMarker(n *html.Node, off int) *html.Node {
	right := dom.SplitText(n, off)
	p := n.Parent
	if p == nil || dom.Attr(p, dom.MarkerAttr) == "" {
		return right
	}
	clone := &html.Node{
		Type:     html.ElementNode,
		Data:     "span",
		DataAtom: atom.Span,
		Attr:     append([]html.Attribute(nil), p.Attr...),
	}
	p.RemoveChild(right)
	if p.NextSibling != nil {
		p.Parent.InsertBefore(clone, p.NextSibling)
	} else {
		p.Parent.AppendChild(clone)
	}
	clone.AppendChild(right)
	return right
}

// CLAUDE:SUMMARY Applies annotation operations to the document and store: create, erase, edit, re-anchor, erase-all.
package apply

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/annot/anchor"
	"github.com/hazyhaar/annot/annotation"
	"github.com/hazyhaar/annot/dom"
	"github.com/hazyhaar/annot/geom"
	"github.com/hazyhaar/annot/history"
	"github.com/hazyhaar/annot/store"
)

// PageRect is a percent rect attributed to a page, as reported by the
// renderer for a highlight's painted regions.
type PageRect struct {
	Page int
	Rect geom.PercentRect
}

// RectProvider reports the painted regions of a highlight so the
// eraser can hit-test it. The in-memory document has no layout, so
// rects always come from outside.
type RectProvider func(ctx context.Context, id string) ([]PageRect, error)

// Applier executes annotation operations against one document: it
// keeps the DOM overlay, the store, and the history in step. It is
// not safe for concurrent use; the session serializes calls.
type Applier struct {
	url      string
	doc      *dom.Document
	store    store.Store
	resolver *anchor.Resolver
	hist     *history.History
	redraw   *Coalescer
	rects    RectProvider
	sanitize *bluemonday.Policy
	logger   *slog.Logger

	// mirror keeps the last known drawing collection so strokes
	// survive a storage backend hiccup within the session.
	mirror []*annotation.Drawing
}

// Option configures an Applier.
type Option func(*Applier)

// WithResolver replaces the default anchor resolver.
func WithResolver(r *anchor.Resolver) Option {
	return func(a *Applier) { a.resolver = r }
}

// WithRedraw replaces the redraw coalescer.
func WithRedraw(c *Coalescer) Option {
	return func(a *Applier) { a.redraw = c }
}

// WithRects installs the highlight hit-test provider.
func WithRects(p RectProvider) Option {
	return func(a *Applier) { a.rects = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Applier) { a.logger = l }
}

// New builds an Applier for the document at url.
func New(url string, doc *dom.Document, st store.Store, opts ...Option) (*Applier, error) {
	if err := store.ValidateURL(url); err != nil {
		return nil, fmt.Errorf("apply: new: %w", err)
	}
	a := &Applier{
		url:      url,
		doc:      doc,
		store:    st,
		resolver: anchor.NewResolver(),
		redraw:   NewCoalescer(nil),
		sanitize: bluemonday.StrictPolicy(),
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}
	return a, nil
}

// BindHistory attaches the history engine. The engine needs the
// applier to exist first, so wiring happens in two steps.
func (a *Applier) BindHistory(h *history.History) { a.hist = h }

// URL returns the document URL this applier serves.
func (a *Applier) URL() string { return a.url }

// SetDocument swaps in a fresh DOM snapshot. Existing markers live in
// the old tree, so the caller follows up with ReanchorAll to place
// them in the new one.
func (a *Applier) SetDocument(doc *dom.Document) { a.doc = doc }

// Document returns the DOM snapshot the applier paints into.
func (a *Applier) Document() *dom.Document { return a.doc }

// Store returns the backing store.
func (a *Applier) Store() store.Store { return a.store }

func (a *Applier) record(e history.Entry) {
	if a.hist == nil {
		return
	}
	if err := a.hist.Record(e); err != nil {
		a.logger.Warn("history record failed", "kind", e.Kind, "error", err)
	}
}

// Put restores rec to the document and store. It implements
// history.Applier, so undo and redo flow through here without the
// history engine knowing any annotation semantics.
func (a *Applier) Put(ctx context.Context, rec annotation.Record) error {
	if err := store.Upsert(ctx, a.store, a.url, rec); err != nil {
		return fmt.Errorf("apply: put: %w", err)
	}
	switch r := rec.(type) {
	case *annotation.Highlight:
		dom.RemoveMarkers(a.doc.Root, r.ID)
		if err := a.wrapResolved(r); err != nil {
			// The record is stored; markers reappear on the next
			// re-anchor pass.
			a.logger.Warn("put highlight not anchored", "id", r.ID, "error", err)
		}
	case *annotation.Comment:
		dom.RemoveMarkers(a.doc.Root, r.ID)
		if err := a.wrapCommentResolved(r); err != nil {
			a.logger.Warn("put comment not anchored", "id", r.ID, "error", err)
		}
	case *annotation.Drawing:
		a.mirrorPut(r)
	}
	a.redraw.Request()
	return nil
}

// Remove deletes the record from the document and store. Implements
// history.Applier.
func (a *Applier) Remove(ctx context.Context, kind annotation.Kind, id string) error {
	if err := store.Delete(ctx, a.store, a.url, kind, id); err != nil {
		return fmt.Errorf("apply: remove: %w", err)
	}
	switch kind {
	case annotation.KindHighlight, annotation.KindComment:
		dom.RemoveMarkers(a.doc.Root, id)
	case annotation.KindDrawing:
		a.mirrorDelete(id)
	}
	a.redraw.Request()
	return nil
}

// EraseAll wipes every annotation on the document: every collection,
// all markers, the drawing mirror, and both history stacks. It is not
// undoable.
func (a *Applier) EraseAll(ctx context.Context) error {
	if err := a.store.Clear(ctx, a.url); err != nil {
		return fmt.Errorf("apply: erase all: %w", err)
	}
	dom.RemoveMarkers(a.doc.Root, "")
	a.mirror = nil
	if a.hist != nil {
		a.hist.Reset()
	}
	a.redraw.Request()
	a.logger.Info("erased all annotations", "url", a.url)
	return nil
}

package apply

import (
	"context"
	"fmt"

	"github.com/hazyhaar/annot/anchor"
	"github.com/hazyhaar/annot/annotation"
	"github.com/hazyhaar/annot/dom"
	"github.com/hazyhaar/annot/history"
	"github.com/hazyhaar/annot/store"
)

// commentAttr marks the spans wrapping a commented passage so the
// renderer can place the comment indicator.
const commentAttr = "data-comment"

// CreateComment anchors the selection, wraps it with a comment marker,
// and stores a comment record carrying the text. When the renderer can
// report the wrapped region's rect the first rect is stored as the
// comment's position, so export can still place the comment if the
// anchor later fails to resolve.
func (a *Applier) CreateComment(ctx context.Context, page *dom.Page, r dom.Range, text string) (*annotation.Comment, error) {
	text = a.sanitize.Sanitize(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if err := annotation.ValidateComment(text); err != nil {
		return nil, err
	}
	rec, err := anchor.MakeRecord(page, r)
	if err != nil {
		return nil, fmt.Errorf("apply: create comment: %w", err)
	}
	c := &annotation.Comment{
		ID:        annotation.NewCommentID(),
		Type:      annotation.KindComment,
		Text:      text,
		Anchor:    rec,
		Page:      page.Number,
		CreatedAt: annotation.Now(),
	}
	if _, err := r.Wrap(c.ID, map[string]string{commentAttr: "true"}); err != nil {
		return nil, fmt.Errorf("apply: create comment: %w", err)
	}
	if a.rects != nil {
		if rects, err := a.rects(ctx, c.ID); err == nil && len(rects) > 0 {
			pos := rects[0].Rect
			c.Position = &pos
			c.Page = rects[0].Page
		}
	}
	if err := store.Upsert(ctx, a.store, a.url, c); err != nil {
		dom.RemoveMarkers(a.doc.Root, c.ID)
		return nil, fmt.Errorf("apply: create comment: %w", err)
	}
	a.record(history.Entry{Kind: history.CommentCreate, After: c})
	a.redraw.Request()
	a.logger.Debug("comment created", "id", c.ID, "page", c.Page, "chars", len(text))
	return c, nil
}

// EditComment replaces a comment's text.
func (a *Applier) EditComment(ctx context.Context, id, text string) (*annotation.Comment, error) {
	text = a.sanitize.Sanitize(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if err := annotation.ValidateComment(text); err != nil {
		return nil, err
	}
	rec, err := store.Get(ctx, a.store, a.url, annotation.KindComment, id)
	if err != nil {
		return nil, fmt.Errorf("apply: edit comment: %w", err)
	}
	before, ok := rec.(*annotation.Comment)
	if !ok {
		return nil, fmt.Errorf("apply: edit comment %s: %w", id, ErrNotFound)
	}
	after := *before
	after.Text = text
	after.LastModified = annotation.Now()
	if err := store.Upsert(ctx, a.store, a.url, &after); err != nil {
		return nil, fmt.Errorf("apply: edit comment: %w", err)
	}
	a.record(history.Entry{Kind: history.CommentEdit, Before: before, After: &after})
	a.redraw.Request()
	return &after, nil
}

// DeleteComment removes a comment and its markers.
func (a *Applier) DeleteComment(ctx context.Context, id string) error {
	rec, err := store.Get(ctx, a.store, a.url, annotation.KindComment, id)
	if err != nil {
		return fmt.Errorf("apply: delete comment: %w", err)
	}
	if rec == nil {
		return nil
	}
	if err := store.Delete(ctx, a.store, a.url, annotation.KindComment, id); err != nil {
		return fmt.Errorf("apply: delete comment: %w", err)
	}
	dom.RemoveMarkers(a.doc.Root, id)
	a.record(history.Entry{Kind: history.CommentDelete, Before: rec})
	a.redraw.Request()
	return nil
}

// wrapCommentResolved resolves a stored comment's anchor and re-wraps
// its markers. Failure leaves the record stored; export falls back to
// the record's position and page.
func (a *Applier) wrapCommentResolved(c *annotation.Comment) error {
	page, err := a.doc.Page(c.Anchor.Page)
	if err != nil {
		return err
	}
	if !page.Ready() {
		return dom.ErrNotReady
	}
	r, strategy, err := a.resolver.Resolve(page, c.Anchor)
	if err != nil {
		return err
	}
	if strategy != "structural" {
		a.logger.Debug("comment re-anchored by fallback", "id", c.ID, "strategy", strategy)
	}
	_, err = r.Wrap(c.ID, map[string]string{commentAttr: "true"})
	return err
}

package apply

import (
	"context"
	"errors"
	"fmt"

	"github.com/hazyhaar/annot/annotation"
	"github.com/hazyhaar/annot/geom"
	"github.com/hazyhaar/annot/history"
	"github.com/hazyhaar/annot/store"
)

var (
	ErrEmptyText = errors.New("apply: empty text")
	ErrNotFound  = errors.New("apply: record not found")
)

// CreateText places a text note at a percent position on a page. The
// content is sanitized to plain text before it is stored; notes carry
// prose, not markup.
func (a *Applier) CreateText(ctx context.Context, page int, pos geom.Percent, text, color string, sizePercent float64) (*annotation.TextNote, error) {
	text = a.sanitize.Sanitize(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	n := &annotation.TextNote{
		ID:          annotation.NewTextNoteID(),
		Type:        annotation.KindText,
		Page:        page,
		Position:    geom.Clamp(pos),
		Text:        text,
		Color:       color,
		SizePercent: sizePercent,
		CreatedAt:   annotation.Now(),
	}
	if err := store.Upsert(ctx, a.store, a.url, n); err != nil {
		return nil, fmt.Errorf("apply: create text: %w", err)
	}
	a.record(history.Entry{Kind: history.TextCreate, After: n})
	a.redraw.Request()
	return n, nil
}

// EditText replaces a note's content.
func (a *Applier) EditText(ctx context.Context, id, text string) (*annotation.TextNote, error) {
	text = a.sanitize.Sanitize(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	rec, err := store.Get(ctx, a.store, a.url, annotation.KindText, id)
	if err != nil {
		return nil, fmt.Errorf("apply: edit text: %w", err)
	}
	before, ok := rec.(*annotation.TextNote)
	if !ok {
		return nil, fmt.Errorf("apply: edit text %s: %w", id, ErrNotFound)
	}
	after := *before
	after.Text = text
	after.LastModified = annotation.Now()
	if err := store.Upsert(ctx, a.store, a.url, &after); err != nil {
		return nil, fmt.Errorf("apply: edit text: %w", err)
	}
	a.record(history.Entry{Kind: history.TextEdit, Before: before, After: &after})
	a.redraw.Request()
	return &after, nil
}

// DeleteText removes a note.
func (a *Applier) DeleteText(ctx context.Context, id string) error {
	rec, err := store.Get(ctx, a.store, a.url, annotation.KindText, id)
	if err != nil {
		return fmt.Errorf("apply: delete text: %w", err)
	}
	if rec == nil {
		return nil
	}
	if err := store.Delete(ctx, a.store, a.url, annotation.KindText, id); err != nil {
		return fmt.Errorf("apply: delete text: %w", err)
	}
	a.record(history.Entry{Kind: history.TextDelete, Before: rec})
	a.redraw.Request()
	return nil
}

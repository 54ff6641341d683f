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

// ErrEmptyStroke means a gesture produced no drawable segment.
var ErrEmptyStroke = errors.New("apply: empty stroke")

// CapturePoint is one sampled pointer position during a drawing
// gesture, attributed to the page it landed on.
type CapturePoint struct {
	Page  int
	Point geom.Percent
}

// SplitStroke cuts a gesture into per-page point runs. A stroke never
// crosses pages: dragging across a page boundary yields one segment
// per page, split exactly where the page attribution changes.
func SplitStroke(points []CapturePoint) [][]CapturePoint {
	var segments [][]CapturePoint
	var cur []CapturePoint
	for _, p := range points {
		if len(cur) > 0 && cur[len(cur)-1].Page != p.Page {
			segments = append(segments, cur)
			cur = nil
		}
		cur = append(cur, p)
	}
	if len(cur) > 0 {
		segments = append(segments, cur)
	}
	return segments
}

// CreateStroke persists a drawing gesture as one record. A gesture
// that crosses page boundaries keeps a single undoable identity; the
// split lives in the record's per-page segments. Segments of fewer
// than two points cannot be rendered and are dropped.
func (a *Applier) CreateStroke(ctx context.Context, points []CapturePoint, color string, widthPercent float64) (*annotation.Drawing, error) {
	if color == "" {
		color = annotation.DefaultColor
	}
	var segments []annotation.Segment
	for _, seg := range SplitStroke(points) {
		if len(seg) < 2 {
			continue
		}
		s := annotation.Segment{
			Page:   seg[0].Page,
			Points: make([]geom.Percent, len(seg)),
		}
		for i, p := range seg {
			s.Points[i] = geom.Clamp(p.Point)
		}
		segments = append(segments, s)
	}
	if len(segments) == 0 {
		return nil, ErrEmptyStroke
	}
	d := &annotation.Drawing{
		ID:           annotation.NewDrawingID(),
		Type:         annotation.KindDrawing,
		Color:        color,
		WidthPercent: widthPercent,
		Segments:     segments,
		CreatedAt:    annotation.Now(),
	}
	if err := store.Upsert(ctx, a.store, a.url, d); err != nil {
		return nil, fmt.Errorf("apply: create stroke: %w", err)
	}
	a.mirrorPut(d)
	a.record(history.Entry{Kind: history.DrawCreate, After: d})
	a.redraw.Request()
	a.logger.Debug("stroke created", "segments", len(segments), "color", color)
	return d, nil
}

// EraseStroke removes one drawing.
func (a *Applier) EraseStroke(ctx context.Context, id string) error {
	rec, err := store.Get(ctx, a.store, a.url, annotation.KindDrawing, id)
	if err != nil {
		return fmt.Errorf("apply: erase stroke: %w", err)
	}
	if rec == nil {
		return nil
	}
	if err := store.Delete(ctx, a.store, a.url, annotation.KindDrawing, id); err != nil {
		return fmt.Errorf("apply: erase stroke: %w", err)
	}
	a.mirrorDelete(id)
	a.record(history.Entry{Kind: history.DrawErase, Before: rec})
	a.redraw.Request()
	return nil
}

// Drawings returns the strokes to render. The store is authoritative;
// the mirror answers when the store read fails so a storage hiccup
// does not blank the canvas mid-session.
func (a *Applier) Drawings(ctx context.Context) ([]*annotation.Drawing, error) {
	recs, err := a.store.List(ctx, a.url, annotation.KindDrawing)
	if err != nil {
		a.logger.Warn("drawing list failed, serving mirror", "error", err)
		return append([]*annotation.Drawing(nil), a.mirror...), nil
	}
	out := make([]*annotation.Drawing, 0, len(recs))
	for _, r := range recs {
		if d, ok := r.(*annotation.Drawing); ok {
			out = append(out, d)
		}
	}
	a.mirror = append(a.mirror[:0], out...)
	return out, nil
}

func (a *Applier) mirrorPut(d *annotation.Drawing) {
	for i, m := range a.mirror {
		if m.ID == d.ID {
			a.mirror[i] = d
			return
		}
	}
	a.mirror = append(a.mirror, d)
}

func (a *Applier) mirrorDelete(id string) {
	out := a.mirror[:0]
	for _, m := range a.mirror {
		if m.ID != id {
			out = append(out, m)
		}
	}
	a.mirror = out
}

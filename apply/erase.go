package apply

import (
	"context"
	"fmt"
	"math"

	"github.com/hazyhaar/annot/annotation"
	"github.com/hazyhaar/annot/geom"
)

// EraseAtPoint erases the first annotation within radius of p on the
// given page and returns it, or nil when nothing was hit. Kinds are
// probed in a fixed order so a crowded spot erases predictably:
// drawings first, then highlights, then text notes.
func (a *Applier) EraseAtPoint(ctx context.Context, page int, p geom.Percent, radius float64) (annotation.Record, error) {
	drawings, err := a.Drawings(ctx)
	if err != nil {
		return nil, fmt.Errorf("apply: erase at point: %w", err)
	}
	for _, d := range drawings {
		for _, seg := range d.Segments {
			if seg.Page == page && strokeHit(seg.Points, p, radius) {
				if err := a.EraseStroke(ctx, d.ID); err != nil {
					return nil, err
				}
				return d, nil
			}
		}
	}

	if a.rects != nil {
		recs, err := a.store.List(ctx, a.url, annotation.KindHighlight)
		if err != nil {
			return nil, fmt.Errorf("apply: erase at point: %w", err)
		}
		for _, rec := range recs {
			hl, ok := rec.(*annotation.Highlight)
			if !ok {
				continue
			}
			rects, err := a.rects(ctx, hl.ID)
			if err != nil {
				return nil, fmt.Errorf("apply: erase at point: %w", err)
			}
			for _, pr := range rects {
				if pr.Page == page && rectHit(pr.Rect, p, radius) {
					if err := a.EraseHighlight(ctx, hl.ID); err != nil {
						return nil, err
					}
					return hl, nil
				}
			}
		}
	}

	texts, err := a.store.List(ctx, a.url, annotation.KindText)
	if err != nil {
		return nil, fmt.Errorf("apply: erase at point: %w", err)
	}
	for _, rec := range texts {
		n, ok := rec.(*annotation.TextNote)
		if !ok {
			continue
		}
		if n.Page == page && dist(n.Position, p) <= radius {
			if err := a.DeleteText(ctx, n.ID); err != nil {
				return nil, err
			}
			return n, nil
		}
	}
	return nil, nil
}

func strokeHit(points []geom.Percent, p geom.Percent, radius float64) bool {
	if len(points) == 1 {
		return dist(points[0], p) <= radius
	}
	for i := 1; i < len(points); i++ {
		if distToSegment(p, points[i-1], points[i]) <= radius {
			return true
		}
	}
	return false
}

func rectHit(r geom.PercentRect, p geom.Percent, radius float64) bool {
	nx := math.Max(r.X, math.Min(p.X, r.X+r.W))
	ny := math.Max(r.Y, math.Min(p.Y, r.Y+r.H))
	return dist(geom.Percent{X: nx, Y: ny}, p) <= radius
}

func dist(a, b geom.Percent) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func distToSegment(p, a, b geom.Percent) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	if dx == 0 && dy == 0 {
		return dist(p, a)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / (dx*dx + dy*dy)
	t = math.Max(0, math.Min(1, t))
	return dist(p, geom.Percent{X: a.X + t*dx, Y: a.Y + t*dy})
}

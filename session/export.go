package session

import (
	"context"
	"fmt"

	"github.com/hazyhaar/annot/annotation"
	"github.com/hazyhaar/annot/export"
)

// collect gathers everything stored for a document into export form.
// Marker rects come from the live viewer when one is attached;
// detached comments fall back to their stored position and page
// inside the compositor.
func (m *Manager) collect(ctx context.Context, url string) (export.Input, error) {
	ann, err := listAnnotations(ctx, m.store, url)
	if err != nil {
		return export.Input{}, err
	}
	in := export.Input{Drawings: ann.Drawings, Notes: ann.Notes}

	s, serr := m.Session(url)
	measure := func(id string) []export.PageRect {
		if serr != nil {
			return nil
		}
		rects, rerr := s.Rects(ctx, id)
		if rerr != nil {
			m.logger.Warn("session: export rects", "id", id, "error", rerr)
		}
		out := make([]export.PageRect, 0, len(rects))
		for _, pr := range rects {
			out = append(out, export.PageRect{Page: pr.Page, Rect: pr.Rect})
		}
		return out
	}
	for _, hl := range ann.Highlights {
		in.Highlights = append(in.Highlights, export.Highlight{Rec: hl, Rects: measure(hl.ID)})
	}
	for _, cm := range ann.Comments {
		in.Comments = append(in.Comments, export.Comment{Rec: cm, Rects: measure(cm.ID)})
	}
	return in, nil
}

// ExportPDF composites the document's annotations onto the source PDF
// and returns the annotated bytes.
func (m *Manager) ExportPDF(ctx context.Context, url string, src []byte) ([]byte, error) {
	in, err := m.collect(ctx, url)
	if err != nil {
		return nil, err
	}
	canvas, err := export.NewPDFCanvas(src)
	if err != nil {
		return nil, err
	}
	comp := export.New(canvas, export.HelveticaMetrics, export.WithLogger(m.logger))
	if err := comp.Compose(in); err != nil {
		return nil, err
	}
	out, err := canvas.Save()
	if err != nil {
		return nil, fmt.Errorf("session: export %s: %w", url, err)
	}
	return out, nil
}

// Report renders the document's annotations as a Markdown digest.
func (m *Manager) Report(ctx context.Context, url string) (string, error) {
	in, err := m.collect(ctx, url)
	if err != nil {
		return "", err
	}
	return export.NewReporter().Report(url, in, annotation.Now())
}

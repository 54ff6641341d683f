package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/annot/annotation"
	"github.com/hazyhaar/annot/apply"
	"github.com/hazyhaar/annot/dom"
	"github.com/hazyhaar/annot/geom"
	"github.com/hazyhaar/annot/history"
	"github.com/hazyhaar/annot/livedom"
	"github.com/hazyhaar/annot/store"
	"github.com/hazyhaar/annot/tool"
)

// Session is one open document: its DOM snapshot, applier, undo
// history, and tool state. Operations are serialized; the applier is
// not safe for concurrent use.
type Session struct {
	url    string
	viewer *livedom.Viewer // nil in detached mode
	logger *slog.Logger

	mu      sync.Mutex
	applier *apply.Applier
	hist    *history.History
	tools   *tool.Machine

	attempts int
	backoff  time.Duration
}

// URL returns the document URL.
func (s *Session) URL() string { return s.url }

// Tools returns the tool state machine for this session.
func (s *Session) Tools() *tool.Machine { return s.tools }

// Live reports whether the session is attached to a viewer tab.
func (s *Session) Live() bool { return s.viewer != nil }

// color picks the explicit color, falling back to the active tool color.
func (s *Session) color(c string) string {
	if c != "" {
		return c
	}
	return s.tools.Color()
}

// CreateHighlight highlights the flattened-text range [startOff,endOff)
// on a page. Offsets address the page's visible text with the same
// join rules the anchor records use.
func (s *Session) CreateHighlight(ctx context.Context, page, startOff, endOff int, color string) (*annotation.Highlight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.applier.Document().Page(page)
	if err != nil {
		return nil, err
	}
	if !p.Ready() {
		return nil, fmt.Errorf("session: page %d: %w", page, dom.ErrNotReady)
	}
	idx := dom.BuildTextIndex(p.TextLayer())
	r, err := idx.RangeAt(startOff, endOff)
	if err != nil {
		return nil, fmt.Errorf("session: highlight range: %w", err)
	}
	return s.applier.CreateHighlight(ctx, p, r, s.color(color))
}

// EraseHighlight removes a highlight by ID.
func (s *Session) EraseHighlight(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applier.EraseHighlight(ctx, id)
}

// CreateComment attaches a comment to the flattened-text range
// [startOff,endOff) on a page, using the same offset rules as
// CreateHighlight.
func (s *Session) CreateComment(ctx context.Context, page, startOff, endOff int, text string) (*annotation.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.applier.Document().Page(page)
	if err != nil {
		return nil, err
	}
	if !p.Ready() {
		return nil, fmt.Errorf("session: page %d: %w", page, dom.ErrNotReady)
	}
	idx := dom.BuildTextIndex(p.TextLayer())
	r, err := idx.RangeAt(startOff, endOff)
	if err != nil {
		return nil, fmt.Errorf("session: comment range: %w", err)
	}
	return s.applier.CreateComment(ctx, p, r, text)
}

// EditComment replaces a comment's text.
func (s *Session) EditComment(ctx context.Context, id, text string) (*annotation.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applier.EditComment(ctx, id, text)
}

// DeleteComment removes a comment by ID.
func (s *Session) DeleteComment(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applier.DeleteComment(ctx, id)
}

// CreateStroke stores a freehand gesture as one drawing, its points
// split into per-page segments.
func (s *Session) CreateStroke(ctx context.Context, points []apply.CapturePoint, color string, widthPercent float64) (*annotation.Drawing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applier.CreateStroke(ctx, points, s.color(color), widthPercent)
}

// EraseStroke removes a stroke by ID.
func (s *Session) EraseStroke(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applier.EraseStroke(ctx, id)
}

// CreateText places a text note on a page.
func (s *Session) CreateText(ctx context.Context, page int, pos geom.Percent, text, color string, sizePercent float64) (*annotation.TextNote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applier.CreateText(ctx, page, pos, text, s.color(color), sizePercent)
}

// EditText replaces a note's text.
func (s *Session) EditText(ctx context.Context, id, text string) (*annotation.TextNote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applier.EditText(ctx, id, text)
}

// DeleteText removes a note by ID.
func (s *Session) DeleteText(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applier.DeleteText(ctx, id)
}

// EraseAtPoint erases the annotation nearest to a point, if any is
// within radius. Returns the erased record, or nil.
func (s *Session) EraseAtPoint(ctx context.Context, page int, p geom.Percent, radius float64) (annotation.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applier.EraseAtPoint(ctx, page, p, radius)
}

// EraseAll wipes every annotation on the document. Not undoable.
func (s *Session) EraseAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applier.EraseAll(ctx)
}

// Undo reverts the last recorded action.
func (s *Session) Undo(ctx context.Context) (history.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.Undo(ctx)
}

// Redo reapplies the last undone action.
func (s *Session) Redo(ctx context.Context) (history.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.Redo(ctx)
}

// HistoryDepths reports the sizes of the undo and redo stacks.
func (s *Session) HistoryDepths() (undo, redo int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.Depths()
}

// Annotations is everything stored for one document, decoded by kind.
type Annotations struct {
	Highlights []*annotation.Highlight `json:"highlights"`
	Comments   []*annotation.Comment   `json:"comments"`
	Drawings   []*annotation.Drawing   `json:"drawings"`
	Notes      []*annotation.TextNote  `json:"texts"`
}

// List returns all annotations on the document.
func (s *Session) List(ctx context.Context) (*Annotations, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return listAnnotations(ctx, s.applier.Store(), s.url)
}

func listAnnotations(ctx context.Context, st store.Store, url string) (*Annotations, error) {
	out := &Annotations{}
	hls, err := st.List(ctx, url, annotation.KindHighlight)
	if err != nil {
		return nil, err
	}
	for _, r := range hls {
		switch rec := r.(type) {
		case *annotation.Highlight:
			out.Highlights = append(out.Highlights, rec)
		case *annotation.Comment:
			out.Comments = append(out.Comments, rec)
		}
	}
	drs, err := st.List(ctx, url, annotation.KindDrawing)
	if err != nil {
		return nil, err
	}
	for _, r := range drs {
		if d, ok := r.(*annotation.Drawing); ok {
			out.Drawings = append(out.Drawings, d)
		}
	}
	txts, err := st.List(ctx, url, annotation.KindText)
	if err != nil {
		return nil, err
	}
	for _, r := range txts {
		if n, ok := r.(*annotation.TextNote); ok {
			out.Notes = append(out.Notes, n)
		}
	}
	return out, nil
}

// Rects reports where a marked passage is painted, by marker ID.
// Without a live viewer there is no layout, so detached sessions
// report nothing.
func (s *Session) Rects(ctx context.Context, id string) ([]apply.PageRect, error) {
	if s.viewer == nil {
		return nil, nil
	}
	return s.viewer.Rects(ctx, id)
}

// Reanchor places every stored highlight and comment into the DOM,
// retrying at a fixed interval while any fail. Live sessions take a
// fresh snapshot before each retry, since text layers render lazily
// as pages scroll in.
func (s *Session) Reanchor(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var placed, failed []string
	for attempt := 1; ; attempt++ {
		var err error
		placed, failed, err = s.applier.ReanchorAll(ctx)
		if err != nil {
			return err
		}
		if len(failed) == 0 || attempt >= s.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.backoff):
		}
		if s.viewer != nil {
			doc, err := s.viewer.Snapshot(ctx)
			if err != nil {
				s.logger.Warn("session: refresh snapshot", "url", s.url, "error", err)
				continue
			}
			s.applier.SetDocument(doc)
		}
	}
	if len(failed) > 0 {
		s.logger.Warn("session: annotations unplaced", "url", s.url,
			"placed", len(placed), "failed", len(failed))
	}
	return nil
}

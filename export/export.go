// CLAUDE:SUMMARY Composites stored annotations onto PDF pages: highlight fills, stroke polylines, notes, comment sidebar.
package export

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/hazyhaar/annot/annotation"
	"github.com/hazyhaar/annot/geom"
)

// RGB is a color with channels in [0,1].
type RGB struct {
	R, G, B float64
}

// Hex renders the color as #rrggbb.
func (c RGB) Hex() string {
	to := func(v float64) int {
		n := int(v*255 + 0.5)
		if n < 0 {
			n = 0
		}
		if n > 255 {
			n = 255
		}
		return n
	}
	return fmt.Sprintf("#%02x%02x%02x", to(c.R), to(c.G), to(c.B))
}

// namedColors are the colors the toolbar offers. Records may carry
// anything; unknown names fall back to yellow rather than failing an
// export over one stale color string.
var namedColors = map[string]RGB{
	"yellow": {1, 1, 0},
	"green":  {0, 1, 0},
	"blue":   {0, 0.5, 1},
	"pink":   {1, 0.41, 0.71},
	"red":    {1, 0, 0},
	"orange": {1, 0.65, 0},
	"purple": {0.58, 0.44, 0.86},
	"black":  {0, 0, 0},
}

// ParseColor resolves a record color: a known name, a #rrggbb hex
// value, or the yellow fallback. The second return reports whether
// the input was recognized.
func ParseColor(s string) (RGB, bool) {
	if c, ok := namedColors[strings.ToLower(s)]; ok {
		return c, true
	}
	if len(s) == 7 && s[0] == '#' {
		r, err1 := strconv.ParseUint(s[1:3], 16, 8)
		g, err2 := strconv.ParseUint(s[3:5], 16, 8)
		b, err3 := strconv.ParseUint(s[5:7], 16, 8)
		if err1 == nil && err2 == nil && err3 == nil {
			return RGB{float64(r) / 255, float64(g) / 255, float64(b) / 255}, true
		}
	}
	return namedColors["yellow"], false
}

// Canvas is the drawing surface an export writes to. Coordinates are
// PDF points with the origin at the bottom-left corner of each page.
type Canvas interface {
	PageCount() int
	PageSize(page int) (w, h float64, err error)

	// GrowPageWidth widens a page to make room for the comment
	// sidebar. Only pages that carry comments grow.
	GrowPageWidth(page int, extra float64) error

	FillRect(page int, x, y, w, h float64, color RGB, opacity float64) error
	StrokeLine(page int, x1, y1, x2, y2 float64, color RGB, width float64) error
	DrawText(page int, text string, x, y, size float64, color RGB) error
}

// FontMetrics measures rendered text for word wrapping.
type FontMetrics interface {
	TextWidth(text string, size float64) float64
}

// PageRect is a percent rect attributed to a page, the painted region
// of a highlight as the renderer measured it.
type PageRect struct {
	Page int
	Rect geom.PercentRect
}

// Highlight pairs a stored highlight with its measured regions.
type Highlight struct {
	Rec   *annotation.Highlight
	Rects []PageRect
}

// Comment pairs a stored comment with the measured regions of its
// anchored passage. Rects may be empty when the anchor did not
// resolve; the sidebar then falls back to the record's stored
// position and page.
type Comment struct {
	Rec   *annotation.Comment
	Rects []PageRect
}

// Input is everything an export composites.
type Input struct {
	Highlights []Highlight
	Drawings   []*annotation.Drawing
	Notes      []*annotation.TextNote
	Comments   []Comment
}

const (
	// HighlightOpacity matches the on-screen overlay so the export
	// reads the same as the viewer.
	HighlightOpacity = 0.4

	// SidebarWidth is the extra page width given to the comment column.
	SidebarWidth = 220.0

	sidebarPad      = 10.0
	commentFontSize = 9.0
	commentLeading  = 12.0
	connectorWidth  = 0.5
)

// Compositor draws an Input onto a Canvas.
type Compositor struct {
	canvas Canvas
	fonts  FontMetrics
	logger *slog.Logger
}

// Option configures a Compositor.
type Option func(*Compositor)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Compositor) { c.logger = l }
}

// New builds a Compositor for one canvas.
func New(canvas Canvas, fonts FontMetrics, opts ...Option) *Compositor {
	c := &Compositor{canvas: canvas, fonts: fonts, logger: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Compose draws highlights, strokes, notes, and the comment sidebar.
// Records pointing at pages the document does not have are skipped
// with a log line, not an error: one stale record must not sink a
// whole export.
func (c *Compositor) Compose(in Input) error {
	for _, hl := range in.Highlights {
		color, known := ParseColor(hl.Rec.Color)
		if !known {
			c.logger.Debug("unknown highlight color, using fallback", "id", hl.Rec.ID, "color", hl.Rec.Color)
		}
		for _, pr := range hl.Rects {
			if err := c.fillPercentRect(pr.Page, pr.Rect, color); err != nil {
				return fmt.Errorf("export: highlight %s: %w", hl.Rec.ID, err)
			}
		}
	}

	for _, d := range in.Drawings {
		if err := c.stroke(d); err != nil {
			return fmt.Errorf("export: drawing %s: %w", d.ID, err)
		}
	}

	for _, n := range in.Notes {
		if err := c.note(n); err != nil {
			return fmt.Errorf("export: note %s: %w", n.ID, err)
		}
	}

	if err := c.commentSidebar(in.Comments); err != nil {
		return fmt.Errorf("export: comments: %w", err)
	}
	return nil
}

// fillPercentRect converts a percent rect to page points, flipping Y:
// percent geometry hangs from the top edge, PDF space grows upward,
// so y = H - yTop - h.
func (c *Compositor) fillPercentRect(page int, r geom.PercentRect, color RGB) error {
	w, h, err := c.canvas.PageSize(page)
	if err != nil {
		c.logger.Warn("skipping rect on missing page", "page", page, "error", err)
		return nil
	}
	r = geom.ClampRect(r)
	x := r.X / 100 * w
	rw := r.W / 100 * w
	rh := r.H / 100 * h
	y := h - r.Y/100*h - rh
	return c.canvas.FillRect(page, x, y, rw, rh, color, HighlightOpacity)
}

func (c *Compositor) stroke(d *annotation.Drawing) error {
	color, _ := ParseColor(d.Color)
	for _, seg := range d.Segments {
		if len(seg.Points) < 2 {
			continue
		}
		w, h, err := c.canvas.PageSize(seg.Page)
		if err != nil {
			c.logger.Warn("skipping stroke on missing page", "page", seg.Page, "id", d.ID, "error", err)
			continue
		}
		width := d.WidthPercent / 100 * w
		if width <= 0 {
			width = 1
		}
		prev := seg.Points[0]
		for _, p := range seg.Points[1:] {
			x1, y1 := prev.X/100*w, h-prev.Y/100*h
			x2, y2 := p.X/100*w, h-p.Y/100*h
			if err := c.canvas.StrokeLine(seg.Page, x1, y1, x2, y2, color, width); err != nil {
				return err
			}
			prev = p
		}
	}
	return nil
}

func (c *Compositor) note(n *annotation.TextNote) error {
	w, h, err := c.canvas.PageSize(n.Page)
	if err != nil {
		c.logger.Warn("skipping note on missing page", "page", n.Page, "id", n.ID, "error", err)
		return nil
	}
	color, _ := ParseColor(n.Color)
	size := n.SizePercent / 100 * w
	if size <= 0 {
		size = 12
	}
	maxPct := n.MaxWidth
	if maxPct <= 0 {
		maxPct = annotation.DefaultNoteMaxWidth
	}
	x := n.Position.X / 100 * w
	y := h - n.Position.Y/100*h - size
	leading := size * 1.2
	for _, line := range wrapText(c.fonts, n.Text, size, maxPct/100*w) {
		if err := c.canvas.DrawText(n.Page, line, x, y, size, color); err != nil {
			return err
		}
		y -= leading
	}
	return nil
}

// commentSidebar widens each commented page by SidebarWidth, lays the
// comments down the new right margin in reading order, and draws a
// connector from each anchored passage to its comment block. Comments
// whose anchor never resolved anchor at their stored position instead;
// a comment with neither still prints, without a connector.
func (c *Compositor) commentSidebar(comments []Comment) error {
	type entry struct {
		rec       *annotation.Comment
		anchor    PageRect
		connector bool
	}
	byPage := make(map[int][]entry)
	for _, cm := range comments {
		if cm.Rec.Text == "" {
			continue
		}
		e := entry{rec: cm.Rec}
		switch {
		case len(cm.Rects) > 0:
			e.anchor = cm.Rects[0]
			e.connector = true
		case cm.Rec.Position != nil:
			e.anchor = PageRect{Page: cm.Rec.Page, Rect: *cm.Rec.Position}
			e.connector = true
		default:
			e.anchor = PageRect{Page: cm.Rec.Page}
		}
		byPage[e.anchor.Page] = append(byPage[e.anchor.Page], e)
	}
	if len(byPage) == 0 {
		return nil
	}

	black := namedColors["black"]
	for page := 1; page <= c.canvas.PageCount(); page++ {
		entries, ok := byPage[page]
		if !ok {
			continue
		}
		// Stack blocks in the order the anchors appear down the page,
		// not the order records arrived.
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].anchor.Rect.Y < entries[j].anchor.Rect.Y
		})
		w, h, err := c.canvas.PageSize(page)
		if err != nil {
			c.logger.Warn("skipping comments on missing page", "page", page, "error", err)
			continue
		}
		if err := c.canvas.GrowPageWidth(page, SidebarWidth); err != nil {
			return err
		}
		colX := w + sidebarPad
		maxWidth := SidebarWidth - 2*sidebarPad
		top := h - sidebarPad

		for _, e := range entries {
			lines := wrapText(c.fonts, e.rec.Text, commentFontSize, maxWidth)
			blockTop := top
			for _, line := range lines {
				y := top - commentLeading
				if y < 0 {
					c.logger.Warn("comment overflowed the page", "page", page, "id", e.rec.ID)
					break
				}
				if err := c.canvas.DrawText(page, line, colX, y, commentFontSize, black); err != nil {
					return err
				}
				top = y
			}

			if e.connector {
				// Connector from the passage's right edge to the block.
				r := geom.ClampRect(e.anchor.Rect)
				hx := (r.X + r.W) / 100 * w
				hy := h - r.Y/100*h - r.H/100*h/2
				if err := c.canvas.StrokeLine(page, hx, hy, colX-2, blockTop-commentLeading/2, black, connectorWidth); err != nil {
					return err
				}
			}
			top -= commentLeading // gap between blocks
		}
	}
	return nil
}

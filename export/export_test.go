package export

import (
	"fmt"
	"strings"
	"testing"

	"github.com/hazyhaar/annot/anchor"
	"github.com/hazyhaar/annot/annotation"
	"github.com/hazyhaar/annot/geom"
)

// fakeCanvas records every operation.
type fakeCanvas struct {
	pages []struct{ w, h float64 }
	grown map[int]float64
	rects []rectOp
	lines []lineOp
	texts []textOp
}

type rectOp struct {
	page       int
	x, y, w, h float64
	color      RGB
	opacity    float64
}

type lineOp struct {
	page           int
	x1, y1, x2, y2 float64
	color          RGB
	width          float64
}

type textOp struct {
	page int
	text string
	x, y float64
	size float64
}

func newFakeCanvas(sizes ...[2]float64) *fakeCanvas {
	c := &fakeCanvas{grown: make(map[int]float64)}
	for _, s := range sizes {
		c.pages = append(c.pages, struct{ w, h float64 }{s[0], s[1]})
	}
	return c
}

func (c *fakeCanvas) PageCount() int { return len(c.pages) }

func (c *fakeCanvas) PageSize(page int) (float64, float64, error) {
	if page < 1 || page > len(c.pages) {
		return 0, 0, fmt.Errorf("no page %d", page)
	}
	return c.pages[page-1].w, c.pages[page-1].h, nil
}

func (c *fakeCanvas) GrowPageWidth(page int, extra float64) error {
	c.grown[page] += extra
	return nil
}

func (c *fakeCanvas) FillRect(page int, x, y, w, h float64, color RGB, opacity float64) error {
	c.rects = append(c.rects, rectOp{page, x, y, w, h, color, opacity})
	return nil
}

func (c *fakeCanvas) StrokeLine(page int, x1, y1, x2, y2 float64, color RGB, width float64) error {
	c.lines = append(c.lines, lineOp{page, x1, y1, x2, y2, color, width})
	return nil
}

func (c *fakeCanvas) DrawText(page int, text string, x, y, size float64, color RGB) error {
	c.texts = append(c.texts, textOp{page, text, x, y, size})
	return nil
}

// fixedMetrics charges a flat width per character.
type fixedMetrics struct{ perChar float64 }

func (m fixedMetrics) TextWidth(text string, size float64) float64 {
	return float64(len(text)) * m.perChar
}

func hlWith(id, color string, rects ...PageRect) Highlight {
	return Highlight{
		Rec: &annotation.Highlight{
			ID: id, Type: annotation.KindHighlight, Color: color,
			Anchor: anchor.Record{Page: rects[0].Page, Snippet: "snippet for " + id},
		},
		Rects: rects,
	}
}

func cmtWith(id, text string, rects ...PageRect) Comment {
	rec := &annotation.Comment{ID: id, Type: annotation.KindComment, Text: text}
	if len(rects) > 0 {
		rec.Page = rects[0].Page
		rec.Anchor = anchor.Record{Page: rects[0].Page, Snippet: "snippet for " + id}
	}
	return Comment{Rec: rec, Rects: rects}
}

func TestHighlightYFlip(t *testing.T) {
	canvas := newFakeCanvas([2]float64{600, 800})
	comp := New(canvas, fixedMetrics{5})

	in := Input{Highlights: []Highlight{
		hlWith("hl_1", "yellow", PageRect{Page: 1, Rect: geom.PercentRect{X: 20, Y: 10, W: 30, H: 5}}),
	}}
	if err := comp.Compose(in); err != nil {
		t.Fatal(err)
	}
	if len(canvas.rects) != 1 {
		t.Fatalf("rects: %d", len(canvas.rects))
	}
	r := canvas.rects[0]
	// yPercent 10 of 800 hangs 80 from the top; height 5% is 40;
	// flipped into bottom-left space that lands at 800-80-40 = 680.
	if r.y != 680 {
		t.Errorf("flipped y: %v, want 680", r.y)
	}
	if r.x != 120 || r.w != 180 || r.h != 40 {
		t.Errorf("rect: %+v", r)
	}
	if r.opacity != HighlightOpacity {
		t.Errorf("opacity: %v", r.opacity)
	}
	if r.color != (RGB{1, 1, 0}) {
		t.Errorf("color: %+v", r.color)
	}
}

func TestUnknownColorFallsBackToYellow(t *testing.T) {
	canvas := newFakeCanvas([2]float64{600, 800})
	comp := New(canvas, fixedMetrics{5})

	in := Input{Highlights: []Highlight{
		hlWith("hl_1", "chartreuse-ish", PageRect{Page: 1, Rect: geom.PercentRect{X: 0, Y: 0, W: 10, H: 5}}),
	}}
	if err := comp.Compose(in); err != nil {
		t.Fatal(err)
	}
	if canvas.rects[0].color != (RGB{1, 1, 0}) {
		t.Errorf("fallback color: %+v", canvas.rects[0].color)
	}
}

func TestParseColor(t *testing.T) {
	if c, ok := ParseColor("#8040c0"); !ok || c.Hex() != "#8040c0" {
		t.Errorf("hex round trip: %+v %v", c, ok)
	}
	if _, ok := ParseColor("GREEN"); !ok {
		t.Error("names should be case-insensitive")
	}
	if c, ok := ParseColor("#zzzzzz"); ok || c != (RGB{1, 1, 0}) {
		t.Errorf("bad hex: %+v %v", c, ok)
	}
}

func TestStrokePolyline(t *testing.T) {
	canvas := newFakeCanvas([2]float64{1000, 500})
	comp := New(canvas, fixedMetrics{5})

	in := Input{Drawings: []*annotation.Drawing{{
		ID: "drw_1", Type: annotation.KindDrawing, Color: "red", WidthPercent: 0.5,
		Segments: []annotation.Segment{{
			Page:   1,
			Points: []geom.Percent{{X: 0, Y: 0}, {X: 10, Y: 10}, {X: 20, Y: 10}},
		}},
	}}}
	if err := comp.Compose(in); err != nil {
		t.Fatal(err)
	}
	if len(canvas.lines) != 2 {
		t.Fatalf("lines: %d, want 2 (three points)", len(canvas.lines))
	}
	l := canvas.lines[0]
	if l.x1 != 0 || l.y1 != 500 || l.x2 != 100 || l.y2 != 450 {
		t.Errorf("first segment: %+v", l)
	}
	if l.width != 5 {
		t.Errorf("width: %v, want 0.5%% of 1000", l.width)
	}
}

func TestStrokeSpansPages(t *testing.T) {
	canvas := newFakeCanvas([2]float64{1000, 500}, [2]float64{1000, 500})
	comp := New(canvas, fixedMetrics{5})

	in := Input{Drawings: []*annotation.Drawing{{
		ID: "drw_1", Type: annotation.KindDrawing, Color: "red", WidthPercent: 0.5,
		Segments: []annotation.Segment{
			{Page: 1, Points: []geom.Percent{{X: 10, Y: 95}, {X: 12, Y: 99}}},
			{Page: 2, Points: []geom.Percent{{X: 13, Y: 1}, {X: 15, Y: 5}}},
		},
	}}}
	if err := comp.Compose(in); err != nil {
		t.Fatal(err)
	}
	if len(canvas.lines) != 2 {
		t.Fatalf("lines: %d, want one per segment", len(canvas.lines))
	}
	if canvas.lines[0].page != 1 || canvas.lines[1].page != 2 {
		t.Errorf("segment pages: %d, %d", canvas.lines[0].page, canvas.lines[1].page)
	}
}

func TestNoteGeometry(t *testing.T) {
	canvas := newFakeCanvas([2]float64{800, 1000})
	comp := New(canvas, fixedMetrics{5})

	in := Input{Notes: []*annotation.TextNote{{
		ID: "txt_1", Type: annotation.KindText, Page: 1, Text: "margin note",
		Position: geom.Percent{X: 50, Y: 20}, SizePercent: 2,
	}}}
	if err := comp.Compose(in); err != nil {
		t.Fatal(err)
	}
	if len(canvas.texts) != 1 {
		t.Fatalf("texts: %d", len(canvas.texts))
	}
	op := canvas.texts[0]
	if op.size != 16 {
		t.Errorf("size: %v, want 2%% of 800", op.size)
	}
	if op.x != 400 || op.y != 1000-200-16 {
		t.Errorf("position: %+v", op)
	}
}

func TestNoteWrapsAtMaxWidth(t *testing.T) {
	canvas := newFakeCanvas([2]float64{800, 1000})
	// 10 points per char, size 16: a 25% column (200 points) fits 20 chars.
	comp := New(canvas, fixedMetrics{10})

	in := Input{Notes: []*annotation.TextNote{{
		ID: "txt_1", Type: annotation.KindText, Page: 1,
		Text:     "a long remark that cannot possibly stay on one line",
		Position: geom.Percent{X: 10, Y: 10}, SizePercent: 2, MaxWidth: 25,
	}}}
	if err := comp.Compose(in); err != nil {
		t.Fatal(err)
	}
	if len(canvas.texts) < 3 {
		t.Fatalf("expected several wrapped lines, got %d", len(canvas.texts))
	}
	for i, op := range canvas.texts {
		if op.x != 80 {
			t.Errorf("line %d x: %v, all lines share the note's left edge", i, op.x)
		}
		if i > 0 && op.y >= canvas.texts[i-1].y {
			t.Error("wrapped lines should descend the page")
		}
	}

	// Without an explicit width the note wraps at the default.
	canvas = newFakeCanvas([2]float64{800, 1000})
	comp = New(canvas, fixedMetrics{10})
	in.Notes[0].MaxWidth = 0
	if err := comp.Compose(in); err != nil {
		t.Fatal(err)
	}
	if len(canvas.texts) < 2 {
		t.Errorf("default width should still wrap this text, got %d line(s)", len(canvas.texts))
	}
}

func TestCommentSidebarGrowsOnlyCommentedPages(t *testing.T) {
	canvas := newFakeCanvas([2]float64{600, 800}, [2]float64{600, 800}, [2]float64{600, 800})
	comp := New(canvas, fixedMetrics{5})

	in := Input{
		Highlights: []Highlight{
			hlWith("hl_1", "green", PageRect{Page: 3, Rect: geom.PercentRect{X: 10, Y: 50, W: 20, H: 3}}),
		},
		Comments: []Comment{
			cmtWith("cmt_1", "needs a citation",
				PageRect{Page: 2, Rect: geom.PercentRect{X: 10, Y: 10, W: 20, H: 3}}),
		},
	}
	if err := comp.Compose(in); err != nil {
		t.Fatal(err)
	}

	if got := canvas.grown[2]; got != SidebarWidth {
		t.Errorf("page 2 growth: %v, want %v", got, SidebarWidth)
	}
	if _, grown := canvas.grown[1]; grown {
		t.Error("page 1 has no comments and must not grow")
	}
	if _, grown := canvas.grown[3]; grown {
		t.Error("page 3 carries only a highlight and must not grow")
	}

	// The comment text landed in the sidebar column.
	var found bool
	for _, op := range canvas.texts {
		if op.page == 2 && op.x > 600 && strings.Contains("needs a citation", op.text) {
			found = true
		}
	}
	if !found {
		t.Errorf("comment text ops: %+v", canvas.texts)
	}

	// And a connector line runs toward the sidebar.
	var connector bool
	for _, l := range canvas.lines {
		if l.page == 2 && l.x2 > 600 {
			connector = true
		}
	}
	if !connector {
		t.Error("no connector line to the sidebar")
	}
}

func TestCommentSidebarStacksInReadingOrder(t *testing.T) {
	canvas := newFakeCanvas([2]float64{600, 800})
	comp := New(canvas, fixedMetrics{5})

	// The lower passage arrives first; the sidebar must still stack
	// the higher one on top.
	in := Input{Comments: []Comment{
		cmtWith("cmt_low", "lower passage",
			PageRect{Page: 1, Rect: geom.PercentRect{X: 10, Y: 70, W: 20, H: 3}}),
		cmtWith("cmt_high", "upper passage",
			PageRect{Page: 1, Rect: geom.PercentRect{X: 10, Y: 5, W: 20, H: 3}}),
	}}
	if err := comp.Compose(in); err != nil {
		t.Fatal(err)
	}

	var highY, lowY float64
	for _, op := range canvas.texts {
		switch op.text {
		case "upper passage":
			highY = op.y
		case "lower passage":
			lowY = op.y
		}
	}
	if highY == 0 || lowY == 0 {
		t.Fatalf("sidebar text ops: %+v", canvas.texts)
	}
	if highY <= lowY {
		t.Errorf("anchor order ignored: upper at y=%v, lower at y=%v", highY, lowY)
	}
}

func TestCommentFallsBackToStoredPosition(t *testing.T) {
	canvas := newFakeCanvas([2]float64{600, 800}, [2]float64{600, 800})
	comp := New(canvas, fixedMetrics{5})

	// No measured rects: the record's own position and page place it.
	pos := geom.PercentRect{X: 20, Y: 30, W: 15, H: 3}
	positioned := Comment{Rec: &annotation.Comment{
		ID: "cmt_1", Type: annotation.KindComment, Text: "kept after reflow",
		Position: &pos, Page: 2,
	}}
	// Neither rects nor position: the text still prints, connectorless.
	bare := Comment{Rec: &annotation.Comment{
		ID: "cmt_2", Type: annotation.KindComment, Text: "orphaned remark", Page: 1,
	}}
	if err := comp.Compose(Input{Comments: []Comment{positioned, bare}}); err != nil {
		t.Fatal(err)
	}

	var onPage2, onPage1 bool
	for _, op := range canvas.texts {
		if op.page == 2 && strings.Contains("kept after reflow", op.text) {
			onPage2 = true
		}
		if op.page == 1 && strings.Contains("orphaned remark", op.text) {
			onPage1 = true
		}
	}
	if !onPage2 {
		t.Error("positioned comment missing from its stored page")
	}
	if !onPage1 {
		t.Error("comment without geometry was dropped")
	}
	if len(canvas.lines) != 1 {
		t.Errorf("connectors: %d, want 1 (only the positioned comment)", len(canvas.lines))
	}
	if canvas.lines[0].page != 2 {
		t.Errorf("connector page: %d", canvas.lines[0].page)
	}
}

func TestCommentWrapsToSidebarWidth(t *testing.T) {
	canvas := newFakeCanvas([2]float64{600, 800})
	// 10 points per char: 20 chars per 200-point line.
	comp := New(canvas, fixedMetrics{10})

	comment := strings.Repeat("word ", 12) // 60 chars
	in := Input{Comments: []Comment{
		cmtWith("cmt_1", strings.TrimSpace(comment),
			PageRect{Page: 1, Rect: geom.PercentRect{X: 10, Y: 10, W: 20, H: 3}}),
	}}
	if err := comp.Compose(in); err != nil {
		t.Fatal(err)
	}
	if len(canvas.texts) < 3 {
		t.Errorf("expected the comment to wrap to several lines, got %d", len(canvas.texts))
	}
	for i := 1; i < len(canvas.texts); i++ {
		if canvas.texts[i].y >= canvas.texts[i-1].y {
			t.Error("wrapped lines should descend the page")
		}
	}
}

func TestWrapText(t *testing.T) {
	fm := fixedMetrics{10}
	lines := wrapText(fm, "alpha beta gamma", 9, 110)
	if len(lines) != 2 || lines[0] != "alpha beta" || lines[1] != "gamma" {
		t.Errorf("lines: %q", lines)
	}
	if got := wrapText(fm, "", 9, 100); got != nil {
		t.Errorf("empty text: %q", got)
	}
	// A word wider than the line stands alone instead of vanishing.
	lines = wrapText(fm, "tiny incomprehensibilities end", 9, 100)
	if len(lines) != 3 || lines[1] != "incomprehensibilities" {
		t.Errorf("overlong word: %q", lines)
	}
}

func TestMissingPageSkipsNotFails(t *testing.T) {
	canvas := newFakeCanvas([2]float64{600, 800})
	comp := New(canvas, fixedMetrics{5})

	in := Input{
		Highlights: []Highlight{
			hlWith("hl_1", "yellow", PageRect{Page: 9, Rect: geom.PercentRect{X: 0, Y: 0, W: 5, H: 5}}),
		},
		Drawings: []*annotation.Drawing{{
			ID: "drw_1", Type: annotation.KindDrawing,
			Segments: []annotation.Segment{{
				Page:   9,
				Points: []geom.Percent{{X: 0, Y: 0}, {X: 1, Y: 1}},
			}},
		}},
	}
	if err := comp.Compose(in); err != nil {
		t.Fatalf("stale page records should be skipped: %v", err)
	}
	if len(canvas.rects) != 0 || len(canvas.lines) != 0 {
		t.Error("operations drawn on a missing page")
	}
}

func TestReport(t *testing.T) {
	r := NewReporter()
	in := Input{
		Highlights: []Highlight{
			hlWith("hl_1", "yellow", PageRect{Page: 2, Rect: geom.PercentRect{}}),
		},
		Comments: []Comment{
			cmtWith("cmt_1", "verify this", PageRect{Page: 2, Rect: geom.PercentRect{}}),
		},
		Notes: []*annotation.TextNote{{
			ID: "txt_1", Type: annotation.KindText, Page: 1, Text: "margin note",
		}},
	}
	md, err := r.Report("https://example.com/a.pdf", in, annotation.Now())
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Annotations", "Page 1", "Page 2", "snippet for hl_1", "verify this", "margin note"} {
		if !strings.Contains(md, want) {
			t.Errorf("report missing %q:\n%s", want, md)
		}
	}
}

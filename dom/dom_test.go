package dom

import (
	"strings"
	"testing"
)

const viewerHTML = `<html><body>
<div class="page" data-page-number="1">
  <div class="textLayer"><span>The quick brown</span><span>fox jumps</span><span>, over the lazy dog</span></div>
</div>
<div class="page" data-page-number="2">
  <div class="textLayer"></div>
</div>
</body></html>`

func testDoc(t *testing.T) *Document {
	t.Helper()
	doc, err := ParseString(viewerHTML)
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}

func TestPages(t *testing.T) {
	doc := testDoc(t)
	pages := doc.Pages()
	if len(pages) != 2 {
		t.Fatalf("pages: got %d, want 2", len(pages))
	}
	if pages[0].Number != 1 || pages[1].Number != 2 {
		t.Errorf("page numbers: %d, %d", pages[0].Number, pages[1].Number)
	}
	if !pages[0].Ready() {
		t.Error("page 1 should be ready")
	}
	if pages[1].Ready() {
		t.Error("page 2 has an empty text layer and should not be ready")
	}
	if _, err := doc.Page(3); err == nil {
		t.Error("page 3 should not resolve")
	}
}

func TestTextIndexJoinRule(t *testing.T) {
	doc := testDoc(t)
	page, err := doc.Page(1)
	if err != nil {
		t.Fatal(err)
	}
	idx := BuildTextIndex(page.Node)
	want := "The quick brown fox jumps, over the lazy dog"
	if idx.Text != want {
		t.Fatalf("flattened text:\n got %q\nwant %q", idx.Text, want)
	}
}

func TestPathRoundTrip(t *testing.T) {
	doc := testDoc(t)
	page, err := doc.Page(1)
	if err != nil {
		t.Fatal(err)
	}
	idx := BuildTextIndex(page.Node)
	node, _, err := idx.Locate(strings.Index(idx.Text, "fox"), false)
	if err != nil {
		t.Fatal(err)
	}
	path, err := BuildPath(page.Node, node)
	if err != nil {
		t.Fatalf("build path: %v", err)
	}
	if path != "/div[1]/span[2]/text()[1]" {
		t.Errorf("path: %q", path)
	}
	back, err := ResolvePath(page.Node, path)
	if err != nil {
		t.Fatalf("resolve path: %v", err)
	}
	if back != node {
		t.Error("resolved path did not land on the original node")
	}
	if _, err := ResolvePath(page.Node, "/div[1]/span[9]/text()[1]"); err == nil {
		t.Error("out-of-range step should fail")
	}
	if _, err := ResolvePath(page.Node, "div[1]"); err == nil {
		t.Error("path without leading slash should fail")
	}
}

func TestRangeAcrossNodes(t *testing.T) {
	doc := testDoc(t)
	page, err := doc.Page(1)
	if err != nil {
		t.Fatal(err)
	}
	idx := BuildTextIndex(page.Node)
	start := strings.Index(idx.Text, "brown")
	r, err := idx.RangeAt(start, start+len("brown fox"))
	if err != nil {
		t.Fatal(err)
	}
	got, err := r.Text()
	if err != nil {
		t.Fatal(err)
	}
	if got != "brown fox" {
		t.Errorf("range text: %q", got)
	}
}

func TestWrapAndRemoveMarkers(t *testing.T) {
	doc := testDoc(t)
	page, err := doc.Page(1)
	if err != nil {
		t.Fatal(err)
	}
	idx := BuildTextIndex(page.Node)
	start := strings.Index(idx.Text, "brown")
	r, err := idx.RangeAt(start, start+len("brown fox"))
	if err != nil {
		t.Fatal(err)
	}
	spans, err := r.Wrap("hl_1", map[string]string{"data-color": "yellow"})
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}
	if len(spans) != 2 {
		t.Fatalf("spans: got %d, want 2", len(spans))
	}
	if got := Markers(page.Node, "hl_1"); len(got) != 2 {
		t.Fatalf("markers: got %d, want 2", len(got))
	}
	if spans[0].FirstChild.Data != "brown" || spans[1].FirstChild.Data != "fox" {
		t.Errorf("marker contents: %q, %q", spans[0].FirstChild.Data, spans[1].FirstChild.Data)
	}
	if Attr(spans[0], "data-color") != "yellow" {
		t.Error("extra attribute not carried")
	}

	if n := RemoveMarkers(page.Node, "hl_1"); n != 2 {
		t.Fatalf("removed %d markers, want 2", n)
	}
	if got := Markers(page.Node, ""); len(got) != 0 {
		t.Error("markers remain after removal")
	}
	after := BuildTextIndex(page.Node)
	if after.Text != idx.Text {
		t.Errorf("text changed by wrap/unwrap cycle:\n got %q\nwant %q", after.Text, idx.Text)
	}
}

func TestNormalizeMergesTextNodes(t *testing.T) {
	doc, err := ParseString(`<p>hello</p>`)
	if err != nil {
		t.Fatal(err)
	}
	idx := BuildTextIndex(doc.Root)
	node, _, err := idx.Locate(0, false)
	if err != nil {
		t.Fatal(err)
	}
	SplitText(node, 3)
	SplitText(node, 1)
	Normalize(node.Parent)
	if node.Data != "hello" {
		t.Errorf("normalized data: %q", node.Data)
	}
	if node.NextSibling != nil {
		t.Error("siblings remain after normalize")
	}
}

package export

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"

	"github.com/hazyhaar/annot/annotation"
)

// Reporter renders an annotation digest as Markdown, for sharing a
// review without sending the PDF around.
type Reporter struct {
	conv *converter.Converter
}

// NewReporter builds a Reporter.
func NewReporter() *Reporter {
	return &Reporter{
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Report lists every annotation grouped by page: highlighted passages
// as quotes with their comments, notes, and stroke counts. The digest
// is assembled as HTML and converted, so passages render with the
// same escaping rules as any other exported markup.
func (r *Reporter) Report(url string, in Input, now int64) (string, error) {
	type pageItems struct {
		html strings.Builder
	}
	pages := make(map[int]*pageItems)
	page := func(n int) *pageItems {
		p, ok := pages[n]
		if !ok {
			p = &pageItems{}
			pages[n] = p
		}
		return p
	}

	for _, hl := range in.Highlights {
		p := page(hl.Rec.Anchor.Page)
		fmt.Fprintf(&p.html, "<blockquote>%s</blockquote>", html.EscapeString(hl.Rec.Anchor.Snippet))
		if ts := annotation.FormatRelative(hl.Rec.CreatedAt, now); ts != "" {
			fmt.Fprintf(&p.html, "<p><small>%s</small></p>", ts)
		}
	}
	for _, cm := range in.Comments {
		p := page(cm.Rec.Page)
		if cm.Rec.Anchor.Snippet != "" {
			fmt.Fprintf(&p.html, "<blockquote>%s</blockquote>", html.EscapeString(cm.Rec.Anchor.Snippet))
		}
		fmt.Fprintf(&p.html, "<p><em>%s</em></p>", html.EscapeString(cm.Rec.Text))
		if ts := annotation.FormatRelative(cm.Rec.CreatedAt, now); ts != "" {
			fmt.Fprintf(&p.html, "<p><small>%s</small></p>", ts)
		}
	}
	for _, n := range in.Notes {
		fmt.Fprintf(&page(n.Page).html, "<p>Note: %s</p>", html.EscapeString(n.Text))
	}
	strokes := make(map[int]int)
	for _, d := range in.Drawings {
		for _, seg := range d.Segments {
			strokes[seg.Page]++
		}
	}
	for pg, count := range strokes {
		fmt.Fprintf(&page(pg).html, "<p>%d drawn stroke(s)</p>", count)
	}

	nums := make([]int, 0, len(pages))
	for n := range pages {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	var doc strings.Builder
	fmt.Fprintf(&doc, "<h1>Annotations</h1><p>%s</p>", html.EscapeString(url))
	for _, n := range nums {
		fmt.Fprintf(&doc, "<h2>Page %d</h2>%s", n, pages[n].html.String())
	}

	md, err := r.conv.ConvertString(doc.String(), converter.WithDomain(url))
	if err != nil {
		return "", fmt.Errorf("export: report: %w", err)
	}
	return md, nil
}

package livedom

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hazyhaar/annot/apply"
	"github.com/hazyhaar/annot/dom"
	"github.com/hazyhaar/annot/geom"
)

// rectsJS collects the client rects of every marker span carrying the
// given annotation id, expressed as percentages of the enclosing page
// element so the result survives zoom changes.
const rectsJS = `(attr, id) => {
	const out = [];
	for (const el of document.querySelectorAll('[' + attr + '=' + JSON.stringify(id) + ']')) {
		const pageEl = el.closest('[data-page-number]');
		if (!pageEl) continue;
		const page = parseInt(pageEl.getAttribute('data-page-number'), 10);
		const pr = pageEl.getBoundingClientRect();
		if (pr.width <= 0 || pr.height <= 0) continue;
		for (const r of el.getClientRects()) {
			out.push({
				page: page,
				xPercent: (r.left - pr.left) / pr.width * 100,
				yPercent: (r.top - pr.top) / pr.height * 100,
				widthPercent: r.width / pr.width * 100,
				heightPercent: r.height / pr.height * 100,
			});
		}
	}
	return JSON.stringify(out);
}`

// Rects reports where a highlight's markers are painted, as percent
// rects per page. It satisfies apply.RectProvider.
func (v *Viewer) Rects(ctx context.Context, id string) ([]apply.PageRect, error) {
	res, err := v.page.Context(ctx).Eval(rectsJS, dom.MarkerAttr, id)
	if err != nil {
		return nil, fmt.Errorf("livedom: rects %s: %w", id, err)
	}
	var raw []struct {
		Page int `json:"page"`
		geom.PercentRect
	}
	if err := json.Unmarshal([]byte(res.Value.Str()), &raw); err != nil {
		return nil, fmt.Errorf("livedom: rects %s: %w", id, err)
	}
	out := make([]apply.PageRect, 0, len(raw))
	for _, r := range raw {
		out = append(out, apply.PageRect{Page: r.Page, Rect: geom.ClampRect(r.PercentRect)})
	}
	return out, nil
}

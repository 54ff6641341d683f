package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/hazyhaar/annot/server"
	"github.com/hazyhaar/annot/session"

	_ "modernc.org/sqlite"
)

const viewerHTML = `<html><body>
<div class="page" data-page-number="1">
  <div class="textLayer"><span>The quick brown</span><span>fox jumps over</span><span>the lazy dog</span></div>
</div>
</body></html>`

const docURL = "https://example.com/briefs/alpha.pdf"

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := &session.Config{DBPath: filepath.Join(t.TempDir(), "annot.db")}
	mgr, err := session.New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { mgr.Close() })

	ts := httptest.NewServer(server.New(mgr, nil).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, ts *httptest.Server, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatal(err)
	}
}

func openSession(t *testing.T, ts *httptest.Server) {
	t.Helper()
	resp := post(t, ts, "/api/v1/sessions", map[string]string{"url": docURL, "html": viewerHTML})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("open session: %d", resp.StatusCode)
	}
}

func TestSessionLifecycle(t *testing.T) {
	ts := newServer(t)
	openSession(t, ts)

	resp, err := http.Get(ts.URL + "/api/v1/sessions")
	if err != nil {
		t.Fatal(err)
	}
	var sessions struct {
		URLs []string `json:"urls"`
	}
	decode(t, resp, &sessions)
	if len(sessions.URLs) != 1 || sessions.URLs[0] != docURL {
		t.Fatalf("sessions: %v", sessions.URLs)
	}
}

func TestHighlightOverHTTP(t *testing.T) {
	ts := newServer(t)
	openSession(t, ts)

	resp := post(t, ts, "/api/v1/highlights", map[string]any{
		"url": docURL, "page": 1, "startOffset": 4, "endOffset": 19, "color": "green",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d", resp.StatusCode)
	}
	var hl struct {
		ID string `json:"id"`
	}
	decode(t, resp, &hl)
	if hl.ID == "" {
		t.Fatal("no highlight id")
	}

	resp2, err := http.Get(ts.URL + "/api/v1/annotations?url=" + docURL)
	if err != nil {
		t.Fatal(err)
	}
	var ann struct {
		Highlights []json.RawMessage `json:"highlights"`
	}
	decode(t, resp2, &ann)
	if len(ann.Highlights) != 1 {
		t.Fatalf("annotations: %d", len(ann.Highlights))
	}
}

func TestCommentOverHTTP(t *testing.T) {
	ts := newServer(t)
	openSession(t, ts)

	// Flattened page text: "The quick brown fox jumps over the lazy dog".
	resp := post(t, ts, "/api/v1/comments", map[string]any{
		"url": docURL, "page": 1, "startOffset": 35, "endOffset": 43, "text": "dubious",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d", resp.StatusCode)
	}
	var c struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Text string `json:"text"`
	}
	decode(t, resp, &c)
	if c.ID == "" || c.Type != "comment" || c.Text != "dubious" {
		t.Fatalf("comment: %+v", c)
	}

	req, _ := http.NewRequest(http.MethodPatch, ts.URL+"/api/v1/comments/"+c.ID,
		bytes.NewReader(mustJSON(t, map[string]string{"url": docURL, "text": "dubious, see vol. 2"})))
	req.Header.Set("Content-Type", "application/json")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	var updated struct {
		Text string `json:"text"`
	}
	decode(t, resp2, &updated)
	if updated.Text != "dubious, see vol. 2" {
		t.Fatalf("edited text: %q", updated.Text)
	}

	resp3, err := http.Get(ts.URL + "/api/v1/annotations?url=" + docURL)
	if err != nil {
		t.Fatal(err)
	}
	var ann struct {
		Comments []json.RawMessage `json:"comments"`
	}
	decode(t, resp3, &ann)
	if len(ann.Comments) != 1 {
		t.Fatalf("comments listed: %d", len(ann.Comments))
	}

	req, _ = http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/comments/"+c.ID+"?url="+docURL, nil)
	resp4, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp4.Body.Close()
	if resp4.StatusCode != http.StatusOK {
		t.Fatalf("delete: %d", resp4.StatusCode)
	}
}

func TestSelectionGuardOverHTTP(t *testing.T) {
	ts := newServer(t)
	openSession(t, ts)

	resp := post(t, ts, "/api/v1/highlights", map[string]any{
		"url": docURL, "page": 1, "startOffset": 0, "endOffset": 2,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("too-short selection: %d", resp.StatusCode)
	}
}

func TestUndoEmptyIsConflict(t *testing.T) {
	ts := newServer(t)
	openSession(t, ts)

	resp := post(t, ts, "/api/v1/undo", map[string]string{"url": docURL})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("empty undo: %d", resp.StatusCode)
	}
}

func TestUnknownSessionIs404(t *testing.T) {
	ts := newServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/annotations?url=https://example.com/never-opened.pdf")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown session: %d", resp.StatusCode)
	}
}

func TestStrokeAndEraseAtPoint(t *testing.T) {
	ts := newServer(t)
	openSession(t, ts)

	resp := post(t, ts, "/api/v1/strokes", map[string]any{
		"url": docURL, "widthPercent": 0.4,
		"points": []map[string]any{
			{"page": 1, "xPercent": 10, "yPercent": 10},
			{"page": 1, "xPercent": 20, "yPercent": 12},
		},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("stroke: %d", resp.StatusCode)
	}
	var d struct {
		ID       string `json:"id"`
		Segments []struct {
			Page int `json:"page"`
		} `json:"segments"`
	}
	decode(t, resp, &d)
	if d.ID == "" || len(d.Segments) != 1 {
		t.Fatalf("drawing: %+v", d)
	}

	resp2 := post(t, ts, "/api/v1/erase", map[string]any{
		"url": docURL, "page": 1, "xPercent": 15, "yPercent": 11, "radius": 3,
	})
	var erased struct {
		Erased bool   `json:"erased"`
		ID     string `json:"id"`
	}
	decode(t, resp2, &erased)
	if !erased.Erased || erased.ID != d.ID {
		t.Fatalf("erase at point: %+v", erased)
	}
}

func TestToolStateOverHTTP(t *testing.T) {
	ts := newServer(t)
	openSession(t, ts)

	resp := post(t, ts, "/api/v1/tool", map[string]string{"url": docURL, "tool": "draw", "color": "red"})
	var state struct {
		Active string `json:"active"`
		Color  string `json:"color"`
	}
	decode(t, resp, &state)
	if state.Active != "draw" || state.Color != "red" {
		t.Fatalf("tool state: %+v", state)
	}

	// Same tool again toggles back off.
	resp2 := post(t, ts, "/api/v1/tool", map[string]string{"url": docURL, "tool": "draw"})
	decode(t, resp2, &state)
	if state.Active != "none" {
		t.Fatalf("toggle off: %+v", state)
	}
}

func TestReportOverHTTP(t *testing.T) {
	ts := newServer(t)
	openSession(t, ts)

	post(t, ts, "/api/v1/highlights", map[string]any{
		"url": docURL, "page": 1, "startOffset": 4, "endOffset": 19,
	}).Body.Close()

	resp, err := http.Get(ts.URL + "/api/v1/report?url=" + docURL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("report: %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/markdown; charset=utf-8" {
		t.Fatalf("content type: %q", ct)
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

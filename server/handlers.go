package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/annot/annotation"
	"github.com/hazyhaar/annot/apply"
	"github.com/hazyhaar/annot/dom"
	"github.com/hazyhaar/annot/geom"
	"github.com/hazyhaar/annot/history"
	"github.com/hazyhaar/annot/session"
	"github.com/hazyhaar/annot/store"
	"github.com/hazyhaar/annot/tool"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps engine errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrNoSession),
		errors.Is(err, apply.ErrNotFound),
		errors.Is(err, dom.ErrPageRange):
		status = http.StatusNotFound
	case errors.Is(err, annotation.ErrSelectionLength),
		errors.Is(err, annotation.ErrCommentLength),
		errors.Is(err, apply.ErrEmptyText),
		errors.Is(err, apply.ErrEmptyStroke),
		errors.Is(err, store.ErrSentinelURL),
		errors.Is(err, store.ErrEmptyURL),
		errors.Is(err, tool.ErrUnknownTool),
		errors.Is(err, annotation.ErrUnknownKind):
		status = http.StatusBadRequest
	case errors.Is(err, history.ErrNothingToUndo),
		errors.Is(err, history.ErrNothingToRedo),
		errors.Is(err, tool.ErrPopupOpen):
		status = http.StatusConflict
	case errors.Is(err, session.ErrNoBrowser):
		status = http.StatusNotImplemented
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) sessionFor(w http.ResponseWriter, url string) (*session.Session, bool) {
	sess, err := s.mgr.Session(url)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return sess, true
}

// --- sessions ---

type openSessionRequest struct {
	URL string `json:"url"`
	// HTML carries a DOM snapshot for detached mode. Empty means
	// open a live viewer tab.
	HTML string `json:"html,omitempty"`
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.URL == "" {
		http.Error(w, "url required", http.StatusBadRequest)
		return
	}

	var (
		sess *session.Session
		err  error
	)
	if req.HTML != "" {
		var doc *dom.Document
		doc, err = dom.ParseString(req.HTML)
		if err == nil {
			sess, err = s.mgr.Attach(r.Context(), req.URL, doc)
		}
	} else {
		sess, err = s.mgr.Open(r.Context(), req.URL)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"url": sess.URL(), "live": sess.Live()})
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.mgr.CloseSession(r.URL.Query().Get("url")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"urls": s.mgr.Sessions()})
}

// --- annotations ---

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r.URL.Query().Get("url"))
	if !ok {
		return
	}
	ann, err := sess.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ann)
}

func (s *Server) handleEraseAll(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r.URL.Query().Get("url"))
	if !ok {
		return
	}
	if err := sess.EraseAll(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "erased_all"})
}

// --- highlights ---

type createHighlightRequest struct {
	URL         string `json:"url"`
	Page        int    `json:"page"`
	StartOffset int    `json:"startOffset"`
	EndOffset   int    `json:"endOffset"`
	Color       string `json:"color,omitempty"`
}

func (s *Server) handleCreateHighlight(w http.ResponseWriter, r *http.Request) {
	var req createHighlightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	sess, ok := s.sessionFor(w, req.URL)
	if !ok {
		return
	}
	hl, err := sess.CreateHighlight(r.Context(), req.Page, req.StartOffset, req.EndOffset, req.Color)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, hl)
}

func (s *Server) handleEraseHighlight(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r.URL.Query().Get("url"))
	if !ok {
		return
	}
	if err := sess.EraseHighlight(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "erased"})
}

// --- comments ---

type createCommentRequest struct {
	URL         string `json:"url"`
	Page        int    `json:"page"`
	StartOffset int    `json:"startOffset"`
	EndOffset   int    `json:"endOffset"`
	Text        string `json:"text"`
}

func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	var req createCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	sess, ok := s.sessionFor(w, req.URL)
	if !ok {
		return
	}
	c, err := sess.CreateComment(r.Context(), req.Page, req.StartOffset, req.EndOffset, req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

type editCommentRequest struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

func (s *Server) handleEditComment(w http.ResponseWriter, r *http.Request) {
	var req editCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	sess, ok := s.sessionFor(w, req.URL)
	if !ok {
		return
	}
	c, err := sess.EditComment(r.Context(), chi.URLParam(r, "id"), req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r.URL.Query().Get("url"))
	if !ok {
		return
	}
	if err := sess.DeleteComment(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// --- strokes ---

type strokePoint struct {
	Page     int     `json:"page"`
	XPercent float64 `json:"xPercent"`
	YPercent float64 `json:"yPercent"`
}

type createStrokeRequest struct {
	URL          string        `json:"url"`
	Color        string        `json:"color,omitempty"`
	WidthPercent float64       `json:"widthPercent"`
	Points       []strokePoint `json:"points"`
}

func (s *Server) handleCreateStroke(w http.ResponseWriter, r *http.Request) {
	var req createStrokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	sess, ok := s.sessionFor(w, req.URL)
	if !ok {
		return
	}
	points := make([]apply.CapturePoint, 0, len(req.Points))
	for _, p := range req.Points {
		points = append(points, apply.CapturePoint{
			Page:  p.Page,
			Point: geom.Percent{X: p.XPercent, Y: p.YPercent},
		})
	}
	d, err := sess.CreateStroke(r.Context(), points, req.Color, req.WidthPercent)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleEraseStroke(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r.URL.Query().Get("url"))
	if !ok {
		return
	}
	if err := sess.EraseStroke(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "erased"})
}

// --- notes ---

type createNoteRequest struct {
	URL         string  `json:"url"`
	Page        int     `json:"page"`
	XPercent    float64 `json:"xPercent"`
	YPercent    float64 `json:"yPercent"`
	Text        string  `json:"text"`
	Color       string  `json:"color,omitempty"`
	SizePercent float64 `json:"sizePercent,omitempty"`
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	var req createNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	sess, ok := s.sessionFor(w, req.URL)
	if !ok {
		return
	}
	note, err := sess.CreateText(r.Context(), req.Page,
		geom.Percent{X: req.XPercent, Y: req.YPercent}, req.Text, req.Color, req.SizePercent)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

type editNoteRequest struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

func (s *Server) handleEditNote(w http.ResponseWriter, r *http.Request) {
	var req editNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	sess, ok := s.sessionFor(w, req.URL)
	if !ok {
		return
	}
	note, err := sess.EditText(r.Context(), chi.URLParam(r, "id"), req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFor(w, r.URL.Query().Get("url"))
	if !ok {
		return
	}
	if err := sess.DeleteText(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// --- erase at point ---

type erasePointRequest struct {
	URL      string  `json:"url"`
	Page     int     `json:"page"`
	XPercent float64 `json:"xPercent"`
	YPercent float64 `json:"yPercent"`
	Radius   float64 `json:"radius,omitempty"`
}

func (s *Server) handleEraseAtPoint(w http.ResponseWriter, r *http.Request) {
	var req erasePointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	sess, ok := s.sessionFor(w, req.URL)
	if !ok {
		return
	}
	radius := req.Radius
	if radius <= 0 {
		radius = 2
	}
	rec, err := sess.EraseAtPoint(r.Context(), req.Page,
		geom.Percent{X: req.XPercent, Y: req.YPercent}, radius)
	if err != nil {
		writeError(w, err)
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusOK, map[string]any{"erased": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"erased": true, "id": rec.RecordID(), "kind": rec.RecordKind()})
}

// --- undo / redo ---

type urlRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	var req urlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	sess, ok := s.sessionFor(w, req.URL)
	if !ok {
		return
	}
	e, err := sess.Undo(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"undone": string(e.Kind)})
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	var req urlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	sess, ok := s.sessionFor(w, req.URL)
	if !ok {
		return
	}
	e, err := sess.Redo(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"redone": string(e.Kind)})
}

// --- tool state ---

type toolRequest struct {
	URL   string `json:"url"`
	Tool  string `json:"tool,omitempty"`
	Color string `json:"color,omitempty"`
}

func (s *Server) handleTool(w http.ResponseWriter, r *http.Request) {
	var req toolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	sess, ok := s.sessionFor(w, req.URL)
	if !ok {
		return
	}
	machine := sess.Tools()
	if req.Color != "" {
		machine.SetColor(req.Color)
	}
	if req.Tool != "" {
		if req.Tool == string(tool.None) {
			machine.Deactivate()
		} else if err := machine.Activate(tool.Tool(req.Tool)); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"active": string(machine.Active()),
		"color":  machine.Color(),
	})
}

type keyRequest struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

func (s *Server) handleKey(w http.ResponseWriter, r *http.Request) {
	var req keyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	sess, ok := s.sessionFor(w, req.URL)
	if !ok {
		return
	}
	consumed, err := sess.Tools().HandleKey(req.Key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"consumed": consumed,
		"active":   string(sess.Tools().Active()),
	})
}

// --- export / report ---

// handleExport composites annotations onto the PDF uploaded as the
// request body and streams the annotated PDF back.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	src, err := io.ReadAll(r.Body)
	if err != nil || len(src) == 0 {
		http.Error(w, "pdf body required", http.StatusBadRequest)
		return
	}
	out, err := s.mgr.ExportPDF(r.Context(), url, src)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="annotated.pdf"`)
	w.Write(out)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	md, err := s.mgr.Report(r.Context(), r.URL.Query().Get("url"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Write([]byte(md))
}

// CLAUDE:SUMMARY Registers annotation MCP tools — list, comment, notes, erase, undo/redo, report.
package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/annot/annotation"
	"github.com/hazyhaar/annot/geom"
	"github.com/hazyhaar/annot/kit"
)

// RegisterMCP registers annotation tools on an MCP server.
func (m *Manager) RegisterMCP(srv *mcp.Server) {
	m.registerListTool(srv)
	m.registerCommentTool(srv)
	m.registerNoteCreateTool(srv)
	m.registerNoteEditTool(srv)
	m.registerEraseTool(srv)
	m.registerUndoTool(srv)
	m.registerRedoTool(srv)
	m.registerEraseAllTool(srv)
	m.registerReportTool(srv)
	m.registerSessionsTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func urlProp() map[string]any {
	return map[string]any{"type": "string", "description": "Document URL the annotations belong to"}
}

// --- list ---

type listRequest struct {
	URL string `json:"url"`
}

func (m *Manager) registerListTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "annot_list",
		Description: "List all annotations on a document: highlights, comments, freehand strokes, and text notes.",
		InputSchema: inputSchema(map[string]any{
			"url": urlProp(),
		}, []string{"url"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*listRequest)
		return listAnnotations(ctx, m.store, r.URL)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r listRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{
			Request:   &r,
			EnrichCtx: func(ctx context.Context) context.Context { return kit.WithDocURL(ctx, r.URL) },
		}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- comment ---

type commentRequest struct {
	URL         string `json:"url"`
	CommentID   string `json:"comment_id,omitempty"`
	Page        int    `json:"page,omitempty"`
	StartOffset int    `json:"start_offset,omitempty"`
	EndOffset   int    `json:"end_offset,omitempty"`
	Text        string `json:"text"`
}

func (m *Manager) registerCommentTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "annot_comment",
		Description: "Attach a comment to a text range, or edit / delete (empty text) an existing comment by ID.",
		InputSchema: inputSchema(map[string]any{
			"url":          urlProp(),
			"comment_id":   map[string]any{"type": "string", "description": "Existing comment ID; omit to create"},
			"page":         map[string]any{"type": "integer", "description": "1-based page number (create only)"},
			"start_offset": map[string]any{"type": "integer", "description": "Selection start in the page's flattened text (create only)"},
			"end_offset":   map[string]any{"type": "integer", "description": "Selection end, exclusive (create only)"},
			"text":         map[string]any{"type": "string", "description": "Comment text, max 1000 characters; empty deletes an existing comment"},
		}, []string{"url"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*commentRequest)
		s, err := m.Session(r.URL)
		if err != nil {
			return nil, err
		}
		if r.CommentID == "" {
			return s.CreateComment(ctx, r.Page, r.StartOffset, r.EndOffset, r.Text)
		}
		if r.Text == "" {
			if err := s.DeleteComment(ctx, r.CommentID); err != nil {
				return nil, err
			}
			return map[string]string{"status": "deleted", "id": r.CommentID}, nil
		}
		return s.EditComment(ctx, r.CommentID, r.Text)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r commentRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- note_create ---

type noteCreateRequest struct {
	URL         string  `json:"url"`
	Page        int     `json:"page"`
	XPercent    float64 `json:"x_percent"`
	YPercent    float64 `json:"y_percent"`
	Text        string  `json:"text"`
	Color       string  `json:"color,omitempty"`
	SizePercent float64 `json:"size_percent,omitempty"`
}

func (m *Manager) registerNoteCreateTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "annot_note_create",
		Description: "Place a text note on a page at a percent position.",
		InputSchema: inputSchema(map[string]any{
			"url":          urlProp(),
			"page":         map[string]any{"type": "integer", "description": "1-based page number"},
			"x_percent":    map[string]any{"type": "number", "description": "Horizontal position, 0-100"},
			"y_percent":    map[string]any{"type": "number", "description": "Vertical position, 0-100"},
			"text":         map[string]any{"type": "string", "description": "Note text; HTML is stripped"},
			"color":        map[string]any{"type": "string", "description": "Color name or #hex (default: active tool color)"},
			"size_percent": map[string]any{"type": "number", "description": "Font size as percent of page width"},
		}, []string{"url", "page", "x_percent", "y_percent", "text"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*noteCreateRequest)
		s, err := m.Session(r.URL)
		if err != nil {
			return nil, err
		}
		pos := geom.Percent{X: r.XPercent, Y: r.YPercent}
		return s.CreateText(ctx, r.Page, pos, r.Text, r.Color, r.SizePercent)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r noteCreateRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- note_edit ---

type noteEditRequest struct {
	URL    string `json:"url"`
	NoteID string `json:"note_id"`
	Text   string `json:"text"`
}

func (m *Manager) registerNoteEditTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "annot_note_edit",
		Description: "Replace the text of an existing note.",
		InputSchema: inputSchema(map[string]any{
			"url":     urlProp(),
			"note_id": map[string]any{"type": "string", "description": "Note ID"},
			"text":    map[string]any{"type": "string", "description": "New text; HTML is stripped"},
		}, []string{"url", "note_id", "text"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*noteEditRequest)
		s, err := m.Session(r.URL)
		if err != nil {
			return nil, err
		}
		return s.EditText(ctx, r.NoteID, r.Text)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r noteEditRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- erase ---

type eraseRequest struct {
	URL  string `json:"url"`
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

func (m *Manager) registerEraseTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "annot_erase",
		Description: "Erase one annotation by kind and ID. Undoable.",
		InputSchema: inputSchema(map[string]any{
			"url":  urlProp(),
			"kind": map[string]any{"type": "string", "enum": []any{"highlight", "comment", "drawing", "text"}, "description": "Annotation kind"},
			"id":   map[string]any{"type": "string", "description": "Annotation ID"},
		}, []string{"url", "kind", "id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*eraseRequest)
		s, err := m.Session(r.URL)
		if err != nil {
			return nil, err
		}
		switch annotation.Kind(r.Kind) {
		case annotation.KindHighlight:
			err = s.EraseHighlight(ctx, r.ID)
		case annotation.KindComment:
			err = s.DeleteComment(ctx, r.ID)
		case annotation.KindDrawing:
			err = s.EraseStroke(ctx, r.ID)
		case annotation.KindText:
			err = s.DeleteText(ctx, r.ID)
		default:
			return nil, fmt.Errorf("%w: %s", annotation.ErrUnknownKind, r.Kind)
		}
		if err != nil {
			return nil, err
		}
		return map[string]string{"status": "erased", "id": r.ID}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r eraseRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- undo / redo ---

type undoRequest struct {
	URL string `json:"url"`
}

func (m *Manager) registerUndoTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "annot_undo",
		Description: "Undo the last annotation action on a document.",
		InputSchema: inputSchema(map[string]any{"url": urlProp()}, []string{"url"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*undoRequest)
		s, err := m.Session(r.URL)
		if err != nil {
			return nil, err
		}
		e, err := s.Undo(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]string{"undone": string(e.Kind)}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r undoRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func (m *Manager) registerRedoTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "annot_redo",
		Description: "Redo the last undone annotation action on a document.",
		InputSchema: inputSchema(map[string]any{"url": urlProp()}, []string{"url"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*undoRequest)
		s, err := m.Session(r.URL)
		if err != nil {
			return nil, err
		}
		e, err := s.Redo(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]string{"redone": string(e.Kind)}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r undoRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- erase_all ---

func (m *Manager) registerEraseAllTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "annot_erase_all",
		Description: "Erase every annotation on a document. This also clears the undo history and cannot be undone.",
		InputSchema: inputSchema(map[string]any{"url": urlProp()}, []string{"url"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*listRequest)
		s, err := m.Session(r.URL)
		if err != nil {
			return nil, err
		}
		if err := s.EraseAll(ctx); err != nil {
			return nil, err
		}
		return map[string]string{"status": "erased_all", "url": r.URL}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r listRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- report ---

func (m *Manager) registerReportTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "annot_report",
		Description: "Render a document's annotations as a Markdown digest grouped by page.",
		InputSchema: inputSchema(map[string]any{"url": urlProp()}, []string{"url"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*listRequest)
		md, err := m.Report(ctx, r.URL)
		if err != nil {
			return nil, err
		}
		return map[string]string{"markdown": md}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r listRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- sessions ---

func (m *Manager) registerSessionsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "annot_sessions",
		Description: "List the documents with an open annotation session.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return map[string]any{"urls": m.Sessions()}, nil
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

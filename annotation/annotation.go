// CLAUDE:SUMMARY Annotation record types (highlight, drawing, text note, comment) and their tagged-union JSON wire format.
package annotation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hazyhaar/annot/anchor"
	"github.com/hazyhaar/annot/geom"
	"github.com/hazyhaar/annot/idgen"
)

// Kind discriminates annotation records on the wire via their "type"
// field.
type Kind string

const (
	KindHighlight Kind = "highlight"
	KindDrawing   Kind = "drawing"
	KindText      Kind = "text"
	KindComment   Kind = "comment"
)

const (
	// Selections shorter than MinSelectionLen are almost always
	// misclicks; longer than MaxSelectionLen they stop being quotes
	// and start being pages.
	MinSelectionLen = 3
	MaxSelectionLen = 500

	// MaxCommentLen bounds comment text.
	MaxCommentLen = 1000

	// DefaultNoteMaxWidth is the wrapping width, in percent of page
	// width, for text notes that do not set one.
	DefaultNoteMaxWidth = 60.0

	// DefaultColor is used when a record carries no color or an
	// unknown one.
	DefaultColor = "yellow"
)

var (
	ErrSelectionLength = errors.New("annotation: selection length out of bounds")
	ErrCommentLength   = errors.New("annotation: comment too long")
	ErrUnknownKind     = errors.New("annotation: unknown record type")
)

// Record is any annotation that can be stored and listed.
type Record interface {
	RecordID() string
	RecordKind() Kind
}

// Highlight marks a text selection.
type Highlight struct {
	ID           string        `json:"id"`
	Type         Kind          `json:"type"`
	Color        string        `json:"color"`
	Anchor       anchor.Record `json:"anchor"`
	CreatedAt    int64         `json:"timestamp"`
	LastModified int64         `json:"lastModified,omitempty"`
}

func (h *Highlight) RecordID() string { return h.ID }
func (h *Highlight) RecordKind() Kind { return KindHighlight }

// Comment is a note pinned to a text selection. It carries its own
// anchor pair, independent of any highlight, plus the position and
// page the selection was captured at so exports can place it even
// when the anchor no longer resolves.
type Comment struct {
	ID           string            `json:"id"`
	Type         Kind              `json:"type"`
	Text         string            `json:"text"`
	Anchor       anchor.Record     `json:"anchor"`
	Position     *geom.PercentRect `json:"position,omitempty"`
	Page         int               `json:"pageIndex"`
	CreatedAt    int64             `json:"timestamp"`
	LastModified int64             `json:"lastModified,omitempty"`
}

func (c *Comment) RecordID() string { return c.ID }
func (c *Comment) RecordKind() Kind { return KindComment }

// Segment is the part of a stroke confined to one page. A gesture
// that crosses a page boundary is split into consecutive segments,
// one per page, all under the same drawing.
type Segment struct {
	Page   int            `json:"page"`
	Points []geom.Percent `json:"points"`
}

// Drawing is one freehand gesture, pen-down to pen-up.
type Drawing struct {
	ID           string    `json:"id"`
	Type         Kind      `json:"type"`
	Color        string    `json:"color"`
	WidthPercent float64   `json:"widthPercent"`
	Segments     []Segment `json:"segments"`
	CreatedAt    int64     `json:"timestamp"`
}

func (d *Drawing) RecordID() string { return d.ID }
func (d *Drawing) RecordKind() Kind { return KindDrawing }

// TextNote is a free-floating note pinned at a percent position on a
// page. Its font size is stored as a percentage of page width so it
// scales with zoom.
type TextNote struct {
	ID           string       `json:"id"`
	Type         Kind         `json:"type"`
	Page         int          `json:"page"`
	Position     geom.Percent `json:"position"`
	Text         string       `json:"text"`
	Color        string       `json:"color,omitempty"`
	SizePercent  float64      `json:"sizePercent"`
	MaxWidth     float64      `json:"maxWidthPercent,omitempty"`
	CreatedAt    int64        `json:"timestamp"`
	LastModified int64        `json:"lastModified,omitempty"`

	// legacySizePx carries the pre-percent "size" field of old
	// records until NormalizeSize converts it.
	legacySizePx float64
}

func (n *TextNote) RecordID() string { return n.ID }
func (n *TextNote) RecordKind() Kind { return KindText }

// UnmarshalJSON accepts both current records and legacy ones whose
// font size was stored in pixels under "size".
func (n *TextNote) UnmarshalJSON(data []byte) error {
	type alias TextNote
	aux := struct {
		*alias
		LegacySize float64 `json:"size,omitempty"`
	}{alias: (*alias)(n)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	n.legacySizePx = aux.LegacySize
	return nil
}

// NormalizeSize migrates a legacy pixel size to a page-width
// percentage. It needs the page width the legacy record was captured
// against; callers pass the current render width, which is the best
// available approximation.
func (n *TextNote) NormalizeSize(pageWidth float64) error {
	if n.SizePercent > 0 || n.legacySizePx <= 0 {
		return nil
	}
	pct, err := geom.SizeToPercent(n.legacySizePx, pageWidth)
	if err != nil {
		return fmt.Errorf("annotation: normalize size: %w", err)
	}
	n.SizePercent = pct
	n.legacySizePx = 0
	return nil
}

// Decode turns a raw stored record into its concrete type based on
// the "type" tag.
func Decode(raw json.RawMessage) (Record, error) {
	var probe struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("annotation: decode: %w", err)
	}
	switch probe.Type {
	// Legacy highlight records carry no type tag at all; only the
	// later kinds gained one.
	case KindHighlight, "":
		var h Highlight
		if err := json.Unmarshal(raw, &h); err != nil {
			return nil, fmt.Errorf("annotation: decode highlight: %w", err)
		}
		return &h, nil
	case KindComment:
		var c Comment
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("annotation: decode comment: %w", err)
		}
		return &c, nil
	case KindDrawing:
		var d Drawing
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("annotation: decode drawing: %w", err)
		}
		return &d, nil
	case KindText:
		var n TextNote
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, fmt.Errorf("annotation: decode text note: %w", err)
		}
		return &n, nil
	default:
		return nil, fmt.Errorf("annotation: decode %q: %w", probe.Type, ErrUnknownKind)
	}
}

// ValidateSelection applies the selection length guard to the text a
// highlight is being created over.
func ValidateSelection(text string) error {
	n := len(strings.TrimSpace(text))
	if n < MinSelectionLen || n > MaxSelectionLen {
		return fmt.Errorf("annotation: selection of %d chars: %w", n, ErrSelectionLength)
	}
	return nil
}

// ValidateComment applies the comment length cap.
func ValidateComment(text string) error {
	if len(text) > MaxCommentLen {
		return fmt.Errorf("annotation: comment of %d chars: %w", len(text), ErrCommentLength)
	}
	return nil
}

// ID generators, one prefix per kind.
var (
	NewHighlightID = idgen.Prefixed("hl_", idgen.Default)
	NewDrawingID   = idgen.Prefixed("drw_", idgen.Default)
	NewTextNoteID  = idgen.Prefixed("txt_", idgen.Default)
	NewCommentID   = idgen.Prefixed("cmt_", idgen.Default)
)

// Now returns the record timestamp convention: milliseconds since the
// Unix epoch.
func Now() int64 {
	return time.Now().UnixMilli()
}

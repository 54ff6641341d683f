package export

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/font"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// PDFCanvas draws onto an existing PDF via pdfcpu. Operations
// accumulate as page content and flush in one pass on Save.
type PDFCanvas struct {
	src   []byte
	conf  *model.Configuration
	dims  []types.Dim
	grow  map[int]float64
	pages map[int]*pageContent
}

type pageContent struct {
	Boxes     []*boxPrim  `json:"boxes,omitempty"`
	Lines     []*linePrim `json:"lines,omitempty"`
	TextBoxes []*textPrim `json:"textBoxes,omitempty"`
}

type boxPrim struct {
	Rect      [4]float64 `json:"rect"`
	FillColor string     `json:"fillColor"`
	Opacity   float64    `json:"opacity,omitempty"`
}

type linePrim struct {
	X1          float64 `json:"x1"`
	Y1          float64 `json:"y1"`
	X2          float64 `json:"x2"`
	Y2          float64 `json:"y2"`
	StrokeColor string  `json:"strokeColor"`
	Width       float64 `json:"width"`
}

type textPrim struct {
	Value    string     `json:"value"`
	Position [2]float64 `json:"position"`
	Font     fontSpec   `json:"font"`
}

type fontSpec struct {
	Name  string  `json:"name"`
	Size  int     `json:"size"`
	Color string  `json:"fillColor,omitempty"`
	Scale float64 `json:"scale,omitempty"`
}

// NewPDFCanvas reads and validates a source PDF.
func NewPDFCanvas(src []byte) (*PDFCanvas, error) {
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(src), conf)
	if err != nil {
		return nil, fmt.Errorf("export: read pdf: %w", err)
	}
	dims, err := ctx.PageDims()
	if err != nil {
		return nil, fmt.Errorf("export: page dims: %w", err)
	}
	return &PDFCanvas{
		src:   src,
		conf:  conf,
		dims:  dims,
		grow:  make(map[int]float64),
		pages: make(map[int]*pageContent),
	}, nil
}

func (c *PDFCanvas) PageCount() int { return len(c.dims) }

func (c *PDFCanvas) PageSize(page int) (float64, float64, error) {
	if page < 1 || page > len(c.dims) {
		return 0, 0, fmt.Errorf("export: page %d of %d", page, len(c.dims))
	}
	d := c.dims[page-1]
	return d.Width, d.Height, nil
}

func (c *PDFCanvas) GrowPageWidth(page int, extra float64) error {
	if page < 1 || page > len(c.dims) {
		return fmt.Errorf("export: grow page %d of %d", page, len(c.dims))
	}
	c.grow[page] += extra
	return nil
}

func (c *PDFCanvas) content(page int) *pageContent {
	pc, ok := c.pages[page]
	if !ok {
		pc = &pageContent{}
		c.pages[page] = pc
	}
	return pc
}

func (c *PDFCanvas) FillRect(page int, x, y, w, h float64, color RGB, opacity float64) error {
	if _, _, err := c.PageSize(page); err != nil {
		return err
	}
	c.content(page).Boxes = append(c.content(page).Boxes, &boxPrim{
		Rect:      [4]float64{x, y, x + w, y + h},
		FillColor: color.Hex(),
		Opacity:   opacity,
	})
	return nil
}

func (c *PDFCanvas) StrokeLine(page int, x1, y1, x2, y2 float64, color RGB, width float64) error {
	if _, _, err := c.PageSize(page); err != nil {
		return err
	}
	c.content(page).Lines = append(c.content(page).Lines, &linePrim{
		X1: x1, Y1: y1, X2: x2, Y2: y2,
		StrokeColor: color.Hex(),
		Width:       width,
	})
	return nil
}

func (c *PDFCanvas) DrawText(page int, text string, x, y, size float64, color RGB) error {
	if _, _, err := c.PageSize(page); err != nil {
		return err
	}
	c.content(page).TextBoxes = append(c.content(page).TextBoxes, &textPrim{
		Value:    text,
		Position: [2]float64{x, y},
		Font:     fontSpec{Name: "Helvetica", Size: int(size + 0.5), Color: color.Hex()},
	})
	return nil
}

// Save renders the accumulated content over the source PDF and
// returns the result.
func (c *PDFCanvas) Save() ([]byte, error) {
	type pageEntry struct {
		MediaBox []float64    `json:"mediaBox,omitempty"`
		Content  *pageContent `json:"content"`
	}
	pages := make(map[string]*pageEntry, len(c.pages))
	for page, pc := range c.pages {
		entry := &pageEntry{Content: pc}
		if extra := c.grow[page]; extra > 0 {
			d := c.dims[page-1]
			entry.MediaBox = []float64{0, 0, d.Width + extra, d.Height}
		}
		pages[fmt.Sprintf("%d", page)] = entry
	}
	doc := map[string]any{"pages": pages}
	spec, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("export: marshal overlay: %w", err)
	}

	var out bytes.Buffer
	if err := api.Create(bytes.NewReader(c.src), bytes.NewReader(spec), &out, c.conf); err != nil {
		return nil, fmt.Errorf("export: compose pdf: %w", err)
	}
	return out.Bytes(), nil
}

// CoreMetrics measures text in one of the PDF core fonts.
type CoreMetrics struct {
	Name string
}

// HelveticaMetrics is the metrics set the comment sidebar wraps with.
var HelveticaMetrics = CoreMetrics{Name: "Helvetica"}

func (m CoreMetrics) TextWidth(text string, size float64) float64 {
	return font.TextWidth(text, m.Name, int(size+0.5))
}

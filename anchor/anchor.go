// CLAUDE:SUMMARY Re-anchors stored text selections onto a re-rendered page: structural path, exact search, fuzzy token fallback.
package anchor

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hazyhaar/annot/dom"
)

var (
	// ErrNotFound means every configured strategy failed to place the
	// record on the page. Callers keep the record and retry after the
	// next render rather than discarding it.
	ErrNotFound = errors.New("anchor: not found")

	// ErrSnippetMismatch means a strategy produced a range whose text
	// no longer matches the stored snippet.
	ErrSnippetMismatch = errors.New("anchor: snippet mismatch")
)

// Record pins a text selection to a page independently of any one
// render. The structural paths are relative to the page container;
// the snippet is the selected text at creation time and is what later
// strategies fall back to when the paths go stale.
type Record struct {
	Page        int    `json:"page"`
	StartPath   string `json:"startPath"`
	StartOffset int    `json:"startOffset"`
	EndPath     string `json:"endPath"`
	EndOffset   int    `json:"endOffset"`
	Snippet     string `json:"snippet"`
}

// MakeRecord captures a resolved range as a Record anchored to page.
func MakeRecord(page *dom.Page, r dom.Range) (Record, error) {
	startPath, err := dom.BuildPath(page.Node, r.Start)
	if err != nil {
		return Record{}, fmt.Errorf("anchor: make record: %w", err)
	}
	endPath, err := dom.BuildPath(page.Node, r.End)
	if err != nil {
		return Record{}, fmt.Errorf("anchor: make record: %w", err)
	}
	snippet, err := r.Text()
	if err != nil {
		return Record{}, fmt.Errorf("anchor: make record: %w", err)
	}
	return Record{
		Page:        page.Number,
		StartPath:   startPath,
		StartOffset: r.StartOffset,
		EndPath:     endPath,
		EndOffset:   r.EndOffset,
		Snippet:     snippet,
	}, nil
}

// Strategy is one way of turning a Record back into a live range on a
// page. Strategies must be deterministic: the same page content and
// record always yield the same range or the same failure.
type Strategy interface {
	Name() string
	Resolve(page *dom.Page, rec Record) (dom.Range, error)
}

// Resolver tries its strategies in order and returns the first range
// one of them stands behind. Each strategy validates its own output:
// structural checks the resolved text against the snippet, exact is
// correct by construction, fuzzy checks token order.
type Resolver struct {
	strategies []Strategy
	logger     *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithStrategies replaces the default strategy chain.
func WithStrategies(s ...Strategy) Option {
	return func(r *Resolver) { r.strategies = s }
}

// WithLogger sets the logger used for per-strategy fallback traces.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver builds a resolver with the default chain: structural
// path, then exact text search, then fuzzy token match.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		strategies: []Strategy{Structural{}, Exact{}, Fuzzy{}},
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve places rec on page. It returns the resolved range and the
// name of the strategy that produced it.
func (r *Resolver) Resolve(page *dom.Page, rec Record) (dom.Range, string, error) {
	if rec.Snippet == "" {
		return dom.Range{}, "", fmt.Errorf("anchor: resolve: empty snippet: %w", ErrNotFound)
	}
	for _, s := range r.strategies {
		rng, err := s.Resolve(page, rec)
		if err != nil {
			r.logger.Debug("anchor strategy failed",
				"strategy", s.Name(), "page", rec.Page, "error", err)
			continue
		}
		return rng, s.Name(), nil
	}
	return dom.Range{}, "", fmt.Errorf("anchor: resolve page %d: %w", rec.Page, ErrNotFound)
}

// Verify checks that a resolved range still carries the stored
// snippet: the range text must equal the snippet or contain it.
func Verify(r dom.Range, snippet string) error {
	text, err := r.Text()
	if err != nil {
		return fmt.Errorf("anchor: verify: %w", err)
	}
	if text != snippet && !strings.Contains(text, snippet) {
		return fmt.Errorf("anchor: verify: got %q: %w", truncate(text, 80), ErrSnippetMismatch)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

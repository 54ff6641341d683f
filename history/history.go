// CLAUDE:SUMMARY Undo/redo engine over annotation actions, dispatching state changes through an Applier capability.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hazyhaar/annot/annotation"
)

var (
	ErrNothingToUndo = errors.New("history: nothing to undo")
	ErrNothingToRedo = errors.New("history: nothing to redo")
	ErrBadEntry      = errors.New("history: malformed entry")
)

// ActionKind names what a history entry did.
type ActionKind string

const (
	HighlightCreate ActionKind = "highlight.create"
	HighlightErase  ActionKind = "highlight.erase"
	DrawCreate      ActionKind = "draw.create"
	DrawErase       ActionKind = "draw.erase"
	TextCreate      ActionKind = "text.create"
	TextDelete      ActionKind = "text.delete"
	TextEdit        ActionKind = "text.edit"
	CommentCreate   ActionKind = "comment.create"
	CommentDelete   ActionKind = "comment.delete"
	CommentEdit     ActionKind = "comment.edit"
)

// Entry is one recorded action. Before is the record's state prior to
// the action (nil for creations), After its state after (nil for
// deletions).
type Entry struct {
	Kind   ActionKind
	Before annotation.Record
	After  annotation.Record
}

func (e Entry) validate() error {
	if e.Before == nil && e.After == nil {
		return fmt.Errorf("history: entry %s: %w", e.Kind, ErrBadEntry)
	}
	return nil
}

func (e Entry) record() annotation.Record {
	if e.After != nil {
		return e.After
	}
	return e.Before
}

// Applier is the engine's only way of touching annotation state. The
// engine stays free of domain logic: it only decides whether to put
// back a prior state or remove a record, and the applier does the
// store and overlay work.
type Applier interface {
	Put(ctx context.Context, rec annotation.Record) error
	Remove(ctx context.Context, kind annotation.Kind, id string) error
}

// DefaultLimit bounds the undo stack. Oldest entries fall off first.
const DefaultLimit = 100

// History holds the undo and redo stacks for one document.
type History struct {
	mu      sync.Mutex
	undo    []Entry
	redo    []Entry
	applier Applier
	limit   int
	logger  *slog.Logger
}

// Option configures a History.
type Option func(*History)

// WithLimit overrides the undo stack bound.
func WithLimit(n int) Option {
	return func(h *History) { h.limit = n }
}

// WithLogger sets the logger for undo/redo traces.
func WithLogger(l *slog.Logger) Option {
	return func(h *History) { h.logger = l }
}

// New builds a History that applies state changes through a.
func New(a Applier, opts ...Option) *History {
	h := &History{applier: a, limit: DefaultLimit, logger: slog.Default()}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Record pushes a completed action onto the undo stack and clears the
// redo stack. Erase-all is deliberately never recorded; callers Reset
// instead, because replaying a full wipe against records the user has
// kept editing is worse than losing the shortcut.
func (h *History) Record(e Entry) error {
	if err := e.validate(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.undo = append(h.undo, e)
	if len(h.undo) > h.limit {
		h.undo = h.undo[len(h.undo)-h.limit:]
	}
	h.redo = h.redo[:0]
	return nil
}

// Undo reverts the most recent action and moves it to the redo stack.
func (h *History) Undo(ctx context.Context) (Entry, error) {
	h.mu.Lock()
	if len(h.undo) == 0 {
		h.mu.Unlock()
		return Entry{}, ErrNothingToUndo
	}
	e := h.undo[len(h.undo)-1]
	h.mu.Unlock()

	if err := h.applyState(ctx, e.Before, e.record()); err != nil {
		return Entry{}, fmt.Errorf("history: undo %s: %w", e.Kind, err)
	}

	h.mu.Lock()
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, e)
	h.mu.Unlock()
	h.logger.Debug("undone", "kind", e.Kind, "id", e.record().RecordID())
	return e, nil
}

// Redo re-applies the most recently undone action.
func (h *History) Redo(ctx context.Context) (Entry, error) {
	h.mu.Lock()
	if len(h.redo) == 0 {
		h.mu.Unlock()
		return Entry{}, ErrNothingToRedo
	}
	e := h.redo[len(h.redo)-1]
	h.mu.Unlock()

	if err := h.applyState(ctx, e.After, e.record()); err != nil {
		return Entry{}, fmt.Errorf("history: redo %s: %w", e.Kind, err)
	}

	h.mu.Lock()
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, e)
	h.mu.Unlock()
	h.logger.Debug("redone", "kind", e.Kind, "id", e.record().RecordID())
	return e, nil
}

// applyState makes the document reflect want; ref supplies identity
// when want is nil and the record must go away.
func (h *History) applyState(ctx context.Context, want, ref annotation.Record) error {
	if want == nil {
		return h.applier.Remove(ctx, ref.RecordKind(), ref.RecordID())
	}
	return h.applier.Put(ctx, want)
}

// CanUndo reports whether Undo would act.
func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undo) > 0
}

// CanRedo reports whether Redo would act.
func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redo) > 0
}

// Depths returns the stack sizes, for status displays.
func (h *History) Depths() (undo, redo int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undo), len(h.redo)
}

// Reset drops both stacks. Called on erase-all and on document switch.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.undo = h.undo[:0]
	h.redo = h.redo[:0]
}

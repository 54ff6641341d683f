// CLAUDE:SUMMARY Tool mode state machine: activation toggling, keyboard shortcuts, popup gating, change hooks.
package tool

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Tool is an interaction mode. Exactly one is active at a time.
type Tool string

const (
	None      Tool = "none"
	Highlight Tool = "highlight"
	Draw      Tool = "draw"
	Text      Tool = "text"
	Comment   Tool = "comment"
	Erase     Tool = "erase"
)

var (
	// ErrPopupOpen means an editor popup owns the input and mode
	// changes are ignored until it closes.
	ErrPopupOpen = errors.New("tool: popup open")

	ErrUnknownTool = errors.New("tool: unknown tool")
)

func valid(t Tool) bool {
	switch t {
	case None, Highlight, Draw, Text, Comment, Erase:
		return true
	}
	return false
}

// Machine tracks the active tool and current color. Activating the
// already-active tool toggles back to None, matching how the toolbar
// buttons behave.
type Machine struct {
	mu         sync.Mutex
	active     Tool
	color      string
	popupDepth int
	onChange   []func(old, new Tool)
	shortcuts  map[string]Tool
	logger     *slog.Logger
}

// Option configures a Machine.
type Option func(*Machine)

// WithOnChange registers a hook fired after every mode change, under
// no lock, in registration order.
func WithOnChange(fn func(old, new Tool)) Option {
	return func(m *Machine) { m.onChange = append(m.onChange, fn) }
}

// WithShortcuts replaces the default key map.
func WithShortcuts(keys map[string]Tool) Option {
	return func(m *Machine) { m.shortcuts = keys }
}

// WithLogger sets the logger for mode-change traces.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) { m.logger = l }
}

// DefaultShortcuts is the stock key map.
func DefaultShortcuts() map[string]Tool {
	return map[string]Tool{
		"h": Highlight,
		"d": Draw,
		"t": Text,
		"c": Comment,
		"e": Erase,
	}
}

// New builds a Machine starting at None with the default color.
func New(opts ...Option) *Machine {
	m := &Machine{
		active:    None,
		color:     "yellow",
		shortcuts: DefaultShortcuts(),
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Activate switches to t, or back to None when t is already active.
func (m *Machine) Activate(t Tool) error {
	if !valid(t) {
		return fmt.Errorf("tool: activate %q: %w", t, ErrUnknownTool)
	}
	m.mu.Lock()
	if m.popupDepth > 0 {
		m.mu.Unlock()
		return fmt.Errorf("tool: activate %q: %w", t, ErrPopupOpen)
	}
	old := m.active
	next := t
	if old == t {
		next = None
	}
	m.active = next
	m.mu.Unlock()

	if old != next {
		m.logger.Debug("tool changed", "from", old, "to", next)
		for _, fn := range m.onChange {
			fn(old, next)
		}
	}
	return nil
}

// Deactivate returns to None regardless of the current tool. Unlike
// Activate it works with a popup open, because closing flows end here.
func (m *Machine) Deactivate() {
	m.mu.Lock()
	old := m.active
	m.active = None
	m.mu.Unlock()
	if old != None {
		m.logger.Debug("tool changed", "from", old, "to", None)
		for _, fn := range m.onChange {
			fn(old, None)
		}
	}
}

// Active returns the current tool.
func (m *Machine) Active() Tool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// SetColor changes the color applied by color-bearing tools. Empty
// strings are ignored.
func (m *Machine) SetColor(c string) {
	if c == "" {
		return
	}
	m.mu.Lock()
	m.color = c
	m.mu.Unlock()
}

// Color returns the current color.
func (m *Machine) Color() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.color
}

// PushPopup marks an editor popup as open. Popups nest (a comment
// editor can open a color picker), so closes must pair with opens.
func (m *Machine) PushPopup() {
	m.mu.Lock()
	m.popupDepth++
	m.mu.Unlock()
}

// PopPopup marks a popup as closed.
func (m *Machine) PopPopup() {
	m.mu.Lock()
	if m.popupDepth > 0 {
		m.popupDepth--
	}
	m.mu.Unlock()
}

// PopupOpen reports whether any popup owns the input.
func (m *Machine) PopupOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.popupDepth > 0
}

// HandleKey routes a keyboard shortcut. It reports whether the key
// was consumed; unconsumed keys pass through to the page. Shortcuts
// are ignored while a popup is open so typing never switches tools,
// except Escape, which closes the topmost popup.
func (m *Machine) HandleKey(key string) (bool, error) {
	m.mu.Lock()
	gated := m.popupDepth > 0
	t, ok := m.shortcuts[key]
	m.mu.Unlock()

	if !ok && key != "Escape" {
		return false, nil
	}
	if gated {
		if key == "Escape" {
			m.PopPopup()
			return true, nil
		}
		return false, nil
	}
	if key == "Escape" {
		m.Deactivate()
		return true, nil
	}
	if err := m.Activate(t); err != nil {
		return false, err
	}
	return true, nil
}

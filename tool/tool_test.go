package tool

import (
	"errors"
	"testing"
)

func TestActivateToggles(t *testing.T) {
	m := New()
	if m.Active() != None {
		t.Fatalf("initial tool: %s", m.Active())
	}
	if err := m.Activate(Highlight); err != nil {
		t.Fatal(err)
	}
	if m.Active() != Highlight {
		t.Fatalf("active: %s", m.Active())
	}
	// Activating the active tool toggles it off.
	if err := m.Activate(Highlight); err != nil {
		t.Fatal(err)
	}
	if m.Active() != None {
		t.Fatalf("after toggle: %s", m.Active())
	}
}

func TestSwitchBetweenTools(t *testing.T) {
	m := New()
	if err := m.Activate(Draw); err != nil {
		t.Fatal(err)
	}
	if err := m.Activate(Erase); err != nil {
		t.Fatal(err)
	}
	if m.Active() != Erase {
		t.Fatalf("active: %s", m.Active())
	}
}

func TestUnknownTool(t *testing.T) {
	m := New()
	if err := m.Activate(Tool("lasso")); !errors.Is(err, ErrUnknownTool) {
		t.Errorf("want ErrUnknownTool, got %v", err)
	}
}

func TestPopupGating(t *testing.T) {
	m := New()
	if err := m.Activate(Text); err != nil {
		t.Fatal(err)
	}
	m.PushPopup()
	if !m.PopupOpen() {
		t.Fatal("popup should be open")
	}
	if err := m.Activate(Draw); !errors.Is(err, ErrPopupOpen) {
		t.Errorf("activate under popup: %v", err)
	}
	if m.Active() != Text {
		t.Errorf("tool changed under popup: %s", m.Active())
	}

	// Nested popups: one close is not enough.
	m.PushPopup()
	m.PopPopup()
	if err := m.Activate(Draw); !errors.Is(err, ErrPopupOpen) {
		t.Errorf("activate under nested popup: %v", err)
	}
	m.PopPopup()
	if err := m.Activate(Draw); err != nil {
		t.Fatalf("activate after popups closed: %v", err)
	}
}

func TestDeactivateWorksUnderPopup(t *testing.T) {
	m := New()
	if err := m.Activate(Draw); err != nil {
		t.Fatal(err)
	}
	m.PushPopup()
	m.Deactivate()
	if m.Active() != None {
		t.Errorf("deactivate under popup: %s", m.Active())
	}
}

func TestOnChangeHook(t *testing.T) {
	var calls []string
	m := New(WithOnChange(func(old, new Tool) {
		calls = append(calls, string(old)+"->"+string(new))
	}))
	if err := m.Activate(Highlight); err != nil {
		t.Fatal(err)
	}
	if err := m.Activate(Highlight); err != nil { // toggle off
		t.Fatal(err)
	}
	m.Deactivate() // already None, no event
	want := []string{"none->highlight", "highlight->none"}
	if len(calls) != len(want) {
		t.Fatalf("hook calls: %v", calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d: %q, want %q", i, calls[i], want[i])
		}
	}
}

func TestShortcuts(t *testing.T) {
	m := New()
	consumed, err := m.HandleKey("h")
	if err != nil || !consumed {
		t.Fatalf("h: consumed=%v err=%v", consumed, err)
	}
	if m.Active() != Highlight {
		t.Fatalf("after h: %s", m.Active())
	}
	consumed, err = m.HandleKey("x")
	if err != nil || consumed {
		t.Errorf("x: consumed=%v err=%v", consumed, err)
	}
	consumed, err = m.HandleKey("Escape")
	if err != nil || !consumed {
		t.Fatalf("Escape: consumed=%v err=%v", consumed, err)
	}
	if m.Active() != None {
		t.Errorf("after Escape: %s", m.Active())
	}
}

func TestShortcutsGatedByPopup(t *testing.T) {
	m := New()
	m.PushPopup()
	consumed, err := m.HandleKey("d")
	if err != nil {
		t.Fatal(err)
	}
	if consumed {
		t.Error("shortcut consumed while typing in a popup")
	}
	if m.Active() != None {
		t.Errorf("tool: %s", m.Active())
	}
}

func TestEscapeClosesPopup(t *testing.T) {
	m := New()
	if err := m.Activate(Text); err != nil {
		t.Fatal(err)
	}
	m.PushPopup()

	consumed, err := m.HandleKey("Escape")
	if err != nil || !consumed {
		t.Fatalf("Escape under popup: consumed=%v err=%v", consumed, err)
	}
	if m.PopupOpen() {
		t.Fatal("Escape did not close the popup")
	}
	if m.Active() != Text {
		t.Errorf("closing the popup changed the tool: %s", m.Active())
	}

	// Nested popups close one level per Escape.
	m.PushPopup()
	m.PushPopup()
	if _, err := m.HandleKey("Escape"); err != nil {
		t.Fatal(err)
	}
	if !m.PopupOpen() {
		t.Fatal("one Escape closed both nested popups")
	}
	if _, err := m.HandleKey("Escape"); err != nil {
		t.Fatal(err)
	}
	if m.PopupOpen() {
		t.Fatal("second Escape left a popup open")
	}

	// With no popup open, Escape drops the active tool.
	if _, err := m.HandleKey("Escape"); err != nil {
		t.Fatal(err)
	}
	if m.Active() != None {
		t.Errorf("after Escape: %s", m.Active())
	}
}

func TestCommentShortcut(t *testing.T) {
	m := New()
	consumed, err := m.HandleKey("c")
	if err != nil || !consumed {
		t.Fatalf("c: consumed=%v err=%v", consumed, err)
	}
	if m.Active() != Comment {
		t.Fatalf("after c: %s", m.Active())
	}
}

func TestColor(t *testing.T) {
	m := New()
	if m.Color() != "yellow" {
		t.Fatalf("default color: %s", m.Color())
	}
	m.SetColor("green")
	if m.Color() != "green" {
		t.Fatalf("color: %s", m.Color())
	}
	m.SetColor("")
	if m.Color() != "green" {
		t.Error("empty color should be ignored")
	}
}

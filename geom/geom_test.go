package geom

import (
	"errors"
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestPointRoundTrip(t *testing.T) {
	page := Rect{X: 40, Y: 120, W: 816, H: 1056}
	points := []Point{
		{X: 40, Y: 120},
		{X: 448, Y: 648},
		{X: 855.5, Y: 1175.25},
	}
	for _, p := range points {
		pct, err := ToPercent(p, page)
		if err != nil {
			t.Fatalf("ToPercent(%v): %v", p, err)
		}
		back, err := ToClient(pct, page)
		if err != nil {
			t.Fatalf("ToClient(%v): %v", pct, err)
		}
		if !almostEqual(back.X, p.X) || !almostEqual(back.Y, p.Y) {
			t.Errorf("round trip %v -> %v -> %v", p, pct, back)
		}
	}
}

func TestRectRoundTripAcrossZoom(t *testing.T) {
	// The same percent rect must land on the same document position
	// when the page rect is re-rendered at a different scale.
	at100 := Rect{X: 0, Y: 0, W: 800, H: 1000}
	at150 := Rect{X: 10, Y: 20, W: 1200, H: 1500}

	r := Rect{X: 200, Y: 500, W: 80, H: 20}
	pct, err := RectToPercent(r, at100)
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(pct.X, 25) || !almostEqual(pct.Y, 50) || !almostEqual(pct.W, 10) || !almostEqual(pct.H, 2) {
		t.Fatalf("unexpected percent rect %+v", pct)
	}

	zoomed, err := RectToClient(pct, at150)
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(zoomed.X, 10+300) || !almostEqual(zoomed.Y, 20+750) {
		t.Errorf("zoomed origin %+v", zoomed)
	}
	if !almostEqual(zoomed.W, 120) || !almostEqual(zoomed.H, 30) {
		t.Errorf("zoomed extent %+v", zoomed)
	}
}

func TestDegenerateRect(t *testing.T) {
	for _, page := range []Rect{{W: 0, H: 100}, {W: 100, H: 0}, {W: -1, H: 100}} {
		if _, err := ToPercent(Point{}, page); !errors.Is(err, ErrDegenerateRect) {
			t.Errorf("page %+v: want ErrDegenerateRect, got %v", page, err)
		}
		if _, err := ToClient(Percent{}, page); !errors.Is(err, ErrDegenerateRect) {
			t.Errorf("page %+v: want ErrDegenerateRect, got %v", page, err)
		}
		if _, err := RectToPercent(Rect{}, page); !errors.Is(err, ErrDegenerateRect) {
			t.Errorf("page %+v: want ErrDegenerateRect, got %v", page, err)
		}
	}
}

func TestClamp(t *testing.T) {
	p := Clamp(Percent{X: -3, Y: 104.2})
	if p.X != 0 || p.Y != 100 {
		t.Errorf("clamp: %+v", p)
	}
	r := ClampRect(PercentRect{X: 95, Y: -2, W: 10, H: 110})
	if r.X != 95 || r.Y != 0 {
		t.Errorf("clamp rect origin: %+v", r)
	}
	if r.W != 5 || r.H != 100 {
		t.Errorf("clamp rect extent: %+v", r)
	}
}

func TestSizePercent(t *testing.T) {
	pct, err := SizeToPercent(16, 800)
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(pct, 2) {
		t.Fatalf("SizeToPercent: %v", pct)
	}
	if px := SizeFromPercent(pct, 1200); !almostEqual(px, 24) {
		t.Errorf("SizeFromPercent at new width: %v", px)
	}
	if _, err := SizeToPercent(16, 0); !errors.Is(err, ErrDegenerateRect) {
		t.Errorf("want ErrDegenerateRect, got %v", err)
	}
}

// math/math_test.go
// Copyright(c) 2025 harborline contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package math

import (
	"testing"

	"github.com/harborline/harborline/rand"
)

func TestNMDistance2LL(t *testing.T) {
	if d := NMDistance2LL(LL(0, 0), LL(1, 0)); Abs(d-60) > 0.1 {
		t.Errorf("one degree of latitude: got %f nm, expected ~60", d)
	}
	if d := NMDistance2LL(LL(0, 0), LL(0, 1)); Abs(d-60) > 0.1 {
		t.Errorf("one degree of longitude at the equator: got %f nm, expected ~60", d)
	}
	p := LL(59.33, 18.06)
	if d := NMDistance2LL(p, p); d != 0 {
		t.Errorf("identical points: got %f nm, expected 0", d)
	}

	// Rotterdam to Felixstowe is a bit over 100nm.
	if d := NMDistance2LL(LL(51.95, 4.05), LL(51.95, 1.35)); d < 95 || d > 105 {
		t.Errorf("Rotterdam-Felixstowe: got %f nm", d)
	}
}

func TestHeading2LL(t *testing.T) {
	for _, tc := range []struct {
		name     string
		from, to Point2LL
		expected float32
	}{
		{"north", LL(10, 10), LL(11, 10), 0},
		{"east", LL(0, 10), LL(0, 11), 90},
		{"south", LL(10, 10), LL(9, 10), 180},
		{"west", LL(0, 10), LL(0, 9), 270},
	} {
		if h := Heading2LL(tc.from, tc.to); headingDifference(h, tc.expected) > 0.5 {
			t.Errorf("%s: got heading %f, expected %f", tc.name, h, tc.expected)
		}
	}
}

func headingDifference(a, b float32) float32 {
	d := Abs(a - b)
	if d > 180 {
		d = 360 - d
	}
	return d
}

func TestNormalizeHeading(t *testing.T) {
	for _, tc := range [][2]float32{{0, 0}, {360, 0}, {-90, 270}, {725, 5}, {359.5, 359.5}} {
		if h := NormalizeHeading(tc[0]); Abs(h-tc[1]) > 1e-3 {
			t.Errorf("NormalizeHeading(%f) = %f, expected %f", tc[0], h, tc[1])
		}
	}
}

func TestOffset2LL(t *testing.T) {
	p := LL(45, -30)
	q := Offset2LL(p, 90, 10)
	if d := NMDistance2LL(p, q); Abs(d-10) > 0.1 {
		t.Errorf("offset 10nm east landed %f nm away", d)
	}
	if h := Heading2LL(p, q); headingDifference(h, 90) > 0.5 {
		t.Errorf("offset east has heading %f", h)
	}
}

func TestExtent2D(t *testing.T) {
	e := Extent2DFromP2LLs([]Point2LL{LL(1, 2), LL(-1, 5), LL(3, 0)})
	if e.P0 != [2]float32{0, -1} || e.P1 != [2]float32{5, 3} {
		t.Errorf("unexpected extent %+v", e)
	}
	if !e.Inside(LL(2, 2)) || e.Inside(LL(4, 2)) {
		t.Errorf("Inside gave unexpected results for %+v", e)
	}
	if !EmptyExtent2D().IsEmpty() || e.IsEmpty() {
		t.Errorf("IsEmpty wrong")
	}
}

func TestAnchoredPositionClamped(t *testing.T) {
	r := rand.MakeSeeded(1234)
	sides := []Side{SideRight, SideLeft, SideTop, SideBottom}

	for i := 0; i < 20000; i++ {
		container := [2]float32{r.Range(100, 2000), r.Range(100, 1500)}
		panel := [2]float32{r.Range(10, container[0]-2*PanelMargin), r.Range(10, container[1]-2*PanelMargin)}
		anchor := [2]float32{r.Range(-50, container[0]+50), r.Range(-50, container[1]+50)}
		pref := sides[r.Intn(len(sides))]
		offset := r.Range(0, 40)

		pl := ComputeAnchoredPosition(anchor, panel, container, pref, offset)

		const eps = 1e-3
		if pl.Left < PanelMargin-eps || pl.Left > container[0]-panel[0]-PanelMargin+eps {
			t.Fatalf("left %f out of bounds: anchor %v panel %v container %v side %s",
				pl.Left, anchor, panel, container, pref)
		}
		if pl.Top < PanelMargin-eps || pl.Top > container[1]-panel[1]-PanelMargin+eps {
			t.Fatalf("top %f out of bounds: anchor %v panel %v container %v side %s",
				pl.Top, anchor, panel, container, pref)
		}
		if pl.Side < SideRight || pl.Side > SideBottom {
			t.Fatalf("invalid side %d", pl.Side)
		}

		if again := ComputeAnchoredPosition(anchor, panel, container, pref, offset); again != pl {
			t.Fatalf("not deterministic: %+v vs %+v", pl, again)
		}
	}
}

func TestAnchoredPositionTinyContainer(t *testing.T) {
	pl := ComputeAnchoredPosition([2]float32{20, 20}, [2]float32{300, 200}, [2]float32{100, 80}, SideRight, 12)
	if pl.Left != PanelMargin || pl.Top != PanelMargin {
		t.Errorf("expected panel pinned at margin, got %+v", pl)
	}
}

func TestAnchoredPositionSideFlip(t *testing.T) {
	container := [2]float32{1000, 800}
	panel := [2]float32{320, 240}

	// Anchor within a panel width of the right edge flips to the left.
	for _, x := range []float32{681, 750, 999} {
		if pl := ComputeAnchoredPosition([2]float32{x, 400}, panel, container, SideRight, 12); pl.Side != SideLeft {
			t.Errorf("x=%f preferred right: got side %s, expected left", x, pl.Side)
		}
	}
	// With room it stays where it was asked to go.
	if pl := ComputeAnchoredPosition([2]float32{200, 400}, panel, container, SideRight, 12); pl.Side != SideRight || pl.Left != 212 {
		t.Errorf("preferred right with room: got %+v", pl)
	}

	// Anchor within a panel width of the left edge flips to the right.
	for _, x := range []float32{1, 100, 319} {
		if pl := ComputeAnchoredPosition([2]float32{x, 400}, panel, container, SideLeft, 12); pl.Side != SideRight {
			t.Errorf("x=%f preferred left: got side %s, expected right", x, pl.Side)
		}
	}
	if pl := ComputeAnchoredPosition([2]float32{600, 400}, panel, container, SideLeft, 12); pl.Side != SideLeft || pl.Left != 268 {
		t.Errorf("preferred left with room: got %+v", pl)
	}
}

func TestAnchoredPositionVertical(t *testing.T) {
	container := [2]float32{1000, 800}
	panel := [2]float32{200, 100}

	pl := ComputeAnchoredPosition([2]float32{500, 400}, panel, container, SideTop, 10)
	if pl != (Placement{Left: 400, Top: 290, Side: SideTop}) {
		t.Errorf("top: got %+v", pl)
	}
	pl = ComputeAnchoredPosition([2]float32{500, 400}, panel, container, SideBottom, 10)
	if pl != (Placement{Left: 400, Top: 410, Side: SideBottom}) {
		t.Errorf("bottom: got %+v", pl)
	}
	// Near the top edge a top placement is clamped, not flipped.
	pl = ComputeAnchoredPosition([2]float32{5, 20}, panel, container, SideTop, 10)
	if pl.Left != PanelMargin || pl.Top != PanelMargin || pl.Side != SideTop {
		t.Errorf("clamped top: got %+v", pl)
	}
}

func TestParseSide(t *testing.T) {
	for _, s := range []Side{SideRight, SideLeft, SideTop, SideBottom} {
		if p, err := ParseSide(s.String()); err != nil || p != s {
			t.Errorf("%s: round trip gave %s, %v", s, p, err)
		}
	}
	if _, err := ParseSide("diagonal"); err == nil {
		t.Errorf("expected error for invalid side")
	}
}

// math/anchor.go
// Copyright(c) 2025 harborline contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package math

import "fmt"

///////////////////////////////////////////////////////////////////////////
// Anchored placement

// PanelMargin is the minimum distance in pixels that an anchored panel
// keeps from each edge of its container.
const PanelMargin = 8

// Side identifies which side of its anchor point a panel is placed on.
type Side int

const (
	SideRight Side = iota
	SideLeft
	SideTop
	SideBottom
)

func (s Side) String() string {
	switch s {
	case SideRight:
		return "right"
	case SideLeft:
		return "left"
	case SideTop:
		return "top"
	case SideBottom:
		return "bottom"
	default:
		return "ERROR"
	}
}

func ParseSide(s string) (Side, error) {
	switch s {
	case "right":
		return SideRight, nil
	case "left":
		return SideLeft, nil
	case "top":
		return SideTop, nil
	case "bottom":
		return SideBottom, nil
	}
	return SideRight, fmt.Errorf("%s: invalid side", s)
}

// Placement is the resolved position of an anchored panel: the container
// coordinates of its upper-left corner and the side of the anchor it
// ended up on.
type Placement struct {
	Left, Top float32
	Side      Side
}

// ComputeAnchoredPosition places a panel of the given size next to the
// anchor point, offset pixels away on the preferred side. Left and right
// placements flip to the opposite side if the panel would cross the
// container edge; top and bottom placements are centered horizontally on
// the anchor. The result is then clamped so that the panel stays
// PanelMargin pixels inside the container; if the container is too small
// for that, the panel is pinned at the margin.
func ComputeAnchoredPosition(anchor, panel, container [2]float32, preferred Side, offset float32) Placement {
	ax, ay := anchor[0], anchor[1]
	w, h := panel[0], panel[1]

	var pl Placement
	switch preferred {
	case SideLeft:
		pl = Placement{Left: ax - offset - w, Top: ay - h/2, Side: SideLeft}
		if pl.Left < 0 {
			pl.Left, pl.Side = ax+offset, SideRight
		}
	case SideTop:
		pl = Placement{Left: ax - w/2, Top: ay - offset - h, Side: SideTop}
	case SideBottom:
		pl = Placement{Left: ax - w/2, Top: ay + offset, Side: SideBottom}
	default:
		pl = Placement{Left: ax + offset, Top: ay - h/2, Side: SideRight}
		if pl.Left+w > container[0] {
			pl.Left, pl.Side = ax-offset-w, SideLeft
		}
	}

	pl.Left = Clamp(pl.Left, PanelMargin, max(PanelMargin, container[0]-w-PanelMargin))
	pl.Top = Clamp(pl.Top, PanelMargin, max(PanelMargin, container[1]-h-PanelMargin))
	return pl
}

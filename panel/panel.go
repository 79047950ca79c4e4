// panel/panel.go
// Copyright(c) 2025 harborline contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package panel builds the vessel info panel: what it shows and which
// intents its controls emit. It holds no state of its own.
package panel

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harborline/harborline/math"
	"github.com/harborline/harborline/vesselmap"

	"github.com/iancoleman/orderedmap"
)

// Size is the size of the floating panel in pixels.
var Size = [2]float32{320, 240}

// Mode is how the panel is presented.
type Mode int

const (
	// Floating panels are anchored next to the vessel's marker.
	Floating Mode = iota
	// Sheet panels are fixed to the bottom of a narrow viewport.
	Sheet
)

func (m Mode) String() string {
	if m == Sheet {
		return "sheet"
	}
	return "floating"
}

// Intent is a user action on the panel.
type Intent int

const (
	IntentClose Intent = iota
	IntentToggleFleet
	IntentToggleTrack
	IntentToggleRoute
	IntentDetails
)

func (i Intent) String() string {
	switch i {
	case IntentClose:
		return "close"
	case IntentToggleFleet:
		return "fleet"
	case IntentToggleTrack:
		return "track"
	case IntentToggleRoute:
		return "route"
	case IntentDetails:
		return "details"
	default:
		return "ERROR"
	}
}

// Button is one of the panel's action buttons.
type Button struct {
	Intent Intent
	Key    rune
	Label  string
	Active bool
}

// Progress is the voyage progress bar.
type Progress struct {
	Known   bool
	Percent int
	Label   string
}

// Tile is one of the metric tiles.
type Tile struct {
	Label, Value string
}

// State is the overlay state the panel reflects.
type State struct {
	InFleet   bool
	TrackOn   bool
	RouteOn   bool
	RouteNM   float32
	HasRoute  bool
	Progress  Progress
	Mode      Mode
	Placement math.Placement
	// Focus is set the first time a panel is shown for a selection.
	Focus bool
}

// View is everything needed to draw the panel.
type View struct {
	VesselID string
	Name     string
	Subtitle string
	Flag     string
	Photo    string
	Updated  string

	Buttons  []Button
	Progress Progress
	Tiles    [3]Tile
	Route    string

	Mode         Mode
	Placement    math.Placement
	RequestFocus bool
}

func Build(v vesselmap.VesselInfo, s State) View {
	view := View{
		VesselID:     v.ID,
		Name:         v.Name,
		Flag:         v.Flag,
		Photo:        v.Photo,
		Updated:      v.LastUpdated,
		Progress:     s.Progress,
		Mode:         s.Mode,
		Placement:    s.Placement,
		RequestFocus: s.Focus,
	}

	var sub []string
	if v.Type != "" {
		sub = append(sub, v.Type)
	}
	if v.DeparturePort != "" {
		sub = append(sub, "from "+v.DeparturePort)
	}
	view.Subtitle = strings.Join(sub, " · ")

	view.Buttons = []Button{
		{Intent: IntentToggleFleet, Key: 'f', Label: fleetLabel(s.InFleet), Active: s.InFleet},
		{Intent: IntentToggleTrack, Key: 't', Label: "Past track", Active: s.TrackOn},
		{Intent: IntentToggleRoute, Key: 'r', Label: "Route tool", Active: s.RouteOn},
		{Intent: IntentDetails, Key: 'd', Label: "Details"},
	}

	view.Tiles = [3]Tile{
		{Label: "Status", Value: orDash(v.Status)},
		{Label: "Speed/Course", Value: fmt.Sprintf("%.1f kn / %03d°", v.Speed, math.Round(v.Course)%360)},
		{Label: "Load", Value: orDash(v.LoadCondition)},
	}

	if s.RouteOn {
		if s.HasRoute {
			view.Route = fmt.Sprintf("%.1f nm", s.RouteNM)
		} else {
			view.Route = "click two points"
		}
	}
	return view
}

func fleetLabel(in bool) string {
	if in {
		return "In fleet"
	}
	return "Add to fleet"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// IntentForKey returns the intent for a key pressed while the panel is
// focused.
func (v View) IntentForKey(key rune) (Intent, bool) {
	if key == 'x' || key == 0x1b {
		return IntentClose, true
	}
	for _, b := range v.Buttons {
		if b.Key == key {
			return b.Intent, true
		}
	}
	return 0, false
}

// Bar draws the progress bar with the given number of cells.
func (p Progress) Bar(width int) string {
	if !p.Known || width <= 0 {
		return strings.Repeat("·", max(width, 0))
	}
	n := math.Clamp(p.Percent*width/100, 0, width)
	return strings.Repeat("█", n) + strings.Repeat("░", width-n)
}

// Lines renders the panel as text no wider than width runes.
func (v View) Lines(width int) []string {
	var lines []string
	add := func(s string) {
		r := []rune(s)
		if len(r) > width {
			r = append(r[:max(width-1, 0)], '…')
		}
		lines = append(lines, string(r))
	}

	title := v.Name
	if v.Flag != "" {
		title += " [" + v.Flag + "]"
	}
	add(title)
	if v.Subtitle != "" {
		add(v.Subtitle)
	}
	if v.Updated != "" {
		add("Updated " + v.Updated)
	}

	var bs []string
	for _, b := range v.Buttons {
		mark := " "
		if b.Active {
			mark = "*"
		}
		bs = append(bs, fmt.Sprintf("%c%s:%s", b.Key, mark, b.Label))
	}
	add(strings.Join(bs, " "))

	if v.Progress.Known {
		add(fmt.Sprintf("%s %s", v.Progress.Bar(10), v.Progress.Label))
	} else {
		add("Voyage progress unavailable")
	}
	for _, t := range v.Tiles {
		add(t.Label + ": " + t.Value)
	}
	if v.Route != "" {
		add("Route: " + v.Route)
	}
	return lines
}

// MarshalJSON encodes the panel with its fields in display order.
func (v View) MarshalJSON() ([]byte, error) {
	om := orderedmap.New()
	om.SetEscapeHTML(false)
	om.Set("id", v.VesselID)
	om.Set("name", v.Name)
	om.Set("subtitle", v.Subtitle)
	om.Set("flag", v.Flag)
	om.Set("photo", v.Photo)
	om.Set("updated", v.Updated)
	om.Set("mode", v.Mode.String())

	pl := orderedmap.New()
	pl.Set("left", v.Placement.Left)
	pl.Set("top", v.Placement.Top)
	pl.Set("side", v.Placement.Side.String())
	om.Set("placement", pl)

	var buttons []*orderedmap.OrderedMap
	for _, b := range v.Buttons {
		bm := orderedmap.New()
		bm.Set("intent", b.Intent.String())
		bm.Set("label", b.Label)
		bm.Set("active", b.Active)
		buttons = append(buttons, bm)
	}
	om.Set("buttons", buttons)

	pr := orderedmap.New()
	pr.Set("known", v.Progress.Known)
	pr.Set("percent", v.Progress.Percent)
	pr.Set("label", v.Progress.Label)
	om.Set("progress", pr)

	var tiles []*orderedmap.OrderedMap
	for _, t := range v.Tiles {
		tm := orderedmap.New()
		tm.Set("label", t.Label)
		tm.Set("value", t.Value)
		tiles = append(tiles, tm)
	}
	om.Set("tiles", tiles)
	if v.Route != "" {
		om.Set("route", v.Route)
	}
	om.Set("focus", v.RequestFocus)

	return json.Marshal(om)
}

// maplib/layer.go
// Copyright(c) 2025 harborline contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package maplib

import (
	"github.com/harborline/harborline/math"

	"github.com/google/uuid"
)

// LayerID identifies a layer that has been added to a Map.
type LayerID string

func newLayerID() LayerID {
	return LayerID(uuid.NewString())
}

// Layer is anything that can be added to a Map. Layers are owned by
// whoever created them; a Map only holds references, so a layer's fields
// must only be modified while holding the Map's lock via Map.Update.
type Layer interface {
	ID() LayerID
	Kind() string
}

type layerBase struct {
	id LayerID
}

func (l *layerBase) ID() LayerID { return l.id }

// Icon describes how a marker is drawn.
type Icon struct {
	Glyph    rune
	Size     float32 // pixels
	Fill     string
	Selected bool
}

// Marker is a point feature with an icon, a rotation in degrees
// clockwise from north, and a z-order; markers with a larger ZIndex are
// drawn (and hit-tested) on top.
type Marker struct {
	layerBase
	Pos      math.Point2LL
	Rotation float32
	Icon     Icon
	ZIndex   int
	Title    string
	// Key is an application-defined identifier reported with clicks.
	Key string
}

func NewMarker(key string, pos math.Point2LL, icon Icon) *Marker {
	return &Marker{layerBase: layerBase{id: newLayerID()}, Key: key, Pos: pos, Icon: icon}
}

func (*Marker) Kind() string { return "marker" }

// Polyline is a connected series of points.
type Polyline struct {
	layerBase
	Points []math.Point2LL
	Color  string
	Weight float32
	Dashed bool
}

func NewPolyline(points []math.Point2LL, color string, weight float32) *Polyline {
	return &Polyline{layerBase: layerBase{id: newLayerID()}, Points: points, Color: color, Weight: weight}
}

func (*Polyline) Kind() string { return "polyline" }

// CircleMarker is a fixed-pixel-radius circle, used for point overlays
// like ports and anchorages.
type CircleMarker struct {
	layerBase
	Center math.Point2LL
	Radius float32 // pixels
	Color  string
	Label  string
}

func NewCircleMarker(center math.Point2LL, radius float32, color, label string) *CircleMarker {
	return &CircleMarker{layerBase: layerBase{id: newLayerID()}, Center: center, Radius: radius, Color: color, Label: label}
}

func (*CircleMarker) Kind() string { return "circle" }

// TileLayer is a raster basemap described by a URL template with {z},
// {x}, {y} and optionally {s} (subdomain) and {r} (retina suffix)
// placeholders.
type TileLayer struct {
	layerBase
	Name        string
	URLTemplate string
	Subdomains  string
	Attribution string
	MaxZoom     int
}

func NewTileLayer(name, urlTemplate, subdomains, attribution string, maxZoom int) *TileLayer {
	return &TileLayer{
		layerBase:   layerBase{id: newLayerID()},
		Name:        name,
		URLTemplate: urlTemplate,
		Subdomains:  subdomains,
		Attribution: attribution,
		MaxZoom:     maxZoom,
	}
}

func (*TileLayer) Kind() string { return "tiles" }

// Group is a named collection of layers that is added to and removed from
// the map as a unit.
type Group struct {
	layerBase
	Name   string
	Layers []Layer
}

func NewGroup(name string, layers ...Layer) *Group {
	return &Group{layerBase: layerBase{id: newLayerID()}, Name: name, Layers: layers}
}

func (*Group) Kind() string { return "group" }

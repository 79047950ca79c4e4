// maplib/viewport.go
// Copyright(c) 2025 harborline contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package maplib

import (
	"fmt"
	"log/slog"
	gomath "math"

	"github.com/harborline/harborline/math"
)

const (
	TileSize = 256
	MinZoom  = 1
	MaxZoom  = 18

	// Web Mercator is undefined at the poles; latitudes are clamped to the
	// square world used by slippy-map tiles.
	maxLatitude = 85.0511287798
)

// Viewport is the visible window onto a Web Mercator map: a geographic
// center, a zoom level, and the size of the container in pixels. The
// zero Viewport is not useful; use NewViewport.
type Viewport struct {
	Center math.Point2LL
	Zoom   float32
	Size   [2]float32
}

func NewViewport(center math.Point2LL, zoom float32, size [2]float32) Viewport {
	return Viewport{Center: center, Zoom: math.Clamp(zoom, MinZoom, MaxZoom), Size: size}
}

func (v Viewport) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("center", v.Center.DDString()),
		slog.Float64("zoom", float64(v.Zoom)),
		slog.String("size", fmt.Sprintf("%.0fx%.0f", v.Size[0], v.Size[1])))
}

// worldSize returns the width (and height) of the whole world in pixels
// at the viewport's zoom.
func (v Viewport) worldSize() float64 {
	return TileSize * gomath.Exp2(float64(v.Zoom))
}

// worldPixel returns the position of p in world pixels at zoom z, with the
// origin at the northwest corner of the world.
func worldPixel(p math.Point2LL, ws float64) (float64, float64) {
	lat := gomath.Max(-maxLatitude, gomath.Min(maxLatitude, float64(p.Latitude())))
	s := gomath.Sin(lat * gomath.Pi / 180)
	x := (float64(p.Longitude()) + 180) / 360 * ws
	y := (0.5 - gomath.Log((1+s)/(1-s))/(4*gomath.Pi)) * ws
	return x, y
}

func fromWorldPixel(x, y, ws float64) math.Point2LL {
	lon := x/ws*360 - 180
	n := gomath.Pi - 2*gomath.Pi*y/ws
	lat := 180 / gomath.Pi * gomath.Atan(gomath.Sinh(n))
	return math.LL(float32(lat), float32(lon))
}

// Project returns the container-relative pixel coordinates of p; (0,0) is
// the container's upper-left corner and y increases downward.
func (v Viewport) Project(p math.Point2LL) [2]float32 {
	ws := v.worldSize()
	cx, cy := worldPixel(v.Center, ws)
	x, y := worldPixel(p, ws)
	return [2]float32{
		float32(x - cx + float64(v.Size[0])/2),
		float32(y - cy + float64(v.Size[1])/2),
	}
}

// Unproject is the inverse of Project.
func (v Viewport) Unproject(pt [2]float32) math.Point2LL {
	ws := v.worldSize()
	cx, cy := worldPixel(v.Center, ws)
	return fromWorldPixel(cx+float64(pt[0])-float64(v.Size[0])/2, cy+float64(pt[1])-float64(v.Size[1])/2, ws)
}

// Bounds returns the geographic extent of the container, with P0 the
// southwest corner and P1 the northeast corner.
func (v Viewport) Bounds() math.Extent2D {
	nw := v.Unproject([2]float32{0, 0})
	se := v.Unproject(v.Size)
	return math.Extent2D{
		P0: [2]float32{nw.Longitude(), se.Latitude()},
		P1: [2]float32{se.Longitude(), nw.Latitude()},
	}
}

func (v Viewport) Contains(p math.Point2LL) bool {
	return v.Bounds().Inside(p)
}

// Pan returns the viewport moved by the given offset in pixels; a
// positive x moves the view east and a positive y moves it south.
func (v Viewport) Pan(delta [2]float32) Viewport {
	v.Center = v.Unproject(math.Add2f(math.Scale2f(v.Size, 0.5), delta))
	return v
}

func (v Viewport) WithZoom(z float32) Viewport {
	v.Zoom = math.Clamp(z, MinZoom, MaxZoom)
	return v
}

func (v Viewport) WithSize(size [2]float32) Viewport {
	v.Size = size
	return v
}

// Fit returns a viewport centered on the extent e (in lon/lat) at the
// largest integer zoom at which e fits inside the container with padding
// pixels to spare on each side. An empty extent leaves v unchanged; a
// single point keeps the current zoom.
func (v Viewport) Fit(e math.Extent2D, padding float32) Viewport {
	if e.IsEmpty() {
		return v
	}

	sw, ne := math.Point2LL(e.P0), math.Point2LL(e.P1)
	x0, y0 := worldPixel(sw, 1)
	x1, y1 := worldPixel(ne, 1)
	v.Center = fromWorldPixel((x0+x1)/2, (y0+y1)/2, 1)
	if e.Width() == 0 && e.Height() == 0 {
		return v
	}

	avail := [2]float64{
		gomath.Max(1, float64(v.Size[0]-2*padding)),
		gomath.Max(1, float64(v.Size[1]-2*padding)),
	}
	for z := MaxZoom; z >= MinZoom; z-- {
		ws := TileSize * gomath.Exp2(float64(z))
		x0, y0 := worldPixel(sw, ws)
		x1, y1 := worldPixel(ne, ws)
		if gomath.Abs(x1-x0) <= avail[0] && gomath.Abs(y1-y0) <= avail[1] {
			v.Zoom = float32(z)
			return v
		}
	}
	v.Zoom = MinZoom
	return v
}

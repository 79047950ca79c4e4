// vesselmap/route.go
// Copyright(c) 2025 harborline contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package vesselmap

import (
	"log/slog"

	"github.com/harborline/harborline/maplib"
	"github.com/harborline/harborline/math"
)

// DistanceFunc receives route tool measurements: the great-circle
// distance in nautical miles and true once two points have been placed,
// or false after the first point.
type DistanceFunc func(nm float32, ok bool)

// routeTool holds the last two points clicked on the map and the layers
// that show them.
type routeTool struct {
	enabled    bool
	points     []math.Point2LL
	line       *maplib.Polyline
	dots       []*maplib.CircleMarker
	sub        *maplib.Subscription
	onDistance DistanceFunc
}

func (r *routeTool) reset(m *maplib.Map) {
	if r.line != nil {
		m.RemoveLayer(r.line.ID())
		r.line = nil
	}
	for _, d := range r.dots {
		m.RemoveLayer(d.ID())
	}
	r.dots = nil
	r.points = nil
}

func (r *routeTool) disable(m *maplib.Map) {
	r.reset(m)
	r.sub.Unsubscribe()
	r.sub = nil
	r.enabled = false
	r.onDistance = nil
}

// add records p, keeping only the last two points, and updates the
// layers. It returns the distance between the two points, if there are
// two.
func (r *routeTool) add(m *maplib.Map, p math.Point2LL) (float32, bool) {
	r.points = append(r.points, p)
	if len(r.points) > 2 {
		r.points = r.points[len(r.points)-2:]
	}

	for _, d := range r.dots {
		m.RemoveLayer(d.ID())
	}
	r.dots = r.dots[:0]
	for _, pt := range r.points {
		d := maplib.NewCircleMarker(pt, 4, "#c62828", "")
		r.dots = append(r.dots, d)
		m.AddLayer(d)
	}

	if len(r.points) < 2 {
		if r.line != nil {
			m.RemoveLayer(r.line.ID())
			r.line = nil
		}
		return 0, false
	}

	pts := []math.Point2LL{r.points[0], r.points[1]}
	if r.line == nil {
		r.line = maplib.NewPolyline(pts, "#c62828", 2)
		r.line.Dashed = true
		m.AddLayer(r.line)
	} else {
		m.Update(func() { r.line.Points = pts })
	}
	return math.NMDistance2LL(r.points[0], r.points[1]), true
}

// EnableRouteTool starts measuring: each map click adds a point, and
// onDistance is called after each click. Enabling it again starts over
// with the new callback.
func (a *Adapter) EnableRouteTool(onDistance DistanceFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed {
		return
	}
	a.route.reset(a.m)
	a.route.onDistance = onDistance
	if !a.route.enabled {
		a.route.enabled = true
		a.route.sub = a.m.OnClick(a.routeClick)
	}
}

// DisableRouteTool stops measuring and removes its layers.
func (a *Adapter) DisableRouteTool() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.route.disable(a.m)
}

func (a *Adapter) RouteToolEnabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.route.enabled
}

// RoutePoints returns the route tool's current points.
func (a *Adapter) RoutePoints() []math.Point2LL {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]math.Point2LL(nil), a.route.points...)
}

func (a *Adapter) routeClick(ev maplib.ClickEvent) {
	a.mu.Lock()
	if !a.route.enabled || a.destroyed {
		a.mu.Unlock()
		return
	}
	nm, ok := a.route.add(a.m, ev.Pos)
	cb := a.route.onDistance
	if ok {
		a.metrics.routeMeasures.Inc()
	}
	a.mu.Unlock()

	if ok {
		a.lg.Debug("route measured", slog.Float64("nm", float64(nm)))
	}
	if cb != nil {
		cb(nm, ok)
	}
}
